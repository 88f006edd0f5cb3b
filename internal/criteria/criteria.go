// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package criteria parses and evaluates retention rule strings of the form
// "30d 2.0|10d 0.5": rules are OR-separated by pipes, conditions within a
// rule are space-separated and combined with AND.
package criteria

import (
	"fmt"
	"strings"
	"time"
)

// ConditionKind discriminates the two condition types.
type ConditionKind string

const (
	ConditionSeedingDuration ConditionKind = "seeding_duration"
	ConditionRatio           ConditionKind = "ratio"
)

// Condition is a single threshold. Duration is set for seeding-duration
// conditions, Ratio for ratio conditions. Raw keeps the token as written
// for rule labels and traces.
type Condition struct {
	Kind     ConditionKind
	Duration time.Duration
	Ratio    float64
	Raw      string
}

func (c Condition) String() string {
	return c.Raw
}

// Rule is an ordered list of conditions, all of which must hold (AND).
type Rule struct {
	Conditions []Condition
}

func (r Rule) String() string {
	parts := make([]string, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		parts = append(parts, c.Raw)
	}
	return strings.Join(parts, " ")
}

// evaluate checks every condition against the aggregated stats. The
// returned line mirrors the per-rule reasoning in the logs.
func (r Rule) evaluate(seeding time.Duration, ratio float64) (bool, string) {
	passed := true
	reasons := make([]string, 0, len(r.Conditions))

	for _, c := range r.Conditions {
		switch c.Kind {
		case ConditionSeedingDuration:
			if seeding < c.Duration {
				passed = false
				reasons = append(reasons, fmt.Sprintf("age %s < %s", FormatDuration(seeding), c.Raw))
			} else {
				reasons = append(reasons, fmt.Sprintf("age %s >= %s", FormatDuration(seeding), c.Raw))
			}
		case ConditionRatio:
			if ratio < c.Ratio {
				passed = false
				reasons = append(reasons, fmt.Sprintf("ratio %.2f < %.2f", ratio, c.Ratio))
			} else {
				reasons = append(reasons, fmt.Sprintf("ratio %.2f >= %.2f", ratio, c.Ratio))
			}
		}
	}

	verdict := "FAIL"
	if passed {
		verdict = "PASS"
	}
	return passed, fmt.Sprintf("rule [%s]: %s (%s)", r.String(), verdict, strings.Join(reasons, ", "))
}

// Set is an ordered list of rules; it matches iff any rule matches (OR).
// The zero Set is empty and matches nothing.
type Set struct {
	Rules []Rule
}

// Empty reports whether the set contains no rules. An empty set never
// matches, so criteria alone can never delete anything.
func (s Set) Empty() bool {
	return len(s.Rules) == 0
}

func (s Set) String() string {
	parts := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, "|")
}

// Evaluate runs the rules in order against the aggregated seeding duration
// and ratio. The first matching rule short-circuits. The trace carries one
// line per evaluated rule.
func (s Set) Evaluate(seeding time.Duration, ratio float64) (bool, []string) {
	if s.Empty() {
		return false, nil
	}

	trace := make([]string, 0, len(s.Rules))
	for _, rule := range s.Rules {
		passed, line := rule.evaluate(seeding, ratio)
		trace = append(trace, line)
		if passed {
			return true, trace
		}
	}
	return false, trace
}

// FormatDuration renders a duration the way run logs display torrent age:
// days and hours, minutes only below a day.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 && days == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}

	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}
