// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package criteria

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Duration units use fixed conversions: a month is 30 days, a year 365.
// No calendar arithmetic.
const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// InvalidCriteriaError reports a malformed criteria string. Token is the
// offending token, empty when a whole rule group between pipes was empty.
type InvalidCriteriaError struct {
	Token  string
	Reason string
}

func (e *InvalidCriteriaError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid criteria: %s", e.Reason)
	}
	return fmt.Sprintf("invalid criteria token %q: %s", e.Token, e.Reason)
}

// Parse builds a Set from a rule string like "30d 2.0|10d 0.5".
//
// Tokens matching <integer><d|m|y> become seeding-duration conditions,
// tokens parsing as a bare decimal become ratio conditions. Anything else,
// and any empty rule group between pipes, fails with *InvalidCriteriaError.
// A blank input yields an empty Set that matches nothing; callers treat
// that as criteria disabled, never as delete-everything.
func Parse(s string) (Set, error) {
	if strings.TrimSpace(s) == "" {
		return Set{}, nil
	}

	groups := strings.Split(s, "|")
	rules := make([]Rule, 0, len(groups))

	for _, group := range groups {
		tokens := strings.Fields(group)
		if len(tokens) == 0 {
			return Set{}, &InvalidCriteriaError{Reason: "empty rule group"}
		}

		rule := Rule{Conditions: make([]Condition, 0, len(tokens))}
		for _, token := range tokens {
			cond, err := parseCondition(token)
			if err != nil {
				return Set{}, err
			}
			rule.Conditions = append(rule.Conditions, cond)
		}
		rules = append(rules, rule)
	}

	return Set{Rules: rules}, nil
}

func parseCondition(token string) (Condition, error) {
	if d, ok, err := parseDurationToken(token); err != nil {
		return Condition{}, err
	} else if ok {
		return Condition{Kind: ConditionSeedingDuration, Duration: d, Raw: strings.ToLower(token)}, nil
	}

	ratio, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return Condition{}, &InvalidCriteriaError{Token: token, Reason: "neither a duration (e.g. 30d) nor a ratio (e.g. 2.0)"}
	}
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return Condition{}, &InvalidCriteriaError{Token: token, Reason: "ratio must be a finite number"}
	}
	if ratio < 0 {
		return Condition{}, &InvalidCriteriaError{Token: token, Reason: "ratio must not be negative"}
	}
	return Condition{Kind: ConditionRatio, Ratio: ratio, Raw: token}, nil
}

// parseDurationToken recognizes <integer><d|m|y>. The ok result is false
// when the token does not end in a unit letter, so it can fall through to
// ratio parsing; a unit letter with a bad value is a hard error.
func parseDurationToken(token string) (time.Duration, bool, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if len(t) < 2 {
		return 0, false, nil
	}

	var unit time.Duration
	switch t[len(t)-1] {
	case 'd':
		unit = day
	case 'm':
		unit = month
	case 'y':
		unit = year
	default:
		return 0, false, nil
	}

	value, err := strconv.Atoi(t[:len(t)-1])
	if err != nil {
		return 0, false, &InvalidCriteriaError{Token: token, Reason: "duration value must be an integer"}
	}
	if value < 0 {
		return 0, false, &InvalidCriteriaError{Token: token, Reason: "duration value must not be negative"}
	}

	return time.Duration(value) * unit, true, nil
}
