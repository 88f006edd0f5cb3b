// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package criteria

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name      string
		input     string
		wantRules int
		wantConds []int
		wantErr   bool
		errToken  string
	}{
		{
			name:      "single rule two conditions",
			input:     "30d 2.0",
			wantRules: 1,
			wantConds: []int{2},
		},
		{
			name:      "two rules",
			input:     "30d 2.0 | 10d 0.5",
			wantRules: 2,
			wantConds: []int{2, 2},
		},
		{
			name:      "ratio only",
			input:     "0.5",
			wantRules: 1,
			wantConds: []int{1},
		},
		{
			name:      "duration only",
			input:     "45d",
			wantRules: 1,
			wantConds: []int{1},
		},
		{
			name:      "no spaces around pipe",
			input:     "30d 2.0|10d 0.5",
			wantRules: 2,
			wantConds: []int{2, 2},
		},
		{
			name:      "empty string",
			input:     "",
			wantRules: 0,
		},
		{
			name:      "whitespace only",
			input:     "   \t ",
			wantRules: 0,
		},
		{
			name:     "garbage token",
			input:    "30d banana",
			wantErr:  true,
			errToken: "banana",
		},
		{
			name:     "bad unit",
			input:    "30x 2.0",
			wantErr:  true,
			errToken: "30x",
		},
		{
			name:     "negative duration",
			input:    "-5d",
			wantErr:  true,
			errToken: "-5d",
		},
		{
			name:     "negative ratio",
			input:    "-0.5",
			wantErr:  true,
			errToken: "-0.5",
		},
		{
			name:     "fractional duration value",
			input:    "2.5d",
			wantErr:  true,
			errToken: "2.5d",
		},
		{
			name:    "empty rule group",
			input:   "30d 2.0|",
			wantErr: true,
		},
		{
			name:    "empty group between pipes",
			input:   "30d||10d",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Parse(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				var invalidErr *InvalidCriteriaError
				require.True(t, errors.As(err, &invalidErr), "expected *InvalidCriteriaError, got %T", err)
				if tt.errToken != "" {
					assert.Equal(t, tt.errToken, invalidErr.Token)
				}
				return
			}

			require.NoError(t, err)
			require.Len(t, set.Rules, tt.wantRules)
			for i, want := range tt.wantConds {
				assert.Len(t, set.Rules[i].Conditions, want, "rule %d", i)
			}
		})
	}

	t.Run("unit conversions", func(t *testing.T) {
		set, err := Parse("3m|2y|7d")
		require.NoError(t, err)
		require.Len(t, set.Rules, 3)

		assert.Equal(t, 90*day, set.Rules[0].Conditions[0].Duration)
		assert.Equal(t, 730*day, set.Rules[1].Conditions[0].Duration)
		assert.Equal(t, 7*day, set.Rules[2].Conditions[0].Duration)
	})

	t.Run("condition kinds", func(t *testing.T) {
		set, err := Parse("30d 2.0")
		require.NoError(t, err)
		require.Len(t, set.Rules, 1)

		conds := set.Rules[0].Conditions
		require.Len(t, conds, 2)
		assert.Equal(t, ConditionSeedingDuration, conds[0].Kind)
		assert.Equal(t, 30*day, conds[0].Duration)
		assert.Equal(t, ConditionRatio, conds[1].Kind)
		assert.InDelta(t, 2.0, conds[1].Ratio, 1e-9)
	})
}

func TestSetEvaluate(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name     string
		criteria string
		seeding  time.Duration
		ratio    float64
		want     bool
	}{
		{
			name:     "first rule fails second matches",
			criteria: "30d 2.0|10d 0.5",
			seeding:  40 * day,
			ratio:    1.0,
			want:     true,
		},
		{
			name:     "no rule matches",
			criteria: "30d 2.0|10d 1.5",
			seeding:  40 * day,
			ratio:    1.0,
			want:     false,
		},
		{
			name:     "aggregated stats over threshold",
			criteria: "10d 0.5",
			seeding:  8 * day,
			ratio:    0.7,
			want:     false,
		},
		{
			name:     "exact boundary matches",
			criteria: "10d 0.5",
			seeding:  10 * day,
			ratio:    0.5,
			want:     true,
		},
		{
			name:     "ratio only rule",
			criteria: "0.5",
			seeding:  0,
			ratio:    0.6,
			want:     true,
		},
		{
			name:     "empty set never matches",
			criteria: "",
			seeding:  9999 * day,
			ratio:    9999,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Parse(tt.criteria)
			require.NoError(t, err)

			got, trace := set.Evaluate(tt.seeding, tt.ratio)
			assert.Equal(t, tt.want, got)
			if !set.Empty() {
				assert.NotEmpty(t, trace)
			}
		})
	}

	t.Run("trace short-circuits on first match", func(t *testing.T) {
		set, err := Parse("10d|30d|90d")
		require.NoError(t, err)

		matched, trace := set.Evaluate(20*day, 0)
		assert.True(t, matched)
		require.Len(t, trace, 1)
		assert.Contains(t, trace[0], "PASS")
	})

	t.Run("trace reports every failed rule", func(t *testing.T) {
		set, err := Parse("30d 2.0|10d 1.5")
		require.NoError(t, err)

		matched, trace := set.Evaluate(5*day, 1.0)
		assert.False(t, matched)
		require.Len(t, trace, 2)
		assert.Contains(t, trace[0], "FAIL")
		assert.Contains(t, trace[1], "FAIL")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{30 * time.Minute, "30m"},
		{3 * time.Hour, "3h"},
		{26 * time.Hour, "1d 2h"},
		{40 * 24 * time.Hour, "40d"},
		{-time.Hour, "0m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "FormatDuration(%s)", tt.in)
	}
}
