// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/qsweep/internal/criteria"
	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/linkgroup"
	"github.com/autobrr/qsweep/internal/trackerhealth"
)

const day = 24 * time.Hour

func mustCriteria(t *testing.T, s string) criteria.Set {
	t.Helper()
	set, err := criteria.Parse(s)
	require.NoError(t, err)
	return set
}

func testEvaluator() *trackerhealth.Evaluator {
	return trackerhealth.NewEvaluator(true, []string{"unregistered torrent"})
}

func realTracker(message string) []domain.TrackerRef {
	return []domain.TrackerRef{{
		URL:     "https://tracker.example.org/announce",
		Message: message,
		Tier:    domain.TierReal,
	}}
}

func singleGroup(rec *domain.TorrentRecord, linked bool) linkgroup.Group {
	return linkgroup.Group{
		ID:                 rec.Hash,
		Members:            []*domain.TorrentRecord{rec},
		MaxSeedingDuration: rec.SeedingDuration,
		SumRatio:           rec.Ratio,
		AnyLinkedToLibrary: linked,
	}
}

func TestEngineDecide(t *testing.T) {
	t.Parallel()

	t.Run("dead tracker wins over library link", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:            "aaa",
			Name:            "dead",
			Trackers:        realTracker("Unregistered torrent"),
			SeedingDuration: day,
			Ratio:           1.0,
		}
		engine := NewEngine(mustCriteria(t, "30d 2.0"), testEvaluator())

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, true)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionDelete, decisions[0].Action)
		assert.Equal(t, domain.ReasonDeadTracker, decisions[0].Reason)
	})

	t.Run("library link wins over matched criteria", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:            "bbb",
			Name:            "linked",
			Trackers:        realTracker("Working"),
			SeedingDuration: 90 * day,
			Ratio:           5.0,
		}
		engine := NewEngine(mustCriteria(t, "30d 2.0"), testEvaluator())

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, true)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionKeep, decisions[0].Action)
		assert.Equal(t, domain.ReasonHardlinkPreserved, decisions[0].Reason)
	})

	t.Run("zero seeding time keeps", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:     "ccc",
			Name:     "fresh",
			Trackers: realTracker(""),
			Ratio:    3.0,
		}
		engine := NewEngine(mustCriteria(t, "30d 2.0"), testEvaluator())

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, false)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionKeep, decisions[0].Action)
		assert.Equal(t, domain.ReasonCriteriaNotMet, decisions[0].Reason)
		assert.Contains(t, decisions[0].Trace, "not finished seeding")
	})

	t.Run("criteria matched deletes", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:            "ddd",
			Name:            "old",
			Trackers:        realTracker(""),
			SeedingDuration: 40 * day,
			Ratio:           2.5,
		}
		engine := NewEngine(mustCriteria(t, "30d 2.0"), testEvaluator())

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, false)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionDelete, decisions[0].Action)
		assert.Equal(t, domain.ReasonCriteriaMatched, decisions[0].Reason)
		require.Len(t, decisions[0].Trace, 1)
		assert.Contains(t, decisions[0].Trace[0], "PASS")
	})

	t.Run("criteria not met keeps", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:            "eee",
			Name:            "young",
			Trackers:        realTracker(""),
			SeedingDuration: 10 * day,
			Ratio:           0.1,
		}
		engine := NewEngine(mustCriteria(t, "30d 2.0"), testEvaluator())

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, false)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionKeep, decisions[0].Action)
		assert.Equal(t, domain.ReasonCriteriaNotMet, decisions[0].Reason)
		require.Len(t, decisions[0].Trace, 1)
		assert.Contains(t, decisions[0].Trace[0], "FAIL")
	})

	t.Run("empty criteria never deletes", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:            "fff",
			Name:            "ancient",
			Trackers:        realTracker(""),
			SeedingDuration: 400 * day,
			Ratio:           99.0,
		}
		engine := NewEngine(criteria.Set{}, testEvaluator())

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, false)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionKeep, decisions[0].Action)
		assert.Equal(t, domain.ReasonCriteriaNotMet, decisions[0].Reason)
	})

	t.Run("disabled dead tracker check falls through to criteria", func(t *testing.T) {
		rec := &domain.TorrentRecord{
			Hash:            "ggg",
			Name:            "dead but protected",
			Trackers:        realTracker("Unregistered torrent"),
			SeedingDuration: 10 * day,
			Ratio:           0.1,
		}
		engine := NewEngine(mustCriteria(t, "30d 2.0"), trackerhealth.NewEvaluator(false, []string{"unregistered torrent"}))

		decisions := engine.Decide([]linkgroup.Group{singleGroup(rec, false)})
		require.Len(t, decisions, 1)
		assert.Equal(t, domain.ActionKeep, decisions[0].Action)
		assert.Equal(t, domain.ReasonCriteriaNotMet, decisions[0].Reason)
	})
}

func TestEngineSharedContentJudgedTogether(t *testing.T) {
	t.Parallel()

	a := &domain.TorrentRecord{Hash: "aaa", Name: "copy-a", Trackers: realTracker(""), SeedingDuration: 5 * day, Ratio: 0.3}
	b := &domain.TorrentRecord{Hash: "bbb", Name: "copy-b", Trackers: realTracker(""), SeedingDuration: 8 * day, Ratio: 0.4}

	group := linkgroup.Group{
		ID:                 "aaa",
		Members:            []*domain.TorrentRecord{a, b},
		MaxSeedingDuration: 8 * day,
		SumRatio:           0.7,
	}

	// Neither torrent passes "7d 0.5" on its own stats; the shared copy
	// does on the aggregates.
	engine := NewEngine(mustCriteria(t, "7d 0.5"), testEvaluator())
	decisions := engine.Decide([]linkgroup.Group{group})

	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, domain.ActionDelete, d.Action)
		assert.Equal(t, domain.ReasonCriteriaMatched, d.Reason)
		assert.Equal(t, "aaa", d.GroupID)
	}
}

func TestDeletionReasonKey(t *testing.T) {
	t.Parallel()

	g := linkgroup.Group{MaxSeedingDuration: 8 * day, SumRatio: 0.7}

	dead := domain.Decision{Reason: domain.ReasonDeadTracker}
	assert.Equal(t, "dead tracker", deletionReasonKey(dead, g))

	matched := domain.Decision{Reason: domain.ReasonCriteriaMatched}
	assert.Equal(t, "age=8d, ratio=0.70", deletionReasonKey(matched, g))
}
