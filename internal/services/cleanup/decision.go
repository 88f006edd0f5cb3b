// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"fmt"

	"github.com/autobrr/qsweep/internal/criteria"
	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/linkgroup"
	"github.com/autobrr/qsweep/internal/trackerhealth"
)

// Engine turns one grouped snapshot into per-torrent decisions.
//
// Ordering is deliberate: dead-tracker deletion runs before the hardlink
// check, so a torrent no tracker recognizes anymore is removed even when
// its content lives on in the library. The data stays reachable through
// the library link; only the client entry goes.
type Engine struct {
	criteria criteria.Set
	health   *trackerhealth.Evaluator
}

func NewEngine(set criteria.Set, health *trackerhealth.Evaluator) *Engine {
	return &Engine{criteria: set, health: health}
}

// Decide evaluates every member of every group. Group aggregates stand in
// for the individual torrent's stats: torrents sharing content are one
// logical copy and are judged as one.
func (e *Engine) Decide(groups []linkgroup.Group) []domain.Decision {
	var decisions []domain.Decision
	for _, g := range groups {
		for _, t := range g.Members {
			decisions = append(decisions, e.decideTorrent(t, g))
		}
	}
	return decisions
}

func (e *Engine) decideTorrent(t *domain.TorrentRecord, g linkgroup.Group) domain.Decision {
	d := domain.Decision{
		Hash:    t.Hash,
		Name:    t.Name,
		GroupID: g.ID,
	}

	if e.health.IsDead(t.Trackers) {
		d.Action = domain.ActionDelete
		d.Reason = domain.ReasonDeadTracker
		d.Trace = []string{"all real trackers report the torrent as gone"}
		return d
	}

	if g.AnyLinkedToLibrary {
		d.Action = domain.ActionKeep
		d.Reason = domain.ReasonHardlinkPreserved
		d.Trace = []string{"media file hardlinked into the library"}
		return d
	}

	// Zero aggregated seeding time means no group member finished yet.
	if g.MaxSeedingDuration == 0 {
		d.Action = domain.ActionKeep
		d.Reason = domain.ReasonCriteriaNotMet
		d.Trace = []string{"not finished seeding"}
		return d
	}

	matched, trace := e.criteria.Evaluate(g.MaxSeedingDuration, g.SumRatio)
	d.Trace = trace
	if matched {
		d.Action = domain.ActionDelete
		d.Reason = domain.ReasonCriteriaMatched
	} else {
		d.Action = domain.ActionKeep
		d.Reason = domain.ReasonCriteriaNotMet
	}
	return d
}

// deletionReasonKey labels a delete decision for the summary tally,
// using the aggregate stats the torrent was judged by.
func deletionReasonKey(d domain.Decision, g linkgroup.Group) string {
	if d.Reason == domain.ReasonDeadTracker {
		return "dead tracker"
	}
	return fmt.Sprintf("age=%s, ratio=%.2f", criteria.FormatDuration(g.MaxSeedingDuration), g.SumRatio)
}
