// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Action is the final verdict for a torrent.
type Action string

const (
	ActionKeep   Action = "keep"
	ActionDelete Action = "delete"
)

// Reason explains why an action was chosen.
type Reason string

const (
	ReasonDeadTracker       Reason = "dead_tracker"
	ReasonHardlinkPreserved Reason = "hardlink_preserved"
	ReasonCriteriaMatched   Reason = "criteria_matched"
	ReasonCriteriaNotMet    Reason = "criteria_not_met"
)

// Decision is the engine's output for a single torrent. GroupID names the
// link group the torrent was evaluated under. Trace carries the per-rule
// evaluation lines for logging.
type Decision struct {
	Hash    string
	Name    string
	Action  Action
	Reason  Reason
	GroupID string
	Trace   []string
}
