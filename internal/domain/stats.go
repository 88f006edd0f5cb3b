// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// FixFailure records an actionable hardlink fix failure for one file.
type FixFailure struct {
	Torrent   string
	File      string
	MediaFile string
	Message   string
}

// TorrentError records a per-torrent failure that did not abort the run.
type TorrentError struct {
	Hash    string
	Name    string
	Message string
}

// RunStats accumulates the outcome counters of one cleanup run. The
// notifier reports these; nothing in here is persisted between runs.
type RunStats struct {
	Processed int
	Deleted   int
	Kept      int

	KeptCriteriaNotMet    int
	KeptHardlinkPreserved int
	DeletedDeadTracker    int
	DeletedCriteria       int

	SpaceFreedDeadTracker int64
	SpaceFreedCriteria    int64
	SpaceSavedHardlinks   int64

	HardlinksAttempted int
	HardlinksFixed     int
	HardlinksFailed    int
	OrphanedFilesFound int

	DeletionReasons map[string]int
	DeletedTorrents []string
	FixFailures     []FixFailure
	Errors          []TorrentError
}

// NewRunStats returns a RunStats with the tally map initialized.
func NewRunStats() *RunStats {
	return &RunStats{
		DeletionReasons: make(map[string]int),
	}
}

// SpaceFreed returns the total bytes scheduled for release by deletions.
func (s *RunStats) SpaceFreed() int64 {
	return s.SpaceFreedDeadTracker + s.SpaceFreedCriteria
}

// RecordError appends a per-torrent error.
func (s *RunStats) RecordError(hash, name, message string) {
	s.Errors = append(s.Errors, TorrentError{Hash: hash, Name: name, Message: message})
}
