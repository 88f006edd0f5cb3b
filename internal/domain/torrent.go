// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the per-run snapshot types shared by the cleanup
// pipeline. Snapshots are built fresh each run and owned exclusively by it.
package domain

import (
	"time"

	"github.com/autobrr/qsweep/pkg/hardlink"
)

// TrackerTier classifies a tracker entry. Only real trackers count toward
// dead-tracker evaluation; DHT/PeX/LSD rows are peer-discovery pseudo
// entries reported by qBittorrent.
type TrackerTier string

const (
	TierReal TrackerTier = "real"
	TierDHT  TrackerTier = "dht"
	TierPeX  TrackerTier = "pex"
	TierLSD  TrackerTier = "lsd"
)

// TrackerRef is one tracker row of a torrent.
type TrackerRef struct {
	URL     string
	Message string
	Tier    TrackerTier
}

// FileRef is one on-disk file belonging to a torrent. Paths are absolute
// under the torrent's save path. Immutable within a run.
type FileRef struct {
	Path    string
	Size    int64
	Link    hardlink.Info
	IsMedia bool
}

// TorrentRecord is the per-run snapshot of one torrent. Ratio and seeding
// duration come from the client; Files only contains entries that were
// actually present on disk when the snapshot was taken.
type TorrentRecord struct {
	Hash            string
	Name            string
	SavePath        string
	Size            int64
	Ratio           float64
	SeedingDuration time.Duration
	Files           []FileRef
	Trackers        []TrackerRef
}

// MediaFiles returns the subset of Files flagged as media.
func (t *TorrentRecord) MediaFiles() []FileRef {
	var media []FileRef
	for _, f := range t.Files {
		if f.IsMedia {
			media = append(media, f)
		}
	}
	return media
}
