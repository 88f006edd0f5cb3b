// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package trackerhealth decides whether a torrent is dead on all of its
// trackers, based on the tracker messages qBittorrent reports.
package trackerhealth

import (
	"strings"

	"github.com/autobrr/qsweep/internal/domain"
)

// qBittorrent reports peer-discovery sources as pseudo tracker rows with
// these literal URLs.
const (
	dhtMarker = "** [DHT] **"
	pexMarker = "** [PeX] **"
	lsdMarker = "** [LSD] **"
)

// Tier classifies a tracker URL as reported by qBittorrent.
func Tier(url string) domain.TrackerTier {
	switch strings.TrimSpace(url) {
	case dhtMarker:
		return domain.TierDHT
	case pexMarker:
		return domain.TierPeX
	case lsdMarker:
		return domain.TierLSD
	}
	return domain.TierReal
}

// RealTrackers returns the subset of trackers that are actual announce
// endpoints, dropping DHT/PeX/LSD pseudo entries.
func RealTrackers(trackers []domain.TrackerRef) []domain.TrackerRef {
	var real []domain.TrackerRef
	for _, tr := range trackers {
		if tr.Tier == domain.TierReal {
			real = append(real, tr)
		}
	}
	return real
}

// Evaluator matches tracker messages against a configured list of
// dead-torrent responses. Matching is exact after trimming and lowercasing;
// a message merely containing a configured phrase does not count.
type Evaluator struct {
	enabled  bool
	messages map[string]struct{}
}

func NewEvaluator(enabled bool, messages []string) *Evaluator {
	m := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		msg = strings.ToLower(strings.TrimSpace(msg))
		if msg == "" {
			continue
		}
		m[msg] = struct{}{}
	}
	return &Evaluator{enabled: enabled, messages: m}
}

// IsDead reports whether every real tracker of the torrent carries a
// configured dead message. A torrent with no real trackers is never dead,
// so DHT-only torrents survive this check.
func (e *Evaluator) IsDead(trackers []domain.TrackerRef) bool {
	if !e.enabled || len(e.messages) == 0 {
		return false
	}

	real := 0
	for _, tr := range trackers {
		if tr.Tier != domain.TierReal {
			continue
		}
		real++
		if _, ok := e.messages[strings.ToLower(strings.TrimSpace(tr.Message))]; !ok {
			return false
		}
	}
	return real > 0
}
