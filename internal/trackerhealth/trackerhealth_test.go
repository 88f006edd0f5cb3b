// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package trackerhealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/qsweep/internal/domain"
)

func TestTier(t *testing.T) {
	tests := []struct {
		url  string
		want domain.TrackerTier
	}{
		{"** [DHT] **", domain.TierDHT},
		{"** [PeX] **", domain.TierPeX},
		{"** [LSD] **", domain.TierLSD},
		{"  ** [DHT] **  ", domain.TierDHT},
		{"https://tracker.example.org/announce", domain.TierReal},
		{"udp://tracker.example.org:1337/announce", domain.TierReal},
		{"", domain.TierReal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tier(tt.url), "Tier(%q)", tt.url)
	}
}

func TestRealTrackers(t *testing.T) {
	trackers := []domain.TrackerRef{
		{URL: "** [DHT] **", Tier: domain.TierDHT},
		{URL: "https://a.example/announce", Tier: domain.TierReal},
		{URL: "** [PeX] **", Tier: domain.TierPeX},
		{URL: "https://b.example/announce", Tier: domain.TierReal},
		{URL: "** [LSD] **", Tier: domain.TierLSD},
	}

	real := RealTrackers(trackers)
	require.Len(t, real, 2)
	assert.Equal(t, "https://a.example/announce", real[0].URL)
	assert.Equal(t, "https://b.example/announce", real[1].URL)

	assert.Empty(t, RealTrackers(nil))
}

func TestEvaluatorIsDead(t *testing.T) {
	messages := []string{"unregistered torrent", "torrent not registered", "torrent not found"}

	real := func(msg string) domain.TrackerRef {
		return domain.TrackerRef{URL: "https://tracker.example/announce", Message: msg, Tier: domain.TierReal}
	}
	dht := domain.TrackerRef{URL: "** [DHT] **", Tier: domain.TierDHT}

	tests := []struct {
		name     string
		enabled  bool
		messages []string
		trackers []domain.TrackerRef
		want     bool
	}{
		{
			name:     "disabled never dead",
			enabled:  false,
			messages: messages,
			trackers: []domain.TrackerRef{real("unregistered torrent")},
			want:     false,
		},
		{
			name:     "no trackers",
			enabled:  true,
			messages: messages,
			trackers: nil,
			want:     false,
		},
		{
			name:     "pseudo entries only",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{dht, {URL: "** [PeX] **", Tier: domain.TierPeX}},
			want:     false,
		},
		{
			name:     "single dead tracker",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{real("unregistered torrent")},
			want:     true,
		},
		{
			name:     "case insensitive match",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{real("Torrent Not Registered")},
			want:     true,
		},
		{
			name:     "whitespace trimmed",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{real("  unregistered torrent  ")},
			want:     true,
		},
		{
			name:     "substring does not count",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{real("error: torrent not registered with this tracker")},
			want:     false,
		},
		{
			name:     "one healthy tracker keeps it alive",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{real("unregistered torrent"), real("")},
			want:     false,
		},
		{
			name:     "all dead with pseudo entries present",
			enabled:  true,
			messages: messages,
			trackers: []domain.TrackerRef{dht, real("unregistered torrent"), real("torrent not found")},
			want:     true,
		},
		{
			name:     "empty message list",
			enabled:  true,
			messages: nil,
			trackers: []domain.TrackerRef{real("unregistered torrent")},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(tt.enabled, tt.messages)
			assert.Equal(t, tt.want, e.IsDead(tt.trackers))
		})
	}
}
