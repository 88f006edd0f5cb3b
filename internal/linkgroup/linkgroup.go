// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package linkgroup clusters torrents that share hardlinked media files so
// the cleanup decision can treat them as a single seeding unit.
package linkgroup

import (
	"context"
	"sort"
	"time"

	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/pkg/hardlink"
)

// LibraryProbe reports whether a media file already shares content with the
// media library, either through a hardlink identity found under the library
// root or through a cross-device content-hash match.
type LibraryProbe interface {
	IsLinked(ctx context.Context, f domain.FileRef) bool
}

// Group is one connected component of torrents whose media files share
// (device, inode) identities. Deleting one member of a group frees no space
// while another member still holds the data, so decisions are taken per
// group, not per torrent.
type Group struct {
	// ID is the lexicographically smallest member hash, stable across runs
	// as long as membership does not change.
	ID      string
	Members []*domain.TorrentRecord

	MaxSeedingDuration time.Duration
	SumRatio           float64
	AnyLinkedToLibrary bool
}

// Build clusters torrents into link groups and computes the per-group
// aggregates. Two torrents land in the same group iff at least one media
// file pair shares a hardlink identity; identity equality across different
// devices cannot happen, and content-equal files on different filesystems
// are deliberately NOT merged. probe may be nil when no media library is
// configured, leaving AnyLinkedToLibrary false everywhere.
//
// Groups and their members are returned in deterministic (hash) order.
func Build(ctx context.Context, torrents []domain.TorrentRecord, probe LibraryProbe) []Group {
	uf := newUnionFind(len(torrents))

	owner := make(map[hardlink.Identity]int)
	for i := range torrents {
		for _, f := range torrents[i].MediaFiles() {
			if f.Link.ID == (hardlink.Identity{}) {
				continue
			}
			if j, ok := owner[f.Link.ID]; ok {
				uf.union(i, j)
			} else {
				owner[f.Link.ID] = i
			}
		}
	}

	components := make(map[int][]int)
	for i := range torrents {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	groups := make([]Group, 0, len(components))
	for _, members := range components {
		var g Group
		for _, idx := range members {
			t := &torrents[idx]
			g.Members = append(g.Members, t)

			if g.ID == "" || t.Hash < g.ID {
				g.ID = t.Hash
			}
			if t.SeedingDuration > g.MaxSeedingDuration {
				g.MaxSeedingDuration = t.SeedingDuration
			}
			g.SumRatio += t.Ratio

			if g.AnyLinkedToLibrary || probe == nil {
				continue
			}
			for _, f := range t.MediaFiles() {
				if probe.IsLinked(ctx, f) {
					g.AnyLinkedToLibrary = true
					break
				}
			}
		}

		sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].Hash < g.Members[j].Hash })
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}
