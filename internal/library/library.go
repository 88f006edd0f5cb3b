// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package library indexes the media library directory once per run and
// answers the two questions the cleanup pipeline asks about it: is this
// inode part of the library, and does the library hold a byte-identical
// copy of this file.
package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/hashcache"
	"github.com/autobrr/qsweep/pkg/hardlink"
)

// Entry is one regular file found under the library root.
type Entry struct {
	Path string
	Size int64
	Link hardlink.Info
}

// Index is the scanned library. Read-only after Scan; safe for concurrent
// lookups.
type Index struct {
	root   string
	hasher *hashcache.Hasher

	identities map[hardlink.Identity]struct{}
	byName     map[string][]*Entry // key: lowercased basename
	bySize     map[int64][]*Entry

	files     int
	totalSize int64
}

// Scan walks root and indexes every regular file. Symlinks are not
// followed and permission errors skip the affected subtree.
func Scan(ctx context.Context, root string, hasher *hashcache.Hasher) (*Index, error) {
	if root == "" {
		return nil, fmt.Errorf("media library directory not configured")
	}
	root = filepath.Clean(root)

	x := &Index{
		root:       root,
		hasher:     hasher,
		identities: make(map[hardlink.Identity]struct{}),
		byName:     make(map[string][]*Entry),
		bySize:     make(map[int64][]*Entry),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if os.IsPermission(err) {
				return nil // Skip inaccessible, continue walk
			}
			return err
		}

		// Don't follow symlink directories
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil // Skip files we can't stat
		}

		link, err := hardlink.LinkInfo(info, path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping library file without link info")
			return nil
		}

		entry := &Entry{Path: path, Size: info.Size(), Link: link}
		name := strings.ToLower(filepath.Base(path))

		x.identities[link.ID] = struct{}{}
		x.byName[name] = append(x.byName[name], entry)
		x.bySize[entry.Size] = append(x.bySize[entry.Size], entry)
		x.files++
		x.totalSize += entry.Size

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan media library %s: %w", root, err)
	}

	log.Debug().
		Str("root", root).
		Int("files", x.files).
		Int64("totalSize", x.totalSize).
		Msg("media library indexed")

	return x, nil
}

func (x *Index) Root() string { return x.root }

// Files returns the number of indexed regular files.
func (x *Index) Files() int { return x.files }

// TotalSize returns the summed size of indexed files in bytes.
func (x *Index) TotalSize() int64 { return x.totalSize }

// HasIdentity reports whether the (device, inode) pair belongs to a file
// under the library root.
func (x *Index) HasIdentity(id hardlink.Identity) bool {
	_, ok := x.identities[id]
	return ok
}

// IsLinked reports whether f already shares content with the library:
// directly through its hardlink identity, or on a different filesystem
// through a content-hash match. Satisfies linkgroup.LibraryProbe. Errors
// degrade to false; a lookup failure must never delete-protect or
// delete-expose a torrent on its own.
func (x *Index) IsLinked(ctx context.Context, f domain.FileRef) bool {
	if x.HasIdentity(f.Link.ID) {
		return true
	}
	return x.IsLinkedCrossDevice(ctx, f)
}

// IsLinkedCrossDevice checks same-sized library files on a different
// device for byte equality with f. Same-device copies never count: with
// hardlinks possible, only shared identity proves linkage.
func (x *Index) IsLinkedCrossDevice(ctx context.Context, f domain.FileRef) bool {
	var candidates []*Entry
	for _, entry := range x.bySize[f.Size] {
		if entry.Link.ID.Dev != f.Link.ID.Dev {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		return false
	}

	want, err := x.hasher.Hash(ctx, f.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", f.Path).Msg("hashing torrent file for cross-device check failed")
		return false
	}

	for _, entry := range candidates {
		got, err := x.hasher.Hash(ctx, entry.Path)
		if err != nil {
			log.Debug().Err(err).Str("path", entry.Path).Msg("hashing library candidate failed")
			continue
		}
		if got == want {
			return true
		}
	}
	return false
}

// FindIdentical returns a library file matching f by basename
// (case-insensitive) and exact size on the same filesystem, verified
// byte-identical by content hash. This is the fixer's source: the returned
// path is safe to hardlink over f.
func (x *Index) FindIdentical(ctx context.Context, f domain.FileRef) (string, bool) {
	name := strings.ToLower(filepath.Base(f.Path))

	var want string // lazily computed
	for _, entry := range x.byName[name] {
		if entry.Size != f.Size {
			continue
		}
		if entry.Link.ID.Dev != f.Link.ID.Dev {
			continue // cross-device, cannot hardlink
		}
		if entry.Link.ID == f.Link.ID {
			continue // already the same inode, nothing to fix
		}

		if want == "" {
			hash, err := x.hasher.Hash(ctx, f.Path)
			if err != nil {
				log.Debug().Err(err).Str("path", f.Path).Msg("hashing orphan failed")
				return "", false
			}
			want = hash
		}

		got, err := x.hasher.Hash(ctx, entry.Path)
		if err != nil {
			log.Debug().Err(err).Str("path", entry.Path).Msg("hashing library candidate failed")
			continue
		}
		if got == want {
			return entry.Path, true
		}
	}

	return "", false
}
