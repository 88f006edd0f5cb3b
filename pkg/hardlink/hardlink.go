// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package hardlink provides filesystem hardlink detection utilities.
package hardlink

import (
	"fmt"
	"os"
)

// Identity uniquely identifies physical file content on one filesystem.
// Two paths with the same Identity are hardlinks of each other.
type Identity struct {
	Dev uint64
	Ino uint64
}

// String returns the identity in dev|ino form, matching the wire format
// used for file accounting keys.
func (id Identity) String() string {
	return fmt.Sprintf("%d|%d", id.Dev, id.Ino)
}

// Info describes the physical link state of a file.
type Info struct {
	ID    Identity
	Nlink uint64
}

// Orphaned reports whether the file has no other directory entries
// pointing at its content.
func (i Info) Orphaned() bool {
	return i.Nlink == 1
}

// Stat returns link information for path without following symlinks.
// Non-regular files (directories, symlinks, devices) are rejected so
// callers never treat them as link candidates.
func Stat(path string) (Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Info{}, err
	}
	if !fi.Mode().IsRegular() {
		return Info{}, fmt.Errorf("not a regular file: %s", path)
	}
	return LinkInfo(fi, path)
}

// SameFilesystem checks if two paths are on the same filesystem.
// This is required for hardlinks, which cannot span filesystems.
// Returns an error if either path doesn't exist or cannot be accessed.
//
// Implementation is platform-specific:
//   - Unix: compares device IDs from stat(2)
//   - Windows: compares volume serial numbers
func SameFilesystem(path1, path2 string) (bool, error) {
	return sameFilesystem(path1, path2)
}
