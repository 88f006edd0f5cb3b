// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !windows

package hardlink

import (
	"errors"
	"os"
	"syscall"
)

// LinkInfo returns the file's identity and link count. On Unix the
// identity is (device ID, inode number): an equal pair means the same
// physical content, whether shared between torrents or with the media
// library.
func LinkInfo(fi os.FileInfo, _ string) (Info, error) {
	sys, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return Info{}, errors.New("failed to get syscall.Stat_t")
	}
	return Info{
		ID:    Identity{Dev: uint64(sys.Dev), Ino: uint64(sys.Ino)},
		Nlink: uint64(sys.Nlink),
	}, nil
}
