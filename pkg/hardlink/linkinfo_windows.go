// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build windows

package hardlink

import (
	"os"
	"reflect"
	"syscall"
)

// LinkInfo returns the file's identity and link count. On Windows the
// identity is (volume serial number, file index), the NTFS equivalent of
// the Unix (device, inode) pair.
func LinkInfo(fi os.FileInfo, path string) (Info, error) {
	pathp, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return Info{}, err
	}
	attrs := uint32(syscall.FILE_FLAG_BACKUP_SEMANTICS)
	if isSymlink(fi) {
		// FILE_FLAG_OPEN_REPARSE_POINT to not follow symlinks
		attrs |= syscall.FILE_FLAG_OPEN_REPARSE_POINT
	}
	// Use full sharing mode to avoid failures when file is open by another process (e.g., qBittorrent)
	shareMode := uint32(syscall.FILE_SHARE_READ | syscall.FILE_SHARE_WRITE | syscall.FILE_SHARE_DELETE)
	h, err := syscall.CreateFile(pathp, 0, shareMode, nil, syscall.OPEN_EXISTING, attrs, 0)
	if err != nil {
		return Info{}, err
	}
	defer syscall.CloseHandle(h)

	var info syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &info); err != nil {
		return Info{}, err
	}

	return Info{
		ID: Identity{
			Dev: uint64(info.VolumeSerialNumber),
			Ino: uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow),
		},
		Nlink: uint64(info.NumberOfLinks),
	}, nil
}

// isSymlink detects symlinks on Windows using reparse point attributes.
// This approach is based on tqm's implementation and uses reflection to access
// the Reserved0 field which contains the reparse tag. This may be brittle across
// Go versions if the internal FileInfo structure changes.
func isSymlink(fi os.FileInfo) bool {
	// Guard type assert to avoid panic
	attrs, ok := fi.Sys().(*syscall.Win32FileAttributeData)
	if !ok || attrs == nil {
		return false
	}
	// Check for reparse point flag
	if attrs.FileAttributes&syscall.FILE_ATTRIBUTE_REPARSE_POINT == 0 {
		return false
	}
	// Check for symlink reparse tag via reflection
	v := reflect.Indirect(reflect.ValueOf(fi))
	reserved0Field := v.FieldByName("Reserved0")
	if !reserved0Field.IsValid() {
		return false
	}
	reserved0 := reserved0Field.Uint()
	return reserved0 == syscall.IO_REPARSE_TAG_SYMLINK || reserved0 == 0xA0000003
}
