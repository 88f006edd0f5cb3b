// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package hardlink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStat_MissingFile(t *testing.T) {
	_, err := Stat(filepath.Join(t.TempDir(), "nonexistent_file_12345.txt"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStat_RegularFile(t *testing.T) {
	tmpDir := t.TempDir()

	regularFile := filepath.Join(tmpDir, "regular.txt")
	if err := os.WriteFile(regularFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := Stat(regularFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Nlink != 1 {
		t.Errorf("expected link count 1, got %d", info.Nlink)
	}
	if !info.Orphaned() {
		t.Error("expected single-link file to be orphaned")
	}
}

func TestStat_SharedIdentity(t *testing.T) {
	tmpDir := t.TempDir()

	originalFile := filepath.Join(tmpDir, "original.txt")
	if err := os.WriteFile(originalFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	hardlinkFile := filepath.Join(tmpDir, "hardlink.txt")
	if err := os.Link(originalFile, hardlinkFile); err != nil {
		t.Skipf("hardlinks not supported on this filesystem: %v", err)
	}

	origInfo, err := Stat(originalFile)
	if err != nil {
		t.Fatal(err)
	}
	linkInfo, err := Stat(hardlinkFile)
	if err != nil {
		t.Fatal(err)
	}

	if origInfo.ID != linkInfo.ID {
		t.Errorf("expected shared identity, got %s vs %s", origInfo.ID, linkInfo.ID)
	}
	if origInfo.Nlink < 2 {
		t.Errorf("expected link count >= 2, got %d", origInfo.Nlink)
	}
	if origInfo.Orphaned() {
		t.Error("hardlinked file should not be orphaned")
	}
}

func TestStat_DistinctIdentity(t *testing.T) {
	tmpDir := t.TempDir()

	fileA := filepath.Join(tmpDir, "a.txt")
	fileB := filepath.Join(tmpDir, "b.txt")
	if err := os.WriteFile(fileA, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fileB, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	infoA, err := Stat(fileA)
	if err != nil {
		t.Fatal(err)
	}
	infoB, err := Stat(fileB)
	if err != nil {
		t.Fatal(err)
	}

	if infoA.ID == infoB.ID {
		t.Error("independent files should not share an identity")
	}
}

func TestStat_RejectsDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Stat(tmpDir); err == nil {
		t.Error("expected error for directory")
	}
}

func TestStat_RejectsSymlink(t *testing.T) {
	tmpDir := t.TempDir()

	regularFile := filepath.Join(tmpDir, "regular.txt")
	if err := os.WriteFile(regularFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	symlinkFile := filepath.Join(tmpDir, "symlink.txt")
	if err := os.Symlink(regularFile, symlinkFile); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := Stat(symlinkFile); err == nil {
		t.Error("expected error for symlink")
	}
}

func TestIdentityString(t *testing.T) {
	id := Identity{Dev: 42, Ino: 1234}
	if got := id.String(); got != "42|1234" {
		t.Errorf("expected 42|1234, got %s", got)
	}
}

func TestSameFilesystem_SameDir(t *testing.T) {
	tmpDir := t.TempDir()

	fileA := filepath.Join(tmpDir, "a.txt")
	fileB := filepath.Join(tmpDir, "b.txt")
	if err := os.WriteFile(fileA, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fileB, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	same, err := SameFilesystem(fileA, fileB)
	if err != nil {
		t.Fatal(err)
	}
	if !same {
		t.Error("files in the same directory should share a filesystem")
	}
}

func TestSameFilesystem_MissingPath(t *testing.T) {
	tmpDir := t.TempDir()

	fileA := filepath.Join(tmpDir, "a.txt")
	if err := os.WriteFile(fileA, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := SameFilesystem(fileA, filepath.Join(tmpDir, "missing.txt")); err == nil {
		t.Error("expected error for missing path")
	}
}
