// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/hashcache"
	"github.com/autobrr/qsweep/pkg/hardlink"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func fileRef(t *testing.T, path string) domain.FileRef {
	t.Helper()
	info, err := hardlink.Stat(path)
	require.NoError(t, err)
	fi, err := os.Stat(path)
	require.NoError(t, err)
	return domain.FileRef{Path: path, Size: fi.Size(), Link: info, IsMedia: true}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Movies", "Movie.2020", "movie.mkv"), []byte("movie content"))
	writeFile(t, filepath.Join(root, "Shows", "episode.mkv"), []byte("episode content!"))

	x, err := Scan(t.Context(), root, hashcache.NewHasher(nil))
	require.NoError(t, err)

	assert.Equal(t, 2, x.Files())
	assert.EqualValues(t, int64(len("movie content")+len("episode content!")), x.TotalSize())

	ref := fileRef(t, filepath.Join(root, "Shows", "episode.mkv"))
	assert.True(t, x.HasIdentity(ref.Link.ID))
	assert.False(t, x.HasIdentity(hardlink.Identity{Dev: 1, Ino: 999999}))
}

func TestScanSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	writeFile(t, filepath.Join(root, "real.mkv"), []byte("real"))
	writeFile(t, filepath.Join(outside, "target.mkv"), []byte("target"))

	if err := os.Symlink(filepath.Join(outside, "target.mkv"), filepath.Join(root, "link.mkv")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	x, err := Scan(t.Context(), root, hashcache.NewHasher(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, x.Files(), "symlinked file must not be indexed")
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(t.Context(), "", hashcache.NewHasher(nil))
	require.Error(t, err)

	_, err = Scan(t.Context(), filepath.Join(t.TempDir(), "does-not-exist"), hashcache.NewHasher(nil))
	require.Error(t, err)
}

func TestIsLinked(t *testing.T) {
	root := t.TempDir()
	downloads := t.TempDir()
	hasher := hashcache.NewHasher(nil)

	libPath := filepath.Join(root, "movie.mkv")
	writeFile(t, libPath, []byte("shared movie content"))

	linkedPath := filepath.Join(downloads, "movie.mkv")
	if err := os.Link(libPath, linkedPath); err != nil {
		t.Skipf("hardlinks not supported: %v", err)
	}

	copyPath := filepath.Join(downloads, "copy.mkv")
	writeFile(t, copyPath, []byte("shared movie content"))

	x, err := Scan(t.Context(), root, hasher)
	require.NoError(t, err)

	t.Run("hardlinked file is linked", func(t *testing.T) {
		assert.True(t, x.IsLinked(t.Context(), fileRef(t, linkedPath)))
	})

	t.Run("same-device copy is not linked", func(t *testing.T) {
		// identical content, same filesystem, separate inode: hardlinking
		// was possible but absent, so this is independent content
		assert.False(t, x.IsLinked(t.Context(), fileRef(t, copyPath)))
	})

	t.Run("cross-device identical content is linked", func(t *testing.T) {
		ref := fileRef(t, copyPath)
		ref.Link.ID.Dev++ // simulate a foreign filesystem
		assert.True(t, x.IsLinked(t.Context(), ref))
	})

	t.Run("cross-device different content is not linked", func(t *testing.T) {
		otherPath := filepath.Join(downloads, "other.mkv")
		writeFile(t, otherPath, []byte("another movie content")) // note: different bytes

		ref := fileRef(t, otherPath)
		ref.Link.ID.Dev++
		assert.False(t, x.IsLinked(t.Context(), ref))
	})
}

func TestFindIdentical(t *testing.T) {
	root := t.TempDir()
	downloads := t.TempDir()
	hasher := hashcache.NewHasher(nil)

	libPath := filepath.Join(root, "Show.S01E01.mkv")
	writeFile(t, libPath, []byte("episode one content"))

	x, err := Scan(t.Context(), root, hasher)
	require.NoError(t, err)

	t.Run("name and size and content match", func(t *testing.T) {
		orphan := filepath.Join(downloads, "show.s01e01.MKV")
		writeFile(t, orphan, []byte("episode one content"))

		found, ok := x.FindIdentical(t.Context(), fileRef(t, orphan))
		require.True(t, ok)
		assert.Equal(t, libPath, found)
	})

	t.Run("same name and size but different content", func(t *testing.T) {
		orphan := filepath.Join(downloads, "Show.S01E01.mkv")
		writeFile(t, orphan, []byte("episode TWO content")) // same length

		_, ok := x.FindIdentical(t.Context(), fileRef(t, orphan))
		assert.False(t, ok, "hash mismatch must reject the candidate")
	})

	t.Run("same name different size", func(t *testing.T) {
		orphan := filepath.Join(downloads, "sub", "Show.S01E01.mkv")
		writeFile(t, orphan, []byte("short"))

		_, ok := x.FindIdentical(t.Context(), fileRef(t, orphan))
		assert.False(t, ok)
	})

	t.Run("unknown name", func(t *testing.T) {
		orphan := filepath.Join(downloads, "Unknown.mkv")
		writeFile(t, orphan, []byte("episode one content"))

		_, ok := x.FindIdentical(t.Context(), fileRef(t, orphan))
		assert.False(t, ok)
	})

	t.Run("already hardlinked inode is skipped", func(t *testing.T) {
		linked := filepath.Join(downloads, "Show.S01E01.mkv.linked")
		if err := os.Link(libPath, linked); err != nil {
			t.Skipf("hardlinks not supported: %v", err)
		}
		// same inode as the library file; rename match via explicit ref
		ref := fileRef(t, linked)
		ref.Path = filepath.Join(downloads, "Show.S01E01.mkv")

		_, ok := x.FindIdentical(t.Context(), ref)
		assert.False(t, ok, "an existing link needs no fixing")
	})

	t.Run("cross-device candidate is skipped", func(t *testing.T) {
		orphan := filepath.Join(downloads, "xdev", "Show.S01E01.mkv")
		writeFile(t, orphan, []byte("episode one content"))

		ref := fileRef(t, orphan)
		ref.Link.ID.Dev++
		_, ok := x.FindIdentical(t.Context(), ref)
		assert.False(t, ok, "cannot hardlink across filesystems")
	})
}

func TestFindIdenticalUsesCache(t *testing.T) {
	root := t.TempDir()
	downloads := t.TempDir()

	store, err := hashcache.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	libPath := filepath.Join(root, "movie.mkv")
	writeFile(t, libPath, []byte("cacheable content"))

	x, err := Scan(t.Context(), root, hashcache.NewHasher(store))
	require.NoError(t, err)

	orphan := filepath.Join(downloads, "movie.mkv")
	writeFile(t, orphan, []byte("cacheable content"))

	_, ok := x.FindIdentical(t.Context(), fileRef(t, orphan))
	require.True(t, ok)

	st, err := store.Stats(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Entries, "both sides of the comparison cached")
}
