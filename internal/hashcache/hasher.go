// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package hashcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// hashChunkSize is the read size for streaming hashes. Media files are
// large; 64KB keeps memory flat without thrashing on syscalls.
const hashChunkSize = 64 * 1024

// Hasher computes xxhash64 content hashes with a read-through cache. A nil
// store degrades to hashing every file fresh, so callers never need to
// branch on whether caching is enabled.
type Hasher struct {
	store *Store
}

func NewHasher(store *Store) *Hasher {
	return &Hasher{store: store}
}

// Hash returns the content hash of the file at path as a 16-char hex
// string. The cached value is reused only while the file's size and mtime
// are unchanged. Cache errors are logged and degrade to a fresh read, never
// fail the caller.
func (h *Hasher) Hash(ctx context.Context, path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	size, mtimeNs := fi.Size(), fi.ModTime().UnixNano()

	if h.store != nil {
		hash, ok, err := h.store.Get(ctx, path, size, mtimeNs)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("hash cache lookup failed")
		} else if ok {
			return hash, nil
		}
	}

	hash, err := HashFile(ctx, path)
	if err != nil {
		return "", err
	}

	if h.store != nil {
		if err := h.store.Put(ctx, Entry{Path: path, Size: size, MtimeNs: mtimeNs, Hash: hash}); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("hash cache store failed")
		}
	}

	return hash, nil
}

// HashFile streams the file through xxhash64 in fixed-size chunks, checking
// for cancellation between reads.
func HashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	digest := xxhash.New()
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := f.Read(buf)
		if n > 0 {
			// xxhash.Digest.Write never returns an error
			_, _ = digest.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
	}

	return fmt.Sprintf("%016x", digest.Sum64()), nil
}
