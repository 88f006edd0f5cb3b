// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fixer repairs broken hardlinks: orphaned download files whose
// byte-identical twin lives in the media library get relinked to it, so
// the seeding copy stops costing disk space.
package fixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/hashcache"
)

// Outcome classifies the result of a single fix attempt.
type Outcome string

const (
	OutcomeFixed         Outcome = "fixed"
	OutcomeDryRun        Outcome = "dry_run"
	OutcomeAlreadyLinked Outcome = "already_linked"

	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeSizeMismatch     Outcome = "size_mismatch"
	OutcomeHashMismatch     Outcome = "hash_mismatch"
	OutcomeStatFailed       Outcome = "stat_failed"
	OutcomeBackupFailed     Outcome = "backup_failed"

	OutcomeLinkFailedRestored      Outcome = "link_failed_restored"
	OutcomeLinkFailedRestoreFailed Outcome = "link_failed_restore_failed"
)

// Result is the outcome of one fix attempt.
type Result struct {
	Success bool
	Outcome Outcome
	Message string
}

// FileResult pairs an orphaned file with the library file it was matched
// against and the fix result.
type FileResult struct {
	File      string
	MediaFile string
	IsMedia   bool
	Result    Result
}

// BatchResult aggregates a fix pass over one torrent's orphaned files.
type BatchResult struct {
	Attempted       int
	Fixed           int
	Failed          int
	MediaFilesFixed int
	Results         []FileResult
}

// MatchSource finds a byte-identical, same-filesystem library file for an
// orphaned file.
type MatchSource interface {
	FindIdentical(ctx context.Context, f domain.FileRef) (string, bool)
}

// Fixer replaces orphaned files with hardlinks to their library twins.
type Fixer struct {
	hasher *hashcache.Hasher
}

func New(hasher *hashcache.Hasher) *Fixer {
	return &Fixer{hasher: hasher}
}

// FixOrphans walks the given orphaned files, looks each one up in the
// library and fixes every verified match. Failures are recorded per file
// and never abort the batch.
func (f *Fixer) FixOrphans(ctx context.Context, orphans []domain.FileRef, source MatchSource, dryRun bool) BatchResult {
	var batch BatchResult
	if len(orphans) == 0 {
		return batch
	}

	log.Info().Int("count", len(orphans)).Msg("attempting to fix orphaned files")

	for _, orphan := range orphans {
		if ctx.Err() != nil {
			break
		}
		batch.Attempted++

		mediaPath, ok := source.FindIdentical(ctx, orphan)
		if !ok {
			log.Debug().Str("file", filepath.Base(orphan.Path)).Msg("no library match for orphaned file")
			continue
		}

		result := f.FixFile(ctx, orphan.Path, mediaPath, dryRun)
		if result.Success {
			batch.Fixed++
			if orphan.IsMedia {
				batch.MediaFilesFixed++
			}
		} else {
			batch.Failed++
			log.Warn().
				Str("file", orphan.Path).
				Str("outcome", string(result.Outcome)).
				Msg(result.Message)
		}

		batch.Results = append(batch.Results, FileResult{
			File:      orphan.Path,
			MediaFile: mediaPath,
			IsMedia:   orphan.IsMedia,
			Result:    result,
		})
	}

	return batch
}

// FixFile replaces the orphaned file with a hardlink to mediaPath.
//
// The swap is atomic: rename the orphan to <name>.bak, link the media file
// into its place, then drop the backup. On link failure the backup is
// restored. Already-hardlinked pairs are a successful no-op, so re-running
// after a partial failure is safe.
func (f *Fixer) FixFile(ctx context.Context, orphanPath, mediaPath string, dryRun bool) Result {
	oi, err := os.Lstat(orphanPath)
	if err != nil {
		return Result{Outcome: OutcomeValidationFailed, Message: fmt.Sprintf("orphaned file does not exist: %s", orphanPath)}
	}
	mi, err := os.Lstat(mediaPath)
	if err != nil {
		return Result{Outcome: OutcomeValidationFailed, Message: fmt.Sprintf("media file does not exist: %s", mediaPath)}
	}
	if !oi.Mode().IsRegular() || !mi.Mode().IsRegular() {
		return Result{Outcome: OutcomeValidationFailed, Message: "both paths must be regular files"}
	}

	if os.SameFile(oi, mi) {
		return Result{Success: true, Outcome: OutcomeAlreadyLinked, Message: fmt.Sprintf("already hardlinked to %s", mediaPath)}
	}

	if oi.Size() != mi.Size() {
		return Result{Outcome: OutcomeSizeMismatch, Message: fmt.Sprintf("size mismatch: orphaned=%d, media=%d", oi.Size(), mi.Size())}
	}

	// Verify byte equality before touching anything. Name and size alone
	// must never be trusted.
	orphanHash, err := f.hasher.Hash(ctx, orphanPath)
	if err != nil {
		return Result{Outcome: OutcomeStatFailed, Message: fmt.Sprintf("hash orphaned file: %v", err)}
	}
	mediaHash, err := f.hasher.Hash(ctx, mediaPath)
	if err != nil {
		return Result{Outcome: OutcomeStatFailed, Message: fmt.Sprintf("hash media file: %v", err)}
	}
	if orphanHash != mediaHash {
		return Result{Outcome: OutcomeHashMismatch, Message: fmt.Sprintf("content hash mismatch: orphaned=%s, media=%s", orphanHash, mediaHash)}
	}

	if dryRun {
		log.Info().Str("orphaned", orphanPath).Str("media", mediaPath).Msg("[DRY RUN] would fix hardlink")
		return Result{Success: true, Outcome: OutcomeDryRun, Message: fmt.Sprintf("would create hardlink from %s", mediaPath)}
	}

	backupPath := orphanPath + ".bak"

	log.Debug().Str("file", orphanPath).Str("backup", backupPath).Msg("backing up orphaned file")
	if err := os.Rename(orphanPath, backupPath); err != nil {
		return Result{Outcome: OutcomeBackupFailed, Message: fmt.Sprintf("backup file: %v", err)}
	}

	if err := os.Link(mediaPath, orphanPath); err != nil {
		log.Error().Err(err).Str("orphaned", orphanPath).Str("media", mediaPath).Msg("failed to create hardlink")

		if restoreErr := os.Rename(backupPath, orphanPath); restoreErr != nil {
			log.Error().
				Err(restoreErr).
				Str("orphaned", orphanPath).
				Str("backup", backupPath).
				Msg("CRITICAL: failed to restore backup after link failure - manual intervention required")
			return Result{Outcome: OutcomeLinkFailedRestoreFailed, Message: fmt.Sprintf("create hardlink and restore backup both failed: %v, %v", err, restoreErr)}
		}
		return Result{Outcome: OutcomeLinkFailedRestored, Message: fmt.Sprintf("create hardlink (backup restored): %v", err)}
	}

	if err := os.Remove(backupPath); err != nil {
		log.Warn().Err(err).Str("backup", backupPath).Msg("failed to remove backup after successful link")
	}

	log.Info().Str("orphaned", orphanPath).Str("media", mediaPath).Msg("fixed hardlink")
	return Result{Success: true, Outcome: OutcomeFixed, Message: fmt.Sprintf("created hardlink to %s", mediaPath)}
}
