// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cleanup runs the retention pass: snapshot the client state,
// repair missing hardlinks, group torrents by shared content, decide
// keep/delete per torrent and execute the deletions.
package cleanup

import (
	"context"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/qsweep/internal/criteria"
	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/fixer"
	"github.com/autobrr/qsweep/internal/hashcache"
	"github.com/autobrr/qsweep/internal/library"
	"github.com/autobrr/qsweep/internal/linkgroup"
	"github.com/autobrr/qsweep/internal/notifier"
	"github.com/autobrr/qsweep/internal/trackerhealth"
	"github.com/autobrr/qsweep/pkg/hardlink"
)

// TorrentClient is the slice of the qBittorrent client one run needs.
type TorrentClient interface {
	Login(ctx context.Context) error
	ListTorrents(ctx context.Context) ([]qbt.Torrent, error)
	ListFiles(ctx context.Context, hash string) (*qbt.TorrentFiles, error)
	ListTrackers(ctx context.Context, hash string) ([]qbt.TorrentTracker, error)
	Delete(ctx context.Context, hashes []string, deleteFiles bool) error
	Pause(ctx context.Context, hashes []string) error
	Resume(ctx context.Context, hashes []string) error
}

// Config carries the per-run settings, already parsed and validated.
type Config struct {
	DryRun              bool
	FixHardlinks        bool
	Criteria            criteria.Set
	DeleteDeadTrackers  bool
	DeadTrackerMessages []string
	MediaExtensions     []string
	MediaLibraryDir     string
	Workers             int
}

// Service executes one cleanup run. It is built fresh per invocation;
// nothing is shared between runs except the hash cache.
type Service struct {
	cfg      Config
	client   TorrentClient
	hasher   *hashcache.Hasher
	fixer    *fixer.Fixer
	health   *trackerhealth.Evaluator
	notifier notifier.Service

	mediaExts map[string]struct{}
}

func NewService(cfg Config, client TorrentClient, hasher *hashcache.Hasher, notify notifier.Service) *Service {
	exts := make(map[string]struct{}, len(cfg.MediaExtensions))
	for _, ext := range cfg.MediaExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}

	return &Service{
		cfg:       cfg,
		client:    client,
		hasher:    hasher,
		fixer:     fixer.New(hasher),
		health:    trackerhealth.NewEvaluator(cfg.DeleteDeadTrackers, cfg.DeadTrackerMessages),
		notifier:  notify,
		mediaExts: exts,
	}
}

// Run performs the batch pass and returns its stats. A non-nil error
// means the run died before decisions were executed; per-torrent
// failures are recorded in the stats instead.
func (s *Service) Run(ctx context.Context) (*domain.RunStats, error) {
	stats := domain.NewRunStats()

	if s.cfg.DryRun {
		log.Warn().Msg("running in dry-run mode, no changes will be made")
	}

	if err := s.client.Login(ctx); err != nil {
		return stats, err
	}
	log.Info().Msg("authenticated with qBittorrent")

	snapshot, err := s.buildSnapshot(ctx, stats)
	if err != nil {
		return stats, errors.Wrap(err, "snapshot failed")
	}

	var lib *library.Index
	if s.cfg.MediaLibraryDir != "" {
		lib, err = library.Scan(ctx, s.cfg.MediaLibraryDir, s.hasher)
		if err != nil {
			return stats, errors.Wrap(err, "media library scan failed")
		}
		log.Info().
			Int("files", lib.Files()).
			Str("size", humanize.IBytes(uint64(lib.TotalSize()))).
			Msg("media library indexed")
	}

	fixed := s.repairHardlinks(ctx, snapshot, lib, stats)

	groups := linkgroup.Build(ctx, snapshot, &runProbe{lib: lib, fixed: fixed})
	log.Info().Int("groups", len(groups)).Int("torrents", len(snapshot)).Msg("built hardlink groups")

	decisions := NewEngine(s.cfg.Criteria, s.health).Decide(groups)
	s.execute(ctx, decisions, groups, stats)

	s.logSummary(stats)

	if err := s.notifier.SendSummary(ctx, stats, s.cfg.DryRun); err != nil {
		log.Warn().Err(err).Msg("failed to send run summary notification")
	}
	return stats, nil
}

func (s *Service) workers() int {
	if s.cfg.Workers < 1 {
		return 1
	}
	return s.cfg.Workers
}

// runProbe answers the library-linkage question for grouping: a file is
// linked when the index says so, or when this run's fixer (re)linked it.
type runProbe struct {
	lib   *library.Index
	fixed map[string]struct{}
}

func (p *runProbe) IsLinked(ctx context.Context, f domain.FileRef) bool {
	if _, ok := p.fixed[f.Path]; ok {
		return true
	}
	if p.lib == nil {
		return false
	}
	return p.lib.IsLinked(ctx, f)
}

// repairHardlinks runs the fixer over every torrent's orphaned files and
// returns the set of paths now (or, in dry-run, notionally) linked to
// the library. Torrents are paused around real fixes so the client does
// not re-check files mid-swap.
func (s *Service) repairHardlinks(ctx context.Context, snapshot []domain.TorrentRecord, lib *library.Index, stats *domain.RunStats) map[string]struct{} {
	fixed := make(map[string]struct{})

	for i := range snapshot {
		t := &snapshot[i]
		orphans := orphanedFiles(t.Files)
		stats.OrphanedFilesFound += len(orphans)
		if len(orphans) == 0 {
			continue
		}
		log.Debug().Str("torrent", t.Name).Int("orphans", len(orphans)).Msg("torrent has orphaned files")

		if !s.cfg.FixHardlinks || lib == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		paused := false
		if !s.cfg.DryRun {
			if err := s.client.Pause(ctx, []string{t.Hash}); err != nil {
				log.Warn().Err(err).Str("torrent", t.Name).Msg("could not pause torrent before hardlink fix")
			} else {
				paused = true
			}
		}

		batch := s.fixer.FixOrphans(ctx, orphans, lib, s.cfg.DryRun)

		if paused {
			if err := s.client.Resume(ctx, []string{t.Hash}); err != nil {
				log.Error().Err(err).Str("torrent", t.Name).Msg("CRITICAL: torrent left paused after hardlink fix - manual resume required")
				stats.RecordError(t.Hash, t.Name, "torrent left paused after hardlink fix")
			}
		}

		s.recordFixResults(t, orphans, batch, fixed, stats)
	}
	return fixed
}

func orphanedFiles(files []domain.FileRef) []domain.FileRef {
	var orphans []domain.FileRef
	for _, f := range files {
		if f.Link.Orphaned() {
			orphans = append(orphans, f)
		}
	}
	return orphans
}

func (s *Service) recordFixResults(t *domain.TorrentRecord, orphans []domain.FileRef, batch fixer.BatchResult, fixed map[string]struct{}, stats *domain.RunStats) {
	stats.HardlinksAttempted += batch.Attempted
	stats.HardlinksFixed += batch.Fixed
	stats.HardlinksFailed += batch.Failed

	sizeByPath := make(map[string]int64, len(orphans))
	for _, o := range orphans {
		sizeByPath[o.Path] = o.Size
	}

	for _, r := range batch.Results {
		if !r.Result.Success {
			stats.FixFailures = append(stats.FixFailures, domain.FixFailure{
				Torrent:   t.Name,
				File:      r.File,
				MediaFile: r.MediaFile,
				Message:   r.Result.Message,
			})
			continue
		}

		// Dry-run successes count here too: the decision pass must
		// mirror what a real run would decide after fixing.
		fixed[r.File] = struct{}{}
		if r.Result.Outcome != fixer.OutcomeAlreadyLinked {
			stats.SpaceSavedHardlinks += sizeByPath[r.File]
		}
		if !s.cfg.DryRun {
			s.refreshLink(t, r.File)
		}
	}
}

// refreshLink re-stats a file after a fix so grouping sees the new
// identity instead of the snapshot's pre-fix one.
func (s *Service) refreshLink(t *domain.TorrentRecord, path string) {
	link, err := hardlink.Stat(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("cannot refresh link info after fix")
		return
	}
	for i := range t.Files {
		if t.Files[i].Path == path {
			t.Files[i].Link = link
			return
		}
	}
}

func (s *Service) execute(ctx context.Context, decisions []domain.Decision, groups []linkgroup.Group, stats *domain.RunStats) {
	groupByID := make(map[string]linkgroup.Group, len(groups))
	sizeByHash := make(map[string]int64)
	for _, g := range groups {
		groupByID[g.ID] = g
		for _, m := range g.Members {
			sizeByHash[m.Hash] = m.Size
		}
	}

	for _, d := range decisions {
		if ctx.Err() != nil {
			log.Warn().Msg("run canceled, leaving remaining torrents untouched")
			break
		}
		stats.Processed++

		if d.Action == domain.ActionKeep {
			stats.Kept++
			if d.Reason == domain.ReasonHardlinkPreserved {
				stats.KeptHardlinkPreserved++
			} else {
				stats.KeptCriteriaNotMet++
			}
			log.Debug().
				Str("torrent", d.Name).
				Str("reason", string(d.Reason)).
				Strs("trace", d.Trace).
				Msg("keeping torrent")
			continue
		}

		s.deleteTorrent(ctx, d, groupByID[d.GroupID], sizeByHash[d.Hash], stats)
	}
}

// deleteTorrent executes (or, in dry-run, reports) one delete decision.
// Failures are per-torrent: recorded and skipped, never fatal.
func (s *Service) deleteTorrent(ctx context.Context, d domain.Decision, g linkgroup.Group, size int64, stats *domain.RunStats) {
	if s.cfg.DryRun {
		log.Info().
			Str("torrent", d.Name).
			Str("reason", string(d.Reason)).
			Strs("trace", d.Trace).
			Msg("[DRY RUN] would delete torrent")
	} else {
		if err := s.client.Delete(ctx, []string{d.Hash}, true); err != nil {
			log.Error().Err(err).Str("torrent", d.Name).Msg("failed to delete torrent")
			stats.RecordError(d.Hash, d.Name, err.Error())
			return
		}
		log.Info().
			Str("torrent", d.Name).
			Str("reason", string(d.Reason)).
			Strs("trace", d.Trace).
			Msg("deleted torrent")
	}

	stats.Deleted++
	stats.DeletedTorrents = append(stats.DeletedTorrents, d.Name)
	stats.DeletionReasons[deletionReasonKey(d, g)]++

	if d.Reason == domain.ReasonDeadTracker {
		stats.DeletedDeadTracker++
		stats.SpaceFreedDeadTracker += size
	} else {
		stats.DeletedCriteria++
		stats.SpaceFreedCriteria += size
	}
}

func (s *Service) logSummary(stats *domain.RunStats) {
	saved := stats.SpaceFreed() + stats.SpaceSavedHardlinks

	log.Info().
		Bool("dryRun", s.cfg.DryRun).
		Int("processed", stats.Processed).
		Int("deleted", stats.Deleted).
		Int("kept", stats.Kept).
		Int("keptCriteriaNotMet", stats.KeptCriteriaNotMet).
		Int("keptHardlinkPreserved", stats.KeptHardlinkPreserved).
		Int("hardlinksAttempted", stats.HardlinksAttempted).
		Int("hardlinksFixed", stats.HardlinksFixed).
		Int("hardlinksFailed", stats.HardlinksFailed).
		Int("orphanedFilesFound", stats.OrphanedFilesFound).
		Int("errors", len(stats.Errors)).
		Str("spaceSaved", humanize.IBytes(uint64(saved))).
		Msg("cleanup run complete")

	msg := "deleted this run"
	if s.cfg.DryRun {
		msg = "would have deleted this run"
	}
	for _, name := range stats.DeletedTorrents {
		log.Info().Str("torrent", name).Msg(msg)
	}
}
