// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/internal/trackerhealth"
	"github.com/autobrr/qsweep/pkg/hardlink"
)

// buildSnapshot fetches every torrent with its files and trackers and
// stats the files on disk. A failed per-torrent fetch records a run error
// and drops that torrent; only listing failure or cancellation is fatal.
func (s *Service) buildSnapshot(ctx context.Context, stats *domain.RunStats) ([]domain.TorrentRecord, error) {
	torrents, err := s.client.ListTorrents(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Int("torrents", len(torrents)).Msg("retrieved torrents from qBittorrent")

	records := make([]*domain.TorrentRecord, len(torrents))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for i := range torrents {
		t := torrents[i]
		g.Go(func() error {
			rec, err := s.fetchTorrent(gctx, t)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("torrent", t.Name).Msg("skipping torrent, metadata fetch failed")
				mu.Lock()
				stats.RecordError(t.Hash, t.Name, err.Error())
				mu.Unlock()
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := make([]domain.TorrentRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			snapshot = append(snapshot, *rec)
		}
	}
	return snapshot, nil
}

func (s *Service) fetchTorrent(ctx context.Context, t qbt.Torrent) (*domain.TorrentRecord, error) {
	files, err := s.client.ListFiles(ctx, t.Hash)
	if err != nil {
		return nil, err
	}
	trackers, err := s.client.ListTrackers(ctx, t.Hash)
	if err != nil {
		return nil, err
	}

	rec := &domain.TorrentRecord{
		Hash:            t.Hash,
		Name:            t.Name,
		SavePath:        t.SavePath,
		Size:            t.Size,
		Ratio:           t.Ratio,
		SeedingDuration: time.Duration(t.SeedingTime) * time.Second,
		Trackers:        make([]domain.TrackerRef, 0, len(trackers)),
	}

	for _, tr := range trackers {
		rec.Trackers = append(rec.Trackers, domain.TrackerRef{
			URL:     tr.Url,
			Message: tr.Message,
			Tier:    trackerhealth.Tier(tr.Url),
		})
	}

	if files != nil {
		for _, f := range *files {
			path := filepath.Join(t.SavePath, f.Name)
			ref, ok := s.statFile(path)
			if !ok {
				continue
			}
			rec.Files = append(rec.Files, ref)
		}
	}
	return rec, nil
}

// statFile resolves one client-reported file against the disk. Files that
// are missing or not regular are dropped from the snapshot.
func (s *Service) statFile(path string) (domain.FileRef, bool) {
	fi, err := os.Lstat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", path).Msg("cannot stat torrent file")
		}
		return domain.FileRef{}, false
	}
	if !fi.Mode().IsRegular() {
		return domain.FileRef{}, false
	}

	link, err := hardlink.LinkInfo(fi, path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("cannot read link info for torrent file")
		return domain.FileRef{}, false
	}

	return domain.FileRef{
		Path:    path,
		Size:    fi.Size(),
		Link:    link,
		IsMedia: s.isMediaFile(path),
	}, true
}

func (s *Service) isMediaFile(path string) bool {
	_, ok := s.mediaExts[strings.ToLower(filepath.Ext(path))]
	return ok
}
