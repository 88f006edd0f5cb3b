// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/qsweep/internal/buildinfo"
	"github.com/autobrr/qsweep/internal/config"
	"github.com/autobrr/qsweep/internal/hashcache"
	"github.com/autobrr/qsweep/internal/notifier"
	"github.com/autobrr/qsweep/internal/qbittorrent"
	"github.com/autobrr/qsweep/internal/services/cleanup"
	"github.com/autobrr/qsweep/pkg/hardlink"
	"github.com/autobrr/qsweep/pkg/redact"
)

func RunCleanupCommand() *cobra.Command {
	var configDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one cleanup pass against qBittorrent",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runCleanup(ctx, configDir, dryRun)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (defaults to the user config dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without touching anything")

	return cmd
}

func runCleanup(ctx context.Context, configDir string, dryRunFlag bool) error {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	cfg.LogManager().Initialize()
	defer cfg.LogManager().Close()

	if err := cfg.ApplyLogConfig(); err != nil {
		return errors.Wrap(err, "configure logging")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The flag can only force dry-run on; turning a configured dry-run
	// off requires editing the config.
	if dryRunFlag {
		cfg.Config.DryRun = true
	}

	log.Info().
		Str("version", buildinfo.Version).
		Str("configDir", cfg.ConfigDir()).
		Str("host", redact.URLString(cfg.Config.Host)).
		Msg("starting qsweep")

	if cfg.Config.FixHardlinks {
		same, err := hardlink.SameFilesystem(cfg.Config.TorrentDir, cfg.Config.MediaLibraryDir)
		if err != nil {
			log.Debug().Err(err).Msg("could not compare torrent and library filesystems")
		} else if !same {
			log.Warn().
				Str("torrentDir", cfg.Config.TorrentDir).
				Str("mediaLibraryDir", cfg.Config.MediaLibraryDir).
				Msg("torrent and library directories are on different filesystems, hardlink fixes will find no candidates")
		}
	}

	lockPath := cfg.LockFilePath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return errors.Wrap(err, "create data directory")
	}
	runLock := flock.New(lockPath)
	locked, err := runLock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquire run lock")
	}
	if !locked {
		return errors.Errorf("another qsweep run is already in progress (lock: %s)", lockPath)
	}
	defer func() {
		if err := runLock.Unlock(); err != nil {
			log.Debug().Err(err).Msg("releasing run lock failed")
		}
	}()

	set, err := cfg.Criteria()
	if err != nil {
		return err
	}

	var store *hashcache.Store
	if cfg.Config.EnableCache {
		store, err = hashcache.New(cfg.CacheDatabasePath())
		if err != nil {
			log.Warn().Err(err).Msg("hash cache unavailable, continuing without it")
		} else {
			defer store.Close()
		}
	}

	client := qbittorrent.NewClient(qbittorrent.Config{
		Host:     cfg.Config.Host,
		Username: cfg.Config.Username,
		Password: cfg.Config.Password,
	})
	notify := notifier.NewService(cfg.Config.DiscordWebhookURL)

	svc := cleanup.NewService(cleanup.Config{
		DryRun:              cfg.Config.DryRun,
		FixHardlinks:        cfg.Config.FixHardlinks,
		Criteria:            set,
		DeleteDeadTrackers:  cfg.Config.DeleteDeadTrackers,
		DeadTrackerMessages: cfg.Config.DeadTrackerMessages,
		MediaExtensions:     cfg.NormalizedMediaExtensions(),
		MediaLibraryDir:     cfg.Config.MediaLibraryDir,
		Workers:             cfg.Config.HashWorkers,
	}, client, hashcache.NewHasher(store), notify)

	if _, err := svc.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Error().Err(err).Msg("cleanup run failed")
		if nerr := notify.SendError(ctx, err.Error()); nerr != nil {
			log.Warn().Err(nerr).Msg("failed to send error notification")
		}
		return err
	}
	return nil
}
