// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/qsweep/internal/buildinfo"
	"github.com/autobrr/qsweep/internal/config"
	"github.com/autobrr/qsweep/internal/hashcache"
)

func RunCacheCommand() *cobra.Command {
	var configDir string

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the file hash cache",
	}
	cacheCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (defaults to the user config dir)")

	cacheCmd.AddCommand(newCacheStatsCommand(&configDir))
	cacheCmd.AddCommand(newCachePruneCommand(&configDir))
	cacheCmd.AddCommand(newCacheClearCommand(&configDir))

	return cacheCmd
}

func openCacheStore(configDir string) (*hashcache.Store, error) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return hashcache.New(cfg.CacheDatabasePath())
}

func newCacheStatsCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show hash cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(*configDir)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entries:  %d\n", stats.Entries)
			fmt.Fprintf(out, "Covers:   %s of file content\n", humanize.IBytes(uint64(stats.TotalSize)))
			fmt.Fprintf(out, "Database: %s\n", humanize.IBytes(uint64(stats.DBSize)))
			return nil
		},
	}
}

func newCachePruneCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop cache entries whose files changed or disappeared",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(*configDir)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale entries\n", removed)
			return nil
		},
	}
}

func newCacheClearCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(*configDir)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", removed)
			return nil
		},
	}
}
