// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/qsweep/internal/config"
)

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a commented config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := configDir
			if dir == "" {
				dir = config.GetDefaultConfigDir()
			}

			path, created, err := config.WriteDefaultConfig(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !created {
				fmt.Fprintf(out, "Config file already exists at %s\n", path)
				fmt.Fprintln(out, "Skipping generation to avoid overwriting your settings")
				return nil
			}

			fmt.Fprintf(out, "Generated default config at %s\n", path)
			fmt.Fprintln(out, "Edit it to point at your qBittorrent instance, then try 'qsweep run --dry-run'")
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory to write config.toml into (defaults to the user config dir)")

	return cmd
}
