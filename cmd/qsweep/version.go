// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/qsweep/internal/buildinfo"
	"github.com/autobrr/qsweep/pkg/version"
)

func RunVersionCommand() *cobra.Command {
	var checkUpdates bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprint(out, buildinfo.String())

			if !checkUpdates {
				return nil
			}

			checker := version.NewChecker("autobrr", "qsweep", buildinfo.UserAgent)
			newAvailable, rel, err := checker.CheckNewVersion(cmd.Context(), buildinfo.Version)
			if err != nil {
				return err
			}
			if newAvailable && rel != nil {
				fmt.Fprintf(out, "\nNew version available: %s\n%s\n", rel.TagName, rel.HTMLURL)
			} else {
				fmt.Fprintln(out, "\nYou are running the latest version")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkUpdates, "check-updates", false, "Check for a newer release")

	return cmd
}
