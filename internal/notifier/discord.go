// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/qsweep/internal/domain"
	"github.com/autobrr/qsweep/pkg/redact"
)

const (
	colorGreen  = 0x00FF00
	colorYellow = 0xFFFF00
	colorRed    = 0xFF0000

	footerText = "qsweep"

	// Discord truncates embeds; keep the deleted list short.
	maxListedTorrents = 5
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type discordService struct {
	webhookURL string
	client     *http.Client
}

func (d *discordService) SendSummary(ctx context.Context, stats *domain.RunStats, dryRun bool) error {
	if err := d.send(ctx, webhookPayload{Embeds: []embed{buildSummaryEmbed(stats, dryRun)}}); err != nil {
		return err
	}
	log.Info().Msg("Discord notification sent")
	return nil
}

func (d *discordService) SendError(ctx context.Context, message string) error {
	e := embed{
		Title:       "qsweep Error",
		Description: message,
		Color:       colorRed,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return d.send(ctx, webhookPayload{Embeds: []embed{e}})
}

func buildSummaryEmbed(stats *domain.RunStats, dryRun bool) embed {
	var color int
	switch {
	case stats.Deleted == 0:
		color = colorGreen
	case dryRun:
		color = colorYellow
	default:
		color = colorRed
	}

	title := "qsweep Summary"
	if dryRun {
		title = "[DRY RUN] " + title
	}

	fields := []embedField{
		{Name: "Torrents Processed", Value: strconv.Itoa(stats.Processed), Inline: true},
		{Name: "Torrents Deleted", Value: strconv.Itoa(stats.Deleted), Inline: true},
		{Name: "Torrents Kept", Value: strconv.Itoa(stats.Kept), Inline: true},
	}

	if stats.HardlinksAttempted > 0 || stats.HardlinksFixed > 0 {
		fields = append(fields,
			embedField{Name: "Hardlinks Fixed", Value: strconv.Itoa(stats.HardlinksFixed), Inline: true},
			embedField{Name: "Hardlinks Failed", Value: strconv.Itoa(stats.HardlinksFailed), Inline: true},
		)
	}

	fields = append(fields, embedField{
		Name: "Orphaned Files Found", Value: strconv.Itoa(stats.OrphanedFilesFound), Inline: true,
	})

	if len(stats.Errors) > 0 {
		fields = append(fields, embedField{
			Name: "Errors", Value: strconv.Itoa(len(stats.Errors)), Inline: true,
		})
	}

	if value := spaceSavedValue(stats); value != "" {
		fields = append(fields, embedField{Name: "Space Saved", Value: value, Inline: true})
	}

	if len(stats.DeletionReasons) > 0 {
		reasons := make([]string, 0, len(stats.DeletionReasons))
		for reason := range stats.DeletionReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		var sb strings.Builder
		for _, reason := range reasons {
			fmt.Fprintf(&sb, "• %s: %d\n", reason, stats.DeletionReasons[reason])
		}
		fields = append(fields, embedField{Name: "Deletion Reasons", Value: strings.TrimRight(sb.String(), "\n")})
	}

	if len(stats.DeletedTorrents) > 0 {
		listed := stats.DeletedTorrents
		if len(listed) > maxListedTorrents {
			listed = listed[:maxListedTorrents]
		}

		var sb strings.Builder
		for _, name := range listed {
			fmt.Fprintf(&sb, "• %s\n", name)
		}
		if extra := len(stats.DeletedTorrents) - maxListedTorrents; extra > 0 {
			fmt.Fprintf(&sb, "... and %d more", extra)
		}
		fields = append(fields, embedField{Name: "Deleted Torrents", Value: strings.TrimRight(sb.String(), "\n")})
	}

	now := time.Now()
	return embed{
		Title:       title,
		Description: "Run completed at " + now.Format("2006-01-02 15:04:05"),
		Color:       color,
		Fields:      fields,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer:      &embedFooter{Text: footerText},
	}
}

func spaceSavedValue(stats *domain.RunStats) string {
	total := stats.SpaceFreed() + stats.SpaceSavedHardlinks
	if total <= 0 {
		return ""
	}

	var parts []string
	if stats.SpaceFreedDeadTracker > 0 {
		parts = append(parts, "Dead trackers: "+humanize.IBytes(uint64(stats.SpaceFreedDeadTracker)))
	}
	if stats.SpaceFreedCriteria > 0 {
		parts = append(parts, "Criteria: "+humanize.IBytes(uint64(stats.SpaceFreedCriteria)))
	}
	if stats.SpaceSavedHardlinks > 0 {
		parts = append(parts, "Hardlinks: "+humanize.IBytes(uint64(stats.SpaceSavedHardlinks)))
	}

	value := humanize.IBytes(uint64(total))
	if len(parts) > 1 {
		value += "\n(" + strings.Join(parts, ", ") + ")"
	}
	return value
}

func (d *discordService) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal Discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build Discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Transport errors embed the webhook URL, and the URL embeds the token.
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send Discord notification: %w", redact.URLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
