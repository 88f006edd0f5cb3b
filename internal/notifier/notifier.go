// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package notifier sends run summaries to Discord. Without a webhook URL
// configured, a noop implementation is returned so callers never branch.
package notifier

import (
	"context"
	"net/http"
	"time"

	"github.com/autobrr/qsweep/internal/domain"
)

// Service is the notification surface the cleanup run reports through.
type Service interface {
	SendSummary(ctx context.Context, stats *domain.RunStats, dryRun bool) error
	SendError(ctx context.Context, message string) error
}

// NewService builds a Discord-backed notifier when a webhook URL is
// configured, a noop otherwise.
func NewService(webhookURL string) Service {
	if webhookURL == "" {
		return noopService{}
	}
	return &discordService{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type noopService struct{}

func (noopService) SendSummary(context.Context, *domain.RunStats, bool) error { return nil }
func (noopService) SendError(context.Context, string) error                   { return nil }
