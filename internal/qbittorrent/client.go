// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent wraps the qBittorrent Web API behind a small client
// with bounded retries. All torrent metadata this tool ever reads flows
// through here.
package qbittorrent

import (
	"context"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
	retryJitter   = 500 * time.Millisecond

	// requestTimeout caps a single API call; listing torrents on large
	// instances can be slow.
	requestTimeout = 60
)

// Config for connecting to a qBittorrent instance.
type Config struct {
	Host     string
	Username string
	Password string
}

// Client is the retrying qBittorrent API wrapper. Transient failures are
// retried with backoff; context cancellation aborts immediately. Exhausted
// retries surface as errors for the caller to scope: a failed per-torrent
// call skips that torrent, it never kills the run.
type Client struct {
	qbt *qbt.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		qbt: qbt.NewClient(qbt.Config{
			Host:     cfg.Host,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  requestTimeout,
		}),
	}
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return retry.Unrecoverable(err)
			}
			return fn()
		},
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n).Str("operation", op).Msg("retrying qBittorrent call")
		}),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(retryJitter),
		retry.LastErrorOnly(true),
	)
}

// Login authenticates against the Web API.
func (c *Client) Login(ctx context.Context) error {
	err := c.withRetry(ctx, "login", func() error {
		return c.qbt.LoginCtx(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "login to qBittorrent")
	}
	return nil
}

// ListTorrents returns every torrent known to the instance.
func (c *Client) ListTorrents(ctx context.Context) ([]qbt.Torrent, error) {
	var torrents []qbt.Torrent
	err := c.withRetry(ctx, "list torrents", func() error {
		var err error
		torrents, err = c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Filter: qbt.TorrentFilterAll})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "get torrents")
	}
	return torrents, nil
}

// ListFiles returns the file listing of one torrent.
func (c *Client) ListFiles(ctx context.Context, hash string) (*qbt.TorrentFiles, error) {
	var files *qbt.TorrentFiles
	err := c.withRetry(ctx, "list files", func() error {
		var err error
		files, err = c.qbt.GetFilesInformationCtx(ctx, hash)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get files for %s", hash)
	}
	return files, nil
}

// ListTrackers returns the tracker rows of one torrent, including the
// DHT/PeX/LSD pseudo entries.
func (c *Client) ListTrackers(ctx context.Context, hash string) ([]qbt.TorrentTracker, error) {
	var trackers []qbt.TorrentTracker
	err := c.withRetry(ctx, "list trackers", func() error {
		var err error
		trackers, err = c.qbt.GetTorrentTrackersCtx(ctx, hash)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get trackers for %s", hash)
	}
	return trackers, nil
}

// Delete removes the torrents and, when deleteFiles is set, their data.
// Callers gate this behind dry-run; the client does not.
func (c *Client) Delete(ctx context.Context, hashes []string, deleteFiles bool) error {
	err := c.withRetry(ctx, "delete torrents", func() error {
		return c.qbt.DeleteTorrentsCtx(ctx, hashes, deleteFiles)
	})
	if err != nil {
		return errors.Wrapf(err, "delete torrents %v", hashes)
	}
	return nil
}

// Pause stops the given torrents.
func (c *Client) Pause(ctx context.Context, hashes []string) error {
	err := c.withRetry(ctx, "pause torrents", func() error {
		return c.qbt.PauseCtx(ctx, hashes)
	})
	if err != nil {
		return errors.Wrapf(err, "pause torrents %v", hashes)
	}
	return nil
}

// Resume restarts the given torrents.
func (c *Client) Resume(ctx context.Context, hashes []string) error {
	err := c.withRetry(ctx, "resume torrents", func() error {
		return c.qbt.ResumeCtx(ctx, hashes)
	})
	if err != nil {
		return errors.Wrapf(err, "resume torrents %v", hashes)
	}
	return nil
}
