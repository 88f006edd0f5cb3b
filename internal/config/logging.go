// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogManager owns the global logger configuration for the process:
// console output from startup, plus an optional rotating file once the
// config has been read.
type LogManager struct {
	version     string
	mu          sync.Mutex
	rotator     io.Closer
	initialized atomic.Bool
}

// NewLogManager creates a LogManager with the given version string.
func NewLogManager(version string) *LogManager {
	return &LogManager{version: version}
}

// Initialize sets up console logging at INFO. Called once at startup,
// before the config file is available. The logger itself stays at trace
// so the global level can be tightened or loosened later without
// rebuilding log.Logger.
func (lm *LogManager) Initialize() {
	if lm.initialized.Swap(true) {
		return
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter()).Level(zerolog.TraceLevel)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Debug().Str("version", lm.version).Msg("logger initialized")
}

// Apply updates the log level and output destinations from the loaded
// settings. Returns an error if file logging is requested but the log
// directory cannot be created.
func (lm *LogManager) Apply(level, logPath string, maxSize, maxBackups int) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	setLogLevel(level)

	writer, closer, err := buildWriter(baseLogWriter(), logPath, maxSize, maxBackups)
	if err != nil {
		return err
	}

	log.Logger = log.Logger.Output(writer)

	if lm.rotator != nil {
		if closeErr := lm.rotator.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("Failed to close old log rotator")
		}
	}
	lm.rotator = closer
	return nil
}

// Close releases the file rotator, if any. Called at process exit.
func (lm *LogManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.rotator == nil {
		return nil
	}
	err := lm.rotator.Close()
	lm.rotator = nil
	return err
}

func baseLogWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
}

func buildWriter(baseWriter io.Writer, logPath string, maxSize, maxBackups int) (io.Writer, io.Closer, error) {
	if logPath == "" {
		return baseWriter, nil, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
	return io.MultiWriter(baseWriter, rotator), rotator, nil
}

func setLogLevel(level string) {
	switch canonicalizeLogLevel(level) {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
}

// canonicalizeLogLevel normalizes a log level string to uppercase.
// Returns "INFO" if the level is empty or invalid.
func canonicalizeLogLevel(level string) string {
	normalized := strings.ToUpper(strings.TrimSpace(level))
	switch normalized {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
		return normalized
	default:
		return "INFO"
	}
}
