// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads and validates the qsweep configuration from
// config.toml, with environment overrides under the QSWEEP__ prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/autobrr/qsweep/internal/criteria"
)

const envPrefix = "QSWEEP__"

var defaultDeadTrackerMessages = []string{
	"unregistered torrent",
	"torrent not registered",
	"torrent not found",
	"unregistered",
}

var defaultMediaExtensions = []string{
	".mkv", ".mp4", ".avi", ".mov", ".m4v", ".wmv", ".flv", ".webm", ".ts", ".m2ts",
}

// Config holds the settings of one qsweep run.
type Config struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	TorrentDir      string `mapstructure:"torrentDir"`
	MediaLibraryDir string `mapstructure:"mediaLibraryDir"`
	DataDir         string `mapstructure:"dataDir"`

	DeleteCriteria      string   `mapstructure:"deleteCriteria"`
	DryRun              bool     `mapstructure:"dryRun"`
	FixHardlinks        bool     `mapstructure:"fixHardlinks"`
	DeleteDeadTrackers  bool     `mapstructure:"deleteDeadTrackers"`
	DeadTrackerMessages []string `mapstructure:"deadTrackerMessages"`
	MediaExtensions     []string `mapstructure:"mediaExtensions"`

	EnableCache bool   `mapstructure:"enableCache"`
	CacheDBPath string `mapstructure:"cacheDbPath"`
	HashWorkers int    `mapstructure:"hashWorkers"`

	DiscordWebhookURL string `mapstructure:"discordWebhookUrl"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`
}

// AppConfig wraps the parsed Config together with its viper instance and
// the log manager for the process.
type AppConfig struct {
	Config *Config

	viper      *viper.Viper
	configDir  string
	logManager *LogManager
}

// New loads the configuration from configDir (or the default config
// directory when empty), generating a commented config.toml on first run.
// Environment variables override file values.
func New(configDir, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper:      viper.New(),
		logManager: NewLogManager(version),
	}

	if configDir == "" {
		configDir = GetDefaultConfigDir()
	}
	c.configDir = configDir

	c.viper.SetConfigName("config")
	c.viper.SetConfigType("toml")
	c.viper.AddConfigPath(configDir)

	c.setDefaults()
	c.bindEnvOverrides()

	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AppConfig) setDefaults() {
	c.viper.SetDefault("host", "http://localhost:8080")
	c.viper.SetDefault("username", "")
	c.viper.SetDefault("password", "")
	c.viper.SetDefault("torrentDir", "/data/torrents")
	c.viper.SetDefault("mediaLibraryDir", "/data/media")
	c.viper.SetDefault("dataDir", "")
	c.viper.SetDefault("deleteCriteria", "30d 2.0")
	c.viper.SetDefault("dryRun", true)
	c.viper.SetDefault("fixHardlinks", true)
	c.viper.SetDefault("deleteDeadTrackers", true)
	c.viper.SetDefault("deadTrackerMessages", defaultDeadTrackerMessages)
	c.viper.SetDefault("mediaExtensions", defaultMediaExtensions)
	c.viper.SetDefault("enableCache", true)
	c.viper.SetDefault("cacheDbPath", "")
	c.viper.SetDefault("hashWorkers", 4)
	c.viper.SetDefault("discordWebhookUrl", "")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
}

func (c *AppConfig) bindEnvOverrides() {
	bindings := map[string]string{
		"host":                envPrefix + "HOST",
		"username":            envPrefix + "USERNAME",
		"password":            envPrefix + "PASSWORD",
		"torrentDir":          envPrefix + "TORRENT_DIR",
		"mediaLibraryDir":     envPrefix + "MEDIA_LIBRARY_DIR",
		"dataDir":             envPrefix + "DATA_DIR",
		"deleteCriteria":      envPrefix + "DELETE_CRITERIA",
		"dryRun":              envPrefix + "DRY_RUN",
		"fixHardlinks":        envPrefix + "FIX_HARDLINKS",
		"deleteDeadTrackers":  envPrefix + "DELETE_DEAD_TRACKERS",
		"deadTrackerMessages": envPrefix + "DEAD_TRACKER_MESSAGES",
		"mediaExtensions":     envPrefix + "MEDIA_EXTENSIONS",
		"enableCache":         envPrefix + "ENABLE_CACHE",
		"cacheDbPath":         envPrefix + "CACHE_DB_PATH",
		"hashWorkers":         envPrefix + "HASH_WORKERS",
		"discordWebhookUrl":   envPrefix + "DISCORD_WEBHOOK_URL",
		"logLevel":            envPrefix + "LOG_LEVEL",
		"logPath":             envPrefix + "LOG_PATH",
		"logMaxSize":          envPrefix + "LOG_MAX_SIZE",
		"logMaxBackups":       envPrefix + "LOG_MAX_BACKUPS",
	}
	for key, env := range bindings {
		c.viper.BindEnv(key, env) //nolint:errcheck // only fails on empty key
	}
}

func (c *AppConfig) load() error {
	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
		if _, _, err := WriteDefaultConfig(c.configDir); err != nil {
			return err
		}
		if err := c.viper.ReadInConfig(); err != nil {
			return errors.Wrap(err, "failed to read generated config file")
		}
	}

	cfg := &Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	c.Config = cfg
	return nil
}

// Validate checks the settings a cleanup run requires. Called before any
// client connection so a malformed criteria string fails the run up front.
func (c *AppConfig) Validate() error {
	cfg := c.Config

	if cfg.Host == "" {
		return errors.New("host is required")
	}
	if cfg.Username == "" {
		return errors.New("username is required")
	}

	if cfg.TorrentDir == "" {
		return errors.New("torrentDir is required")
	}
	if err := requireDirectory("torrentDir", cfg.TorrentDir); err != nil {
		return err
	}

	if cfg.FixHardlinks && cfg.MediaLibraryDir == "" {
		return errors.New("mediaLibraryDir is required when fixHardlinks is enabled")
	}
	if cfg.MediaLibraryDir != "" {
		if err := requireDirectory("mediaLibraryDir", cfg.MediaLibraryDir); err != nil {
			return err
		}
	}

	if cfg.DeleteCriteria != "" {
		if _, err := criteria.Parse(cfg.DeleteCriteria); err != nil {
			return errors.Wrap(err, "invalid deleteCriteria")
		}
	}

	if cfg.HashWorkers < 1 {
		return errors.New("hashWorkers must be at least 1")
	}

	return nil
}

func requireDirectory(key, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "%s does not exist: %s", key, path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %s", key, path)
	}
	return nil
}

// Criteria parses the configured deleteCriteria string. An empty string
// yields an empty set, which never matches.
func (c *AppConfig) Criteria() (criteria.Set, error) {
	if c.Config.DeleteCriteria == "" {
		return criteria.Set{}, nil
	}
	return criteria.Parse(c.Config.DeleteCriteria)
}

// NormalizedMediaExtensions returns the configured media extensions
// lowercased with a leading dot.
func (c *AppConfig) NormalizedMediaExtensions() []string {
	exts := make([]string, 0, len(c.Config.MediaExtensions))
	for _, ext := range c.Config.MediaExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// ConfigDir returns the directory the config file lives in.
func (c *AppConfig) ConfigDir() string {
	return c.configDir
}

// DataDir returns the base directory for runtime state (cache, lock file,
// logs). Defaults to the config directory.
func (c *AppConfig) DataDir() string {
	if c.Config.DataDir == "" {
		return c.configDir
	}
	return c.Config.DataDir
}

// CacheDatabasePath resolves the hash cache location: cacheDbPath when
// set (relative paths resolve against DataDir), <dataDir>/cache.db
// otherwise.
func (c *AppConfig) CacheDatabasePath() string {
	if c.Config.CacheDBPath != "" {
		if filepath.IsAbs(c.Config.CacheDBPath) {
			return c.Config.CacheDBPath
		}
		return filepath.Join(c.DataDir(), c.Config.CacheDBPath)
	}
	return filepath.Join(c.DataDir(), "cache.db")
}

// LockFilePath returns the run lock path. One run at a time owns the
// cache store; the lock enforces that across overlapping cron firings.
func (c *AppConfig) LockFilePath() string {
	return filepath.Join(c.DataDir(), "qsweep.lock")
}

// ResolveLogPath resolves a log path against DataDir. Empty stays empty
// (console-only logging), absolute paths pass through.
func (c *AppConfig) ResolveLogPath(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir(), path)
}

// ApplyLogConfig configures the global logger from the loaded settings.
func (c *AppConfig) ApplyLogConfig() error {
	return c.logManager.Apply(
		c.Config.LogLevel,
		c.ResolveLogPath(c.Config.LogPath),
		c.Config.LogMaxSize,
		c.Config.LogMaxBackups,
	)
}

// LogManager returns the process log manager.
func (c *AppConfig) LogManager() *LogManager {
	return c.logManager
}

// GetDefaultConfigDir returns the default configuration directory:
// $XDG_CONFIG_HOME/qsweep (or /config as-is for the Docker volume
// convention), %APPDATA%\qsweep on Windows, ~/.config/qsweep otherwise.
func GetDefaultConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if xdgConfig == "/config" {
			return "/config"
		}
		return filepath.Join(xdgConfig, "qsweep")
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "qsweep")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "qsweep")
}

// WriteDefaultConfig writes the commented template to dir/config.toml.
// An existing file is never overwritten. Returns the config path and
// whether a new file was created.
func WriteDefaultConfig(dir string) (string, bool, error) {
	if dir == "" {
		dir = GetDefaultConfigDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, errors.Wrapf(err, "failed to create config directory %s", dir)
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, errors.Wrapf(err, "failed to check config file %s", path)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return "", false, errors.Wrapf(err, "failed to write config file %s", path)
	}
	return path, true, nil
}
