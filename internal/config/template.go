// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

const configTemplate = `# config.toml - Auto-generated

# qBittorrent WebUI URL
#
# Default: "http://localhost:8080"
#
host = "http://localhost:8080"

# qBittorrent WebUI credentials
#
username = ""
password = ""

# Torrent data directory as qsweep sees it. Must match the save paths
# reported by qBittorrent (same mount inside a container).
#
# Default: "/data/torrents"
#
torrentDir = "/data/torrents"

# Media library root. Files here are checked against torrent files to
# decide whether a torrent is preserved by hardlinks. Must be on the
# same filesystem as torrentDir for hardlink fixing to work.
#
# Default: "/data/media"
#
mediaLibraryDir = "/data/media"

# Deletion criteria: pipe-separated alternatives, each a seeding age
# with an optional minimum ratio. A torrent (or its hardlink group) is
# deleted when any alternative is satisfied.
#
# Examples:
#   "30d 2.0"          delete after 30 days seeded at ratio 2.0
#   "30d 2.0|90d"      ... or after 90 days regardless of ratio
#   "2w 1.5|3m"        weeks, months and years are accepted
#   ""                 disable criteria-based deletion entirely
#
# Default: "30d 2.0"
#
deleteCriteria = "30d 2.0"

# Report what would be deleted without deleting anything.
#
# Default: true
#
dryRun = true

# Repair missing hardlinks by relinking identical torrent files to
# their media library copies before retention is evaluated.
#
# Default: true
#
fixHardlinks = true

# Delete torrents whose trackers all report the torrent as gone.
#
# Default: true
#
deleteDeadTrackers = true

# Tracker status messages that mark a torrent as dead. Matching is
# case-insensitive and exact.
#
deadTrackerMessages = [
  "unregistered torrent",
  "torrent not registered",
  "torrent not found",
  "unregistered",
]

# File extensions treated as media for hardlink grouping.
#
mediaExtensions = [
  ".mkv", ".mp4", ".avi", ".mov", ".m4v", ".wmv", ".flv", ".webm", ".ts", ".m2ts",
]

# Base directory for runtime state (hash cache, run lock, logs).
# Defaults to the config directory when empty.
#
#dataDir = ""

# Persistent file hash cache. Speeds up repeated runs considerably.
#
# Default: true
#
enableCache = true

# Hash cache database location, relative paths resolve against dataDir.
# Defaults to <dataDir>/cache.db when empty.
#
#cacheDbPath = ""

# Worker count for per-torrent metadata fetching and file checks.
#
# Default: 4
#
hashWorkers = 4

# Discord webhook for run summaries. Leave empty to disable.
#
#discordWebhookUrl = ""

# Log level: TRACE, DEBUG, INFO, WARN, ERROR
#
# Default: "INFO"
#
logLevel = "INFO"

# Optional log file, relative paths resolve against dataDir.
# Console logging stays active either way.
#
#logPath = "log/qsweep.log"

# Max log file size in MB before rotation
#
# Default: 50
#
#logMaxSize = 50

# Rotated log files to keep
#
# Default: 3
#
#logMaxBackups = 3
`
