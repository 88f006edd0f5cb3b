// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips credentials from URLs and errors before they hit
// the logs: qBittorrent hosts may carry userinfo passwords and Discord
// webhook URLs embed their token in the path.
package redact

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveParams lists query parameter names whose values are redacted
// (case-insensitive).
var sensitiveParams = []string{"apikey", "api_key", "passkey", "token", "password"}

// sensitiveParamRegex is the fallback for strings that do not parse as
// URLs.
var sensitiveParamRegex = regexp.MustCompile(`(?i)(apikey|api_key|passkey|token|password)=([^&\s]*)`)

// webhookPathRegex matches the token segment of a Discord webhook path,
// /api/webhooks/{id}/{token}.
var webhookPathRegex = regexp.MustCompile(`(/api/webhooks/[^/\s]+/)([^/?#\s]+)`)

// userinfoPasswordRegex matches user:password@ patterns in URLs.
var userinfoPasswordRegex = regexp.MustCompile(`(://[^/:@\s]+):([^@\s]+)@`)

// URLString redacts credentials in a URL string: userinfo passwords,
// webhook tokens and known sensitive query parameters. Unparseable input
// falls back to regex redaction.
func URLString(raw string) string {
	if raw == "" {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return String(raw)
	}

	modified := false

	if parsed.User != nil {
		if _, hasPass := parsed.User.Password(); hasPass {
			parsed.User = url.UserPassword(parsed.User.Username(), "REDACTED")
			modified = true
		}
	}

	if strings.Contains(parsed.Path, "/api/webhooks/") {
		newPath := webhookPathRegex.ReplaceAllString(parsed.Path, "${1}REDACTED")
		if newPath != parsed.Path {
			parsed.Path = newPath
			parsed.RawPath = "" // Clear RawPath to force re-encoding
			modified = true
		}
	}

	query := parsed.Query()
	for _, param := range sensitiveParams {
		// url.Values keys are case-sensitive, check every variation
		for key := range query {
			if strings.EqualFold(key, param) {
				query[key] = []string{"REDACTED"}
				modified = true
			}
		}
	}

	if !modified {
		return raw
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// URLError returns err with the URL inside any wrapped *url.Error
// redacted. Other errors pass through unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: URLString(urlErr.URL),
			Err: urlErr.Err,
		}
	}

	return err
}

// String redacts URL credentials in arbitrary text using the regex
// fallbacks. Useful for error messages that embed URL fragments.
func String(s string) string {
	if s == "" {
		return s
	}
	result := sensitiveParamRegex.ReplaceAllString(s, "${1}=REDACTED")
	result = userinfoPasswordRegex.ReplaceAllString(result, "${1}:REDACTED@")
	result = webhookPathRegex.ReplaceAllString(result, "${1}REDACTED")
	return result
}
