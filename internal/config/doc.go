// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and persists driveagent settings.
//
// # Sections
//
//   - backend: base URL, request timeout, stream idle timeout, rate limit
//   - session: session token file location
//   - storage: transcript directory and sync history database
//   - logging: level and rotating log file
//   - ui: theme
//
// # Usage
//
//	cfg := config.Global()
//	client := backend.NewClient(backend.ClientConfig{BaseURL: cfg.Backend.URL}, tokens, logger)
//
// Settings can be read and written by dotted key:
//
//	v, _ := cfg.Get("backend.url")
//	_ = cfg.Set("backend.request_timeout", "45s")
//
// Watch reloads the file on change while the interactive browser runs.
package config
