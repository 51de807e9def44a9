// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// called concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	t.Setenv("DRIVEAGENT_HOME", t.TempDir())
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Backend.URL = "http://example.test:5678"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend.URL != DefaultBackendURL {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, DefaultBackendURL)
	}
	if cfg.Backend.RequestTimeout.Duration != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Backend.RequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("DRIVEAGENT_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.URL != DefaultBackendURL {
		t.Errorf("Backend.URL = %q, want default", cfg.Backend.URL)
	}
}

func TestLoad_FromTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DRIVEAGENT_HOME", home)

	content := `
[backend]
url = "https://agent.example.com/"
request_timeout = "45s"
stream_idle_timeout = "2m"

[logging]
level = "debug"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.URL != "https://agent.example.com" {
		t.Errorf("Backend.URL = %q, want trailing slash trimmed", cfg.Backend.URL)
	}
	if cfg.Backend.RequestTimeout.Duration != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Backend.RequestTimeout)
	}
	if cfg.Backend.StreamIdleTimeout.Duration != 2*time.Minute {
		t.Errorf("StreamIdleTimeout = %v, want 2m", cfg.Backend.StreamIdleTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// untouched sections keep defaults
	if cfg.UI.Theme != "auto" {
		t.Errorf("UI.Theme = %q, want auto", cfg.UI.Theme)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DRIVEAGENT_HOME", home)

	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("[ui]\ntheme = \"neon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected validation error for theme")
	}
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %v is not ValidateErrors", err)
	}
	if verrs[0].Field != "ui.theme" {
		t.Errorf("Field = %q, want ui.theme", verrs[0].Field)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DRIVEAGENT_URL", "http://10.0.0.5:9000")
	t.Setenv("DRIVEAGENT_TIMEOUT", "5s")
	t.Setenv("DRIVEAGENT_LOG_LEVEL", "warn")
	t.Setenv("DRIVEAGENT_THEME", "dark")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Backend.URL != "http://10.0.0.5:9000" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.RequestTimeout.Duration != 5*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Backend.RequestTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("UI.Theme = %q", cfg.UI.Theme)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative url", func(c *Config) { c.Backend.URL = "localhost" }, "backend.url"},
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://host" }, "backend.url"},
		{"negative timeout", func(c *Config) { c.Backend.RequestTimeout = Duration{-time.Second} }, "backend.request_timeout"},
		{"negative rate", func(c *Config) { c.Backend.RequestsPerSecond = -1 }, "backend.requests_per_second"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			if verrs[0].Field != tc.field {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tc.field)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("backend.url", "http://other:1234"); err != nil {
		t.Fatalf("Set url: %v", err)
	}
	if err := cfg.Set("backend.request_timeout", "12s"); err != nil {
		t.Fatalf("Set timeout: %v", err)
	}
	if err := cfg.Set("backend.requests_per_second", "2.5"); err != nil {
		t.Fatalf("Set rate: %v", err)
	}
	if err := cfg.Set("logging.max_backups", "9"); err != nil {
		t.Fatalf("Set max_backups: %v", err)
	}

	if got, _ := cfg.Get("backend.url"); got != "http://other:1234" {
		t.Errorf("Get url = %v", got)
	}
	if got, _ := cfg.Get("backend.request_timeout"); got != "12s" {
		t.Errorf("Get timeout = %v, want 12s", got)
	}
	if cfg.Backend.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v", cfg.Backend.RequestsPerSecond)
	}
	if cfg.Logging.MaxBackups != 9 {
		t.Errorf("MaxBackups = %d", cfg.Logging.MaxBackups)
	}

	if _, err := cfg.Get("backend.nope"); err == nil {
		t.Error("Get unknown key should fail")
	}
	if err := cfg.Set("backend.request_timeout.x", "1s"); err == nil {
		t.Error("Set into a duration should fail")
	}
	if err := cfg.Set("backend.request_timeout", "soon"); err == nil {
		t.Error("Set invalid duration should fail")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	want := map[string]bool{
		"backend.url":             false,
		"backend.request_timeout": false,
		"session.file":            false,
		"storage.history_db":      false,
		"ui.theme":                false,
	}
	for _, k := range keys {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("Keys() missing %s", k)
		}
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Backend.URL = "https://agent.example.com"
	cfg.Backend.StreamIdleTimeout = Duration{90 * time.Second}
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %o, want 600", info.Mode().Perm())
		}
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Backend.URL != cfg.Backend.URL {
		t.Errorf("URL = %q, want %q", loaded.Backend.URL, cfg.Backend.URL)
	}
	if loaded.Backend.StreamIdleTimeout.Duration != 90*time.Second {
		t.Errorf("StreamIdleTimeout = %v, want 1m30s", loaded.Backend.StreamIdleTimeout)
	}
}

func TestResolvedPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DRIVEAGENT_HOME", home)

	cfg := Default()
	if got := cfg.SessionFile(); got != filepath.Join(home, "session") {
		t.Errorf("SessionFile = %q", got)
	}
	if got := cfg.HistoryDB(); got != filepath.Join(home, "history.db") {
		t.Errorf("HistoryDB = %q", got)
	}

	cfg.Session.File = filepath.Join(home, "custom", "token")
	if got := cfg.SessionFile(); got != cfg.Session.File {
		t.Errorf("SessionFile override = %q", got)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case changed <- c:
			default:
			}
		}, nil)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	cfg := Default()
	cfg.UI.Theme = "dark"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.UI.Theme != "dark" {
			t.Errorf("reloaded theme = %q, want dark", c.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not report the change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
