// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - "driveagent config": view and modify configuration.
//
// Subcommands:
//   show (default)      Effective configuration, env overrides included
//   get <key>           One value, e.g. backend.url
//   set <key> <value>   Write a value to config.toml
//   keys                List settable keys
//   path                Show configuration file path
//
// Examples:
//   driveagent config set backend.url http://10.0.0.5:5678
//   driveagent config set backend.stream_idle_timeout 5m
//   driveagent config get ui.theme --json

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jeranaias/driveagent/internal/config"
)

// HandleConfig handles "driveagent config". It does not need the backend,
// so it works before the first login.
func HandleConfig(args Args) error {
	return runConfig(os.Stdout, args.JSON, NewArgParser(args.Raw))
}

func runConfig(w io.Writer, jsonMode bool, p *ArgParser) error {
	switch sub := p.Subcommand(); sub {
	case "", "show":
		return configShow(w, jsonMode)
	case "get":
		return configGet(w, jsonMode, p.Positional(1))
	case "set":
		if p.PositionalCount() < 3 {
			return ErrMissingArgument("value", "driveagent config set backend.url http://localhost:5678")
		}
		return configSet(w, jsonMode, p.Positional(1), p.Positional(2))
	case "keys":
		return configKeys(w, jsonMode)
	case "path":
		return configPath(w, jsonMode)
	default:
		return &ValidationError{
			Field:   "config subcommand",
			Value:   sub,
			Reason:  "expected show, get, set, keys or path",
			Example: "driveagent config get backend.url",
		}
	}
}

func configShow(w io.Writer, jsonMode bool) error {
	cfg, err := config.Load()
	if err != nil {
		return NewCommandError("config", "load", "could not read configuration", err)
	}
	if jsonMode {
		return NewJSONResponse("config", cfg).Write(w)
	}

	keys := config.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fprintf(w, "%s%s\n", LabelStyle.Copy().Width(30).Render(key), ValueStyle.Render(fmt.Sprint(val)))
	}
	return nil
}

func configGet(w io.Writer, jsonMode bool, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "driveagent config get backend.url")
	}
	cfg, err := config.Load()
	if err != nil {
		return NewCommandError("config", "load", "could not read configuration", err)
	}
	val, err := cfg.Get(key)
	if err != nil {
		return NewValidationError("key", key, err.Error())
	}
	if jsonMode {
		return NewJSONResponse("config", map[string]interface{}{"key": key, "value": val}).Write(w)
	}
	fprintf(w, "%v\n", val)
	return nil
}

// configSet edits the file as written, without environment overrides, so
// a DRIVEAGENT_URL in the shell never ends up persisted.
func configSet(w io.Writer, jsonMode bool, key, value string) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return NewCommandError("config", "set", "no config directory", err)
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return NewCommandError("config", "load", "could not read "+path, err)
		}
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError("key", key, err.Error())
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		var verrs config.ValidateErrors
		if errors.As(err, &verrs) {
			return NewValidationError(verrs[0].Field, value, verrs[0].Message)
		}
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return NewCommandError("config", "set", "could not create config directory", err)
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "save", "could not write "+path, err)
	}

	if jsonMode {
		return NewJSONResponse("config", map[string]string{"key": key, "value": value, "path": path}).Write(w)
	}
	fprintf(w, "%s %s = %s\n", RenderStatus("ok"), key, value)
	return nil
}

func configKeys(w io.Writer, jsonMode bool) error {
	keys := config.Keys()
	sort.Strings(keys)
	if jsonMode {
		return NewJSONResponse("config", keys).Write(w)
	}
	for _, k := range keys {
		fprintf(w, "%s\n", k)
	}
	return nil
}

func configPath(w io.Writer, jsonMode bool) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return NewCommandError("config", "path", "no config directory", err)
	}
	if jsonMode {
		_, statErr := os.Stat(path)
		return NewJSONResponse("config", map[string]interface{}{"path": path, "exists": statErr == nil}).Write(w)
	}
	fprintf(w, "%s\n", path)
	return nil
}
