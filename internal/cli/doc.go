// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the driveagent commands. HandleTUI starts the
// interactive browser; the rest are plain terminal commands.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: global flags plus the raw arguments of the command
//   - ArgParser: per-command flag and positional parsing
//   - App: config, logger, session and backend client for one run
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdSync:
//	    err = cli.HandleSync(args)
//	// ...
//	}
//	cli.HandleErrorAndExit(err, args.JSON)
//
// Every command except the browser supports --json, which prints a JSONResponse envelope on
// stdout and keeps human-readable text off it.
package cli
