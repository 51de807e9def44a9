// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger shared by every driveagent package.
//
// Log lines go to a rotating JSON file under the config directory and,
// with --verbose, to stderr. Packages receive a *zap.Logger and name it
// after themselves (logger.Named("syncstream")).
package logging
