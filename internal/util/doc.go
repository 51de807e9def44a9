// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the storage, session and
// presentation packages.
//
// File Operations:
//   - AtomicWriteFile: crash-safe replace of a file (temp file, fsync, rename)
//
// Display:
//   - TruncateWidth, PadRight, StringWidth: column-aware text fitting for
//     file names in listings and the interactive browser
package util
