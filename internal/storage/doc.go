// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists what driveagent keeps locally: chat transcripts
// and a journal of sync attempts.
//
// # Transcripts
//
// One JSON file per conversation, written atomically:
//
//	store, err := storage.NewTranscriptStore(cfg.ConversationsDir())
//	id, err := store.Save(transcript)
//	metas, err := store.List() // newest first
//
// # Sync history
//
// A SQLite database (pure Go driver) with one row per attempt:
//
//	hist, err := storage.OpenHistory(cfg.HistoryDB())
//	defer hist.Close()
//	err = hist.Record(ctx, rec)
//	recent, err := hist.Recent(ctx, 20)
package storage
