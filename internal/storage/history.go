// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/driveagent/internal/drive"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS syncs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	state       TEXT NOT NULL,
	file_count  INTEGER NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL DEFAULT '',
	item_count  INTEGER NOT NULL DEFAULT 0,
	items_json  TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_syncs_started ON syncs(started_at DESC);
`

// ErrInvalidRecord is returned by Record for a record without ID or state.
var ErrInvalidRecord = errors.New("sync record needs an id and a state")

// SyncRecord is one journaled sync attempt.
type SyncRecord struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	State      string           `json:"state"`
	FileCount  int              `json:"file_count"`
	Reason     string           `json:"reason,omitempty"`
	Items      []drive.Snapshot `json:"items"`
}

// Duration is how long the attempt took, or 0 if it never finished.
func (r SyncRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// History is the sync journal.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the journal at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record inserts or replaces the row for rec.ID.
func (h *History) Record(ctx context.Context, rec SyncRecord) error {
	if rec.ID == "" || rec.State == "" {
		return ErrInvalidRecord
	}
	items := rec.Items
	if items == nil {
		items = []drive.Snapshot{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}

	var finished sql.NullInt64
	if !rec.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: rec.FinishedAt.UnixMilli(), Valid: true}
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO syncs
			(id, started_at, finished_at, state, file_count, reason, item_count, items_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UnixMilli(), finished, rec.State,
		rec.FileCount, rec.Reason, len(items), string(itemsJSON),
	)
	if err != nil {
		return fmt.Errorf("record sync %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 means all.
func (h *History) Recent(ctx context.Context, limit int) ([]SyncRecord, error) {
	query := `SELECT id, started_at, finished_at, state, file_count, reason, items_json
		FROM syncs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []SyncRecord{}
	for rows.Next() {
		var (
			rec       SyncRecord
			started   int64
			finished  sql.NullInt64
			itemsJSON string
		)
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.State, &rec.FileCount, &rec.Reason, &itemsJSON); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			rec.FinishedAt = time.UnixMilli(finished.Int64)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
			return nil, fmt.Errorf("sync %s: bad items: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of journaled attempts.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM syncs").Scan(&n)
	return n, err
}

// Clear deletes every record.
func (h *History) Clear(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx, "DELETE FROM syncs")
	return err
}
