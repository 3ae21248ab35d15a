// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/mediatrack/notifier/internal/logging"
)

// DLQEntry is one dead-lettered message as persisted for inspection and
// manual replay.
type DLQEntry struct {
	// ID is the UUID of the dead-lettered message.
	ID             string            `json:"id"`
	EventID        string            `json:"eventId,omitempty"`
	Kind           string            `json:"kind,omitempty"`
	PartitionKey   string            `json:"partitionKey,omitempty"`
	Topic          string            `json:"topic"`
	Handler        string            `json:"handler"`
	Reason         string            `json:"reason"`
	Category       ErrorCategory     `json:"-"`
	CategoryName   string            `json:"category"`
	Payload        string            `json:"payload"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	DeadLetteredAt time.Time         `json:"deadLetteredAt"`
	ReplayCount    int               `json:"replayCount"`
	LastReplayedAt *time.Time        `json:"lastReplayedAt,omitempty"`
}

// DLQStats holds a snapshot of the dead-letter store.
type DLQStats struct {
	TotalEntries int64
	OldestEntry  time.Time
}

// DLQStore persists dead-lettered messages.
type DLQStore interface {
	// Save stores an entry once. A second save of the same id reports
	// created=false.
	Save(ctx context.Context, entry *DLQEntry) (created bool, err error)
	Get(ctx context.Context, id string) (*DLQEntry, error)
	List(ctx context.Context, limit int) ([]*DLQEntry, error)
	Delete(ctx context.Context, id string) error
	MarkReplayed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
	Stats(ctx context.Context) (DLQStats, error)
}

// DuckDBDLQStore implements DLQStore using DuckDB so entries survive
// restarts.
type DuckDBDLQStore struct {
	db *sql.DB
}

// NewDuckDBDLQStore creates a new DuckDB-backed DLQ store.
// The caller must call CreateTable() to ensure the schema exists.
func NewDuckDBDLQStore(db *sql.DB) *DuckDBDLQStore {
	return &DuckDBDLQStore{db: db}
}

// CreateTable creates the dlq_entries table if it doesn't exist.
func (s *DuckDBDLQStore) CreateTable(ctx context.Context) error {
	// DuckDB doesn't support multi-statement execution.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dlq_entries (
			id VARCHAR PRIMARY KEY,
			event_id VARCHAR NOT NULL DEFAULT '',
			kind VARCHAR NOT NULL DEFAULT '',
			partition_key VARCHAR NOT NULL DEFAULT '',
			topic VARCHAR NOT NULL,
			handler VARCHAR NOT NULL DEFAULT '',
			reason VARCHAR NOT NULL,
			category INTEGER NOT NULL DEFAULT 0,
			payload VARCHAR NOT NULL,
			metadata VARCHAR NOT NULL DEFAULT '{}',
			dead_lettered_at TIMESTAMP NOT NULL,
			replay_count INTEGER NOT NULL DEFAULT 0,
			last_replayed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_dead_lettered_at ON dlq_entries(dead_lettered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_event_id ON dlq_entries(event_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute DLQ schema statement: %w", err)
		}
	}

	logging.Info().Msg("DLQ entries table created/verified")
	return nil
}

const dlqColumns = `id, event_id, kind, partition_key, topic, handler, reason, category,
	payload, metadata, dead_lettered_at, replay_count, last_replayed_at`

// Save persists a DLQ entry. Redelivery of the same dead-lettered message
// does not create a second row.
func (s *DuckDBDLQStore) Save(ctx context.Context, entry *DLQEntry) (bool, error) {
	if entry == nil || entry.ID == "" {
		return false, errors.New("entry and entry id cannot be empty")
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dlq_entries (
			id, event_id, kind, partition_key, topic, handler, reason, category,
			payload, metadata, dead_lettered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		entry.EventID,
		entry.Kind,
		entry.PartitionKey,
		entry.Topic,
		entry.Handler,
		entry.Reason,
		int(entry.Category),
		entry.Payload,
		string(metadata),
		entry.DeadLetteredAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save DLQ entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save DLQ entry: %w", err)
	}
	return n == 1, nil
}

// Get retrieves a DLQ entry by id.
func (s *DuckDBDLQStore) Get(ctx context.Context, id string) (*DLQEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dlqColumns+` FROM dlq_entries WHERE id = ?`, id)
	entry, err := scanDLQEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDLQEntryNotFound
	}
	return entry, err
}

// List returns the newest entries first.
func (s *DuckDBDLQStore) List(ctx context.Context, limit int) ([]*DLQEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dlqColumns+` FROM dlq_entries ORDER BY dead_lettered_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list DLQ entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*DLQEntry, 0)
	for rows.Next() {
		entry, err := scanDLQEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate DLQ entries: %w", err)
	}
	return entries, nil
}

// Delete removes an entry by id.
func (s *DuckDBDLQStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dlq_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}
	if n == 0 {
		return ErrDLQEntryNotFound
	}
	return nil
}

// MarkReplayed records a manual replay.
func (s *DuckDBDLQStore) MarkReplayed(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dlq_entries
		SET replay_count = replay_count + 1, last_replayed_at = ?
		WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update DLQ entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update DLQ entry: %w", err)
	}
	if n == 0 {
		return ErrDLQEntryNotFound
	}
	return nil
}

// DeleteExpired removes entries dead-lettered before olderThan.
func (s *DuckDBDLQStore) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dlq_entries WHERE dead_lettered_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired DLQ entries: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns the entry count and the oldest entry time.
func (s *DuckDBDLQStore) Stats(ctx context.Context) (DLQStats, error) {
	var stats DLQStats
	var oldest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(dead_lettered_at) FROM dlq_entries`).Scan(&stats.TotalEntries, &oldest)
	if err != nil {
		return stats, fmt.Errorf("failed to read DLQ stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestEntry = oldest.Time
	}
	return stats, nil
}

type dlqScanner interface {
	Scan(dest ...any) error
}

func scanDLQEntry(s dlqScanner) (*DLQEntry, error) {
	var (
		e        DLQEntry
		category int
		metadata string
		replayed sql.NullTime
	)
	err := s.Scan(
		&e.ID, &e.EventID, &e.Kind, &e.PartitionKey, &e.Topic, &e.Handler, &e.Reason, &category,
		&e.Payload, &metadata, &e.DeadLetteredAt, &e.ReplayCount, &replayed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan DLQ entry: %w", err)
	}
	e.Category = ErrorCategory(category)
	e.CategoryName = e.Category.String()
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal DLQ metadata: %w", err)
		}
	}
	if replayed.Valid {
		t := replayed.Time
		e.LastReplayedAt = &t
	}
	return &e, nil
}
