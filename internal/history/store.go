// Package history keeps a persistent audit log of delivery runs in SQLite,
// backing the /history command and retention-based pruning.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/farid/maktaba/internal/delivery"
)

// Entry is one recorded delivery run
type Entry struct {
	ID        string
	ChatID    int64
	Path      string
	Category  string
	Sent      int
	Total     int
	Cancelled bool
	At        time.Time
}

// Store is the SQLite-backed delivery audit log
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens (and if needed creates) the audit database at dbPath
func New(dbPath string, logger zerolog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("history database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL keeps readers from blocking the recorder.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS deliveries (
		id         TEXT PRIMARY KEY,
		chat_id    INTEGER NOT NULL,
		path       TEXT NOT NULL,
		category   TEXT NOT NULL,
		sent       INTEGER NOT NULL,
		total      INTEGER NOT NULL,
		cancelled  INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_chat ON deliveries(chat_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Record persists one delivery run. It satisfies the pipeline's recorder
// interface.
func (s *Store) Record(ctx context.Context, rec delivery.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, chat_id, path, category, sent, total, cancelled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ChatID, rec.Path, rec.Category, rec.Sent, rec.Total, rec.Cancelled, rec.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// Recent returns the chat's latest delivery runs, newest first
func (s *Store) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, path, category, sent, total, cancelled, created_at
		FROM deliveries
		WHERE chat_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Path, &e.Category, &e.Sent, &e.Total, &e.Cancelled, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read delivery history: %w", err)
	}
	return entries, nil
}

// PruneOlderThan removes runs recorded before the retention window and
// returns how many rows were dropped.
func (s *Store) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC()

	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune delivery history: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.logger.Info().Int64("pruned", pruned).Msg("Pruned old delivery records")
	}
	return pruned, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
