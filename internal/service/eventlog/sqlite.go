package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ChartDesk/internal/domain/models"
)

// SQLite persists streams to a local database file.
type SQLite struct {
	db  *sql.DB
	max int
}

// NewSQLite opens (or creates) the database and runs migrations.
func NewSQLite(path string, maxEntries int) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLite{db: db, max: limitOrDefault(maxEntries)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			stream  TEXT NOT NULL,
			kind    TEXT NOT NULL,
			payload TEXT,
			at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, e models.LogEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (stream, kind, payload, at) VALUES (?, ?, ?, ?)`,
		e.Stream, e.Kind, string(payload), e.At.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE stream = ? AND id NOT IN (
			SELECT id FROM events WHERE stream = ? ORDER BY id DESC LIMIT ?
		)`,
		e.Stream, e.Stream, s.max,
	); err != nil {
		return fmt.Errorf("trim stream: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) ReadLast(ctx context.Context, stream string, n int) ([]models.LogEvent, error) {
	if n <= 0 || n > s.max {
		n = s.max
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, payload, at FROM events WHERE stream = ? ORDER BY id DESC LIMIT ?`,
		stream, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []models.LogEvent
	for rows.Next() {
		var (
			kind    string
			payload sql.NullString
			at      int64
		)
		if err := rows.Scan(&kind, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e := models.LogEvent{Stream: stream, Kind: kind, At: time.Unix(0, at).UTC()}
		if payload.Valid && payload.String != "" && payload.String != "null" {
			_ = json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows come newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []models.LogEvent{}
	}
	return out, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
