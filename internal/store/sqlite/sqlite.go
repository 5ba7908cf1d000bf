package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ansup-io/ansup/internal/store"
)

// DB implements store.Store on SQLite (modernc.org/sqlite driver, CGO-free).

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path. Use ":memory:" for in-memory.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_state(
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			last_run TIMESTAMP NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_state_name ON analysis_state(name);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_state_enabled ON analysis_state(enabled);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Save(ctx context.Context, rec store.Record) error {
	rec.UpdatedAt = time.Now().UTC()
	var lastRun any
	if !rec.LastRun.IsZero() {
		lastRun = rec.LastRun.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_state(id, name, kind, enabled, status, last_run, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			kind=excluded.kind,
			enabled=excluded.enabled,
			status=excluded.status,
			last_run=excluded.last_run,
			updated_at=excluded.updated_at;`,
		rec.ID, rec.Name, rec.Kind, rec.Enabled, rec.Status, lastRun, rec.UpdatedAt)
	return err
}

func (s *DB) Get(ctx context.Context, id string) (store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, enabled, status, last_run, updated_at
		FROM analysis_state WHERE id=?;`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	return rec, err
}

func (s *DB) List(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, enabled, status, last_run, updated_at
		FROM analysis_state ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *DB) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analysis_state WHERE id=?;`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (store.Record, error) {
	var r store.Record
	var lastRun sql.NullTime
	if err := sc.Scan(&r.ID, &r.Name, &r.Kind, &r.Enabled, &r.Status, &lastRun, &r.UpdatedAt); err != nil {
		return store.Record{}, err
	}
	if lastRun.Valid {
		r.LastRun = lastRun.Time
	}
	return r, nil
}
