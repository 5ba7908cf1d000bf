package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no state exists for an analysis id.
var ErrNotFound = errors.New("analysis state not found")

// Record is the persisted slice of an analysis: the intended running state
// and bookkeeping needed to resume after a supervisor restart. Live process
// state is never persisted; memory is authoritative while running.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Enabled   bool      `json:"enabled"`
	Status    string    `json:"status"`
	LastRun   time.Time `json:"last_run,omitzero"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists analysis state keyed by id.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// Save upserts by id.
	Save(ctx context.Context, rec Record) error
	// Get returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	Type string `toml:"type" mapstructure:"type"` // "sqlite" or "postgres"

	// SQLite: filesystem path, ":memory:" for ephemeral.
	Path string `toml:"path,omitempty" mapstructure:"path"`

	// PostgreSQL: pgx stdlib DSN.
	DSN string `toml:"dsn,omitempty" mapstructure:"dsn"`
}
