package factory

import (
	"fmt"
	"strings"

	"github.com/ansup-io/ansup/internal/store"
	"github.com/ansup-io/ansup/internal/store/postgres"
	"github.com/ansup-io/ansup/internal/store/sqlite"
)

// New builds a store.Store from config. Supported types: "sqlite",
// "postgres".
func New(cfg store.Config) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires path")
		}
		return sqlite.New(path)
	case "postgres", "postgresql":
		return postgres.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}
}
