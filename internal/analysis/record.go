package analysis

import (
	"path/filepath"
	"time"
)

// Kind distinguishes long-lived listeners from run-to-completion scripts.
// Listeners are eligible for auto-restart; oneshots are not.
type Kind string

const (
	KindListener Kind = "listener"
	KindOneshot  Kind = "oneshot"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindListener || k == KindOneshot
}

// Record describes a registered analysis. ID is assigned at registration and
// never changes; Name is a mutable alias used for display and for the derived
// storage locations.
type Record struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        Kind              `json:"kind"`
	Enabled     bool              `json:"enabled"`
	LastRun     time.Time         `json:"last_run,omitzero"`
	EntryPath   string            `json:"entry"`
	WorkDir     string            `json:"workdir,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	StorageRoot string            `json:"-"`
}

// Dir returns the per-analysis directory under the storage root. It follows
// the current Name, so a rename moves future writes while historical files
// stay where they were written.
func (r Record) Dir() string {
	return filepath.Join(r.StorageRoot, r.Name)
}

// LogPath returns the derived on-disk log file for captured output.
func (r Record) LogPath() string {
	return filepath.Join(r.Dir(), "logs", "analysis.log")
}

// EnvPairs renders the per-analysis variables as "K=V" entries.
func (r Record) EnvPairs() []string {
	if len(r.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Env))
	for k, v := range r.Env {
		if k == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}
