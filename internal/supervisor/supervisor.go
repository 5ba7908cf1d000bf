package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ansup-io/ansup/internal/analysis"
	"github.com/ansup-io/ansup/internal/env"
	"github.com/ansup-io/ansup/internal/history"
	"github.com/ansup-io/ansup/internal/logger"
	"github.com/ansup-io/ansup/internal/logstore"
	"github.com/ansup-io/ansup/internal/proc"
	"github.com/ansup-io/ansup/internal/store"
)

// ErrUnknownAnalysis is returned for operations on ids that were never
// registered or have been unregistered.
var ErrUnknownAnalysis = errors.New("unknown analysis")

// DefaultRestartDelay is the fixed wait before an enabled listener is
// respawned after an unexpected exit. No backoff: analyses are interactive
// user scripts and a predictable delay beats a growing one.
const DefaultRestartDelay = 1000 * time.Millisecond

// Analysis status values reported to observers.
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusError   = "error"
)

// Status is the externally visible state of one analysis.
type Status struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Kind      analysis.Kind `json:"kind"`
	State     string        `json:"status"`
	Enabled   bool          `json:"enabled"`
	PID       int           `json:"pid,omitempty"`
	LastRun   time.Time     `json:"last_run,omitzero"`
	StartedAt time.Time     `json:"started_at,omitzero"`
}

// Options wires a Supervisor. Store and History are optional; Launcher
// defaults to the exec-backed one.
type Options struct {
	StorageRoot  string
	RestartDelay time.Duration
	GraceTimeout time.Duration
	LogCapacity  int
	LogRotation  logger.Rotation
	Launcher     proc.Launcher
	Store        store.Store
	History      history.Sink
	Logger       *slog.Logger
	Env          *env.Env
}

// Supervisor owns the id -> analysis map and the lifecycle of every child
// process. All state lives on the instance, so multiple supervisors coexist
// (one per test, typically).
type Supervisor struct {
	mu      sync.RWMutex
	entries map[string]*entry
	opts    Options
	logger  *slog.Logger
}

func New(opts Options) *Supervisor {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.GraceTimeout <= 0 {
		opts.GraceTimeout = proc.DefaultGraceTimeout
	}
	if opts.LogCapacity <= 0 {
		opts.LogCapacity = logstore.DefaultCapacity
	}
	if opts.Launcher == nil {
		opts.Launcher = proc.ExecLauncher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Env == nil {
		opts.Env = env.New()
	}
	return &Supervisor{
		entries: make(map[string]*entry),
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Register creates a new analysis. An empty ID gets a generated one; the
// record is persisted but not started.
func (s *Supervisor) Register(rec analysis.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	if !validName(rec.Name) {
		return "", fmt.Errorf("invalid analysis name %q", rec.Name)
	}
	if rec.Kind == "" {
		rec.Kind = analysis.KindListener
	}
	if !rec.Kind.Valid() {
		return "", fmt.Errorf("invalid analysis kind %q", rec.Kind)
	}
	if strings.TrimSpace(rec.EntryPath) == "" {
		return "", fmt.Errorf("analysis %s: empty entry path", rec.Name)
	}
	rec.StorageRoot = s.opts.StorageRoot

	e := newEntry(s, rec)

	s.mu.Lock()
	if _, exists := s.entries[rec.ID]; exists {
		s.mu.Unlock()
		e.release()
		return "", fmt.Errorf("analysis %s already registered", rec.ID)
	}
	s.entries[rec.ID] = e
	s.mu.Unlock()

	// Persist only when no prior state exists, so a Resume after restart
	// still sees the pre-restart enabled flag.
	if st := s.opts.Store; st != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := st.Get(ctx, rec.ID)
		cancel()
		if errors.Is(err, store.ErrNotFound) {
			e.saveState()
		} else if err != nil {
			s.logger.Warn("state lookup failed", "analysis", rec.ID, "error", err)
		}
	}
	s.logger.Info("analysis registered", "analysis", rec.ID, "name", rec.Name, "kind", string(rec.Kind))
	return rec.ID, nil
}

// Unregister force-stops the analysis, releases all of its resources and
// drops its persisted state.
func (s *Supervisor) Unregister(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrUnknownAnalysis
	}

	e.opMu.Lock()
	e.release()
	e.opMu.Unlock()

	if s.opts.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.opts.Store.Delete(ctx, id); err != nil {
			s.logger.Warn("state delete failed", "analysis", id, "error", err)
		}
	}
	s.logger.Info("analysis unregistered", "analysis", id)
	return nil
}

func (s *Supervisor) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownAnalysis
	}
	return e, nil
}

// Start spawns the analysis. Starting a running analysis is a no-op that
// returns the current status.
func (s *Supervisor) Start(id string) (Status, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return e.start()
}

// Stop terminates the analysis gracefully and marks it as intentionally
// stopped, so it will not auto-restart.
func (s *Supervisor) Stop(id string) (Status, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return e.stop()
}

// Restart stops the analysis if running, then starts it. The two halves are
// serialized with every other lifecycle operation on the same id.
func (s *Supervisor) Restart(id string) (Status, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return e.restart()
}

// Status reports the current state of one analysis.
func (s *Supervisor) Status(id string) (Status, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Status{}, err
	}
	return e.status(), nil
}

// StatusAll reports every registered analysis, ordered by name.
func (s *Supervisor) StatusAll() []Status {
	s.mu.RLock()
	es := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		es = append(es, e)
	}
	s.mu.RUnlock()

	out := make([]Status, 0, len(es))
	for _, e := range es {
		out = append(out, e.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Logs returns up to limit captured lines, most recent first.
func (s *Supervisor) Logs(id string, limit int) ([]logstore.Entry, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.logs.Logs(limit), nil
}

// ClearLogs drops the in-memory buffer and, when truncateFile is set, the
// on-disk file.
func (s *Supervisor) ClearLogs(id string, truncateFile bool) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.logs.Clear(truncateFile)
	return nil
}

// OnLog subscribes fn to every captured line of the analysis. Subscriptions
// live until the analysis is unregistered.
func (s *Supervisor) OnLog(id string, fn func(logstore.Entry)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.logSubs = append(e.logSubs, fn)
	e.mu.Unlock()
	return nil
}

// OnStatusChange subscribes fn to status transitions of the analysis.
func (s *Supervisor) OnStatusChange(id string, fn func(Status)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.statusSubs = append(e.statusSubs, fn)
	e.mu.Unlock()
	return nil
}

// Rename changes the display name and swaps the derived log path. Historic
// log files stay at the old location.
func (s *Supervisor) Rename(id, newName string) (Status, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Status{}, err
	}
	if !validName(newName) {
		return Status{}, fmt.Errorf("invalid analysis name %q", newName)
	}
	return e.rename(newName)
}

// Resume overlays persisted state onto registered analyses and starts every
// enabled listener. Call it once after registering the configured analyses.
func (s *Supervisor) Resume(ctx context.Context) error {
	st := s.opts.Store
	if st == nil {
		return nil
	}
	recs, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("load analysis state: %w", err)
	}

	var toStart []string
	for _, r := range recs {
		e, err := s.lookup(r.ID)
		if err != nil {
			continue // stale row for an analysis no longer configured
		}
		e.mu.Lock()
		e.rec.Enabled = r.Enabled
		if !r.LastRun.IsZero() {
			e.rec.LastRun = r.LastRun
		}
		if r.Name != "" && r.Name != e.rec.Name && validName(r.Name) {
			e.rec.Name = r.Name
			e.logs.Rename(e.rec.LogPath())
		}
		enabled := e.rec.Enabled
		kind := e.rec.Kind
		e.mu.Unlock()
		if enabled && kind == analysis.KindListener {
			toStart = append(toStart, r.ID)
		}
	}

	for _, id := range toStart {
		if _, err := s.Start(id); err != nil {
			s.logger.Error("resume start failed", "analysis", id, "error", err)
		}
	}
	return nil
}

// Shutdown force-stops everything and releases all per-analysis resources.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	es := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		es = append(es, e)
	}
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range es {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.opMu.Lock()
			e.release()
			e.opMu.Unlock()
		}(e)
	}
	wg.Wait()
	s.logger.Info("supervisor shut down", "analyses", len(es))
}

// validName guards the derived filesystem paths: [A-Za-z0-9._-], no "..".
func validName(s string) bool {
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}
