package ansup

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ansup-io/ansup/internal/analysis"
	cfg "github.com/ansup-io/ansup/internal/config"
	"github.com/ansup-io/ansup/internal/history"
	"github.com/ansup-io/ansup/internal/logstore"
	"github.com/ansup-io/ansup/internal/metrics"
	iapi "github.com/ansup-io/ansup/internal/server"
	"github.com/ansup-io/ansup/internal/store"
	"github.com/ansup-io/ansup/internal/store/factory"
	"github.com/ansup-io/ansup/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = analysis.Record

type Kind = analysis.Kind

const (
	KindListener = analysis.KindListener
	KindOneshot  = analysis.KindOneshot
)

type Status = supervisor.Status

type Options = supervisor.Options

type LogEntry = logstore.Entry

type Config = cfg.Config

type StoreConfig = store.Config

type Store = store.Store

type HistorySink = history.Sink

type HistoryEvent = history.Event

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *supervisor.Supervisor }

func New(opts Options) *Supervisor { return &Supervisor{inner: supervisor.New(opts)} }

func (s *Supervisor) Register(rec Record) (string, error) { return s.inner.Register(rec) }
func (s *Supervisor) Unregister(id string) error          { return s.inner.Unregister(id) }
func (s *Supervisor) Start(id string) (Status, error)     { return s.inner.Start(id) }
func (s *Supervisor) Stop(id string) (Status, error)      { return s.inner.Stop(id) }
func (s *Supervisor) Restart(id string) (Status, error)   { return s.inner.Restart(id) }
func (s *Supervisor) Status(id string) (Status, error)    { return s.inner.Status(id) }
func (s *Supervisor) StatusAll() []Status                 { return s.inner.StatusAll() }
func (s *Supervisor) Rename(id, name string) (Status, error) {
	return s.inner.Rename(id, name)
}
func (s *Supervisor) Logs(id string, limit int) ([]LogEntry, error) {
	return s.inner.Logs(id, limit)
}
func (s *Supervisor) ClearLogs(id string, truncateFile bool) error {
	return s.inner.ClearLogs(id, truncateFile)
}
func (s *Supervisor) OnLog(id string, fn func(LogEntry)) error { return s.inner.OnLog(id, fn) }
func (s *Supervisor) OnStatusChange(id string, fn func(Status)) error {
	return s.inner.OnStatusChange(id, fn)
}
func (s *Supervisor) Resume(ctx context.Context) error { return s.inner.Resume(ctx) }
func (s *Supervisor) Shutdown()                        { s.inner.Shutdown() }

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// NewStore opens a state store from its config (sqlite by default).
func NewStore(c StoreConfig) (Store, error) {
	return factory.New(c)
}

// NewHTTPServer starts an HTTP server exposing the control API for the
// given supervisor.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// NewRouter returns an http.Handler with the control API mounted under
// basePath, for embedding into an existing server or mux.
func NewRouter(basePath string, s *Supervisor) http.Handler {
	return iapi.NewRouter(s.inner, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
