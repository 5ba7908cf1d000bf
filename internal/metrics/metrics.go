package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	analysisStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "starts_total",
			Help:      "Number of successful analysis process starts.",
		}, []string{"name"},
	)
	analysisStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "stops_total",
			Help:      "Number of user-requested stops.",
		}, []string{"name"},
	)
	analysisRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "restarts_total",
			Help:      "Number of automatic restarts after unexpected exits.",
		}, []string{"name"},
	)
	analysisCrashes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "crashes_total",
			Help:      "Number of unexpected process exits.",
		}, []string{"name"},
	)
	spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "spawn_failures_total",
			Help:      "Number of failed spawn attempts.",
		}, []string{"name"},
	)
	runningAnalyses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "running",
			Help:      "Current number of analyses with a live process.",
		},
	)
	logLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ansup",
			Subsystem: "analysis",
			Name:      "log_lines_total",
			Help:      "Captured output lines per analysis and origin stream.",
		}, []string{"name", "origin"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{analysisStarts, analysisStops, analysisRestarts, analysisCrashes, spawnFailures, runningAnalyses, logLines}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// Already registered is fine (allows double Register with default registry).
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route and server.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers used by internal packages. They no-op until Register succeeds.

func IncStart(name string) {
	if regOK.Load() {
		analysisStarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		analysisStops.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		analysisRestarts.WithLabelValues(name).Inc()
	}
}

func IncCrash(name string) {
	if regOK.Load() {
		analysisCrashes.WithLabelValues(name).Inc()
	}
}

func IncSpawnFailure(name string) {
	if regOK.Load() {
		spawnFailures.WithLabelValues(name).Inc()
	}
}

func AddRunning(delta int) {
	if regOK.Load() {
		runningAnalyses.Add(float64(delta))
	}
}

func IncLogLine(name, origin string) {
	if regOK.Load() {
		logLines.WithLabelValues(name, origin).Inc()
	}
}
