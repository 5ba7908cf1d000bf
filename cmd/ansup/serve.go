package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansup-io/ansup"
	"github.com/ansup-io/ansup/internal/env"
	"github.com/ansup-io/ansup/internal/history/clickhouse"
	"github.com/ansup-io/ansup/internal/history/memory"
)

func runServe(configPath string) error {
	cfg, err := ansup.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	log, logCloser := cfg.Log.New()
	slog.SetDefault(log)
	defer func() { _ = logCloser.Close() }()

	var st ansup.Store
	if cfg.Store != nil {
		st, err = ansup.NewStore(*cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer func() { _ = st.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = st.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to prepare state store: %w", err)
		}
	}

	sink, closeSink, err := buildHistorySink(cfg)
	if err != nil {
		return err
	}
	if closeSink != nil {
		defer closeSink()
	}

	globalEnv := env.New()
	globalEnv.FromOS()
	globalEnv.SetPairs(cfg.Env)

	sup := ansup.New(ansup.Options{
		StorageRoot:  cfg.StorageRoot,
		RestartDelay: cfg.RestartDelay,
		GraceTimeout: cfg.GraceTimeout,
		LogCapacity:  cfg.LogBufferCap,
		LogRotation:  cfg.Log.Rotation,
		Store:        st,
		History:      sink,
		Logger:       log,
		Env:          globalEnv,
	})
	defer sup.Shutdown()

	for _, a := range cfg.Analyses {
		if _, err := sup.Register(a.Record()); err != nil {
			log.Warn("failed to register configured analysis", "name", a.Name, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = sup.Resume(ctx)
	cancel()
	if err != nil {
		log.Warn("resume incomplete", "error", err)
	}

	if cfg.Metrics.Listen != "" {
		if err := ansup.RegisterMetricsDefault(); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
		go func() {
			if err := ansup.ServeMetrics(cfg.Metrics.Listen); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	listen := cfg.Server.Listen
	if listen == "" {
		listen = ":8080"
	}
	server, err := ansup.NewHTTPServer(listen, cfg.Server.BasePath, sup)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	fmt.Printf("Starting ansup server on %s%s\n", listen, cfg.Server.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	return server.Close()
}

// buildHistorySink constructs the configured run-history sink. The returned
// close func is nil when the sink needs no teardown.
func buildHistorySink(cfg *ansup.Config) (ansup.HistorySink, func(), error) {
	if cfg.History == nil {
		return nil, nil, nil
	}
	switch strings.ToLower(cfg.History.Type) {
	case "", "memory":
		return memory.New(), nil, nil
	case "clickhouse":
		sink, err := clickhouse.New(clickhouse.Options{
			Addr:     cfg.History.Addr,
			Database: cfg.History.Database,
			Username: cfg.History.Username,
			Password: cfg.History.Password,
			Table:    cfg.History.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect history sink: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = sink.EnsureSchema(ctx)
		cancel()
		if err != nil {
			_ = sink.Close()
			return nil, nil, fmt.Errorf("failed to prepare history schema: %w", err)
		}
		return sink, func() { _ = sink.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown history type %q", cfg.History.Type)
	}
}
