package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ansup-io/ansup/internal/analysis"
	"github.com/ansup-io/ansup/internal/logger"
	"github.com/ansup-io/ansup/internal/store"
)

// Config is the top-level TOML structure.
//
//	storage_root = "/var/lib/ansup"
//	env = ["PYTHONUNBUFFERED=1"]
//
//	[server]
//	listen = ":8080"
//	base_path = "/api"
//
//	[[analyses]]
//	id = "traffic"
//	name = "traffic-analyzer"
//	kind = "listener"
//	entry = "/opt/analyses/traffic.sh"
type Config struct {
	StorageRoot  string        `toml:"storage_root" mapstructure:"storage_root"`
	Env          []string      `toml:"env" mapstructure:"env"`
	LogBufferCap int           `toml:"log_buffer_cap" mapstructure:"log_buffer_cap"`
	RestartDelay time.Duration `toml:"restart_delay" mapstructure:"restart_delay"`
	GraceTimeout time.Duration `toml:"grace_timeout" mapstructure:"grace_timeout"`

	Log      logger.Config   `toml:"log" mapstructure:"log"`
	Server   ServerConfig    `toml:"server" mapstructure:"server"`
	Metrics  MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Store    *store.Config   `toml:"store" mapstructure:"store"`
	History  *HistoryConfig  `toml:"history" mapstructure:"history"`
	Analyses []AnalysisEntry `toml:"analyses" mapstructure:"analyses"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type MetricsConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// HistoryConfig selects a run-history sink.
type HistoryConfig struct {
	Type     string `toml:"type" mapstructure:"type"` // "clickhouse" or "memory"
	Addr     string `toml:"addr,omitempty" mapstructure:"addr"`
	Database string `toml:"database,omitempty" mapstructure:"database"`
	Username string `toml:"username,omitempty" mapstructure:"username"`
	Password string `toml:"password,omitempty" mapstructure:"password"`
	Table    string `toml:"table,omitempty" mapstructure:"table"`
}

// AnalysisEntry is one configured analysis.
type AnalysisEntry struct {
	ID      string            `toml:"id" mapstructure:"id"`
	Name    string            `toml:"name" mapstructure:"name"`
	Kind    string            `toml:"kind" mapstructure:"kind"`
	Entry   string            `toml:"entry" mapstructure:"entry"`
	WorkDir string            `toml:"workdir" mapstructure:"workdir"`
	Env     map[string]string `toml:"env" mapstructure:"env"`
	Enabled bool              `toml:"enabled" mapstructure:"enabled"`
}

// Record converts a config entry into an analysis record.
func (a AnalysisEntry) Record() analysis.Record {
	kind := analysis.Kind(strings.ToLower(strings.TrimSpace(a.Kind)))
	if kind == "" {
		kind = analysis.KindListener
	}
	return analysis.Record{
		ID:        a.ID,
		Name:      a.Name,
		Kind:      kind,
		Enabled:   a.Enabled,
		EntryPath: a.Entry,
		WorkDir:   a.WorkDir,
		Env:       a.Env,
	}
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.StorageRoot) == "" {
		return fmt.Errorf("storage_root is required")
	}
	seen := make(map[string]struct{}, len(c.Analyses))
	for i, a := range c.Analyses {
		if strings.TrimSpace(a.Entry) == "" {
			return fmt.Errorf("analyses[%d] (%s): entry is required", i, a.Name)
		}
		if a.Kind != "" && !analysis.Kind(strings.ToLower(a.Kind)).Valid() {
			return fmt.Errorf("analyses[%d] (%s): unknown kind %q", i, a.Name, a.Kind)
		}
		if a.ID != "" {
			if _, dup := seen[a.ID]; dup {
				return fmt.Errorf("analyses[%d]: duplicate id %q", i, a.ID)
			}
			seen[a.ID] = struct{}{}
		}
	}
	if c.History != nil {
		switch strings.ToLower(c.History.Type) {
		case "", "memory":
		case "clickhouse":
			if c.History.Addr == "" {
				return fmt.Errorf("history: clickhouse requires addr")
			}
		default:
			return fmt.Errorf("history: unknown type %q", c.History.Type)
		}
	}
	return nil
}
