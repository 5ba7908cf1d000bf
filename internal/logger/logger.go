package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for on-disk logs.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Rotation describes lumberjack rotation parameters for a log file.
type Rotation struct {
	MaxSizeMB  int  `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `toml:"compress" mapstructure:"compress"`
}

// NewRotatingWriter returns a size-rotated writer for path. Parent
// directories are created on first write.
func NewRotatingWriter(path string, r Rotation) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(r.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(r.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(r.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   r.Compress,
	}
}

// Config describes the application's own logging.
type Config struct {
	Level    string   `toml:"level" mapstructure:"level"` // debug|info|warn|error
	File     string   `toml:"file" mapstructure:"file"`   // optional, rotated when set
	NoColor  bool     `toml:"no_color" mapstructure:"no_color"`
	Rotation Rotation `toml:"rotation" mapstructure:"rotation"`
}

// New builds a slog.Logger per the config: colorized text on stderr, plus a
// rotated file when File is set. The returned closer owns the file writer;
// without a file it is a no-op.
func (c Config) New() (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if c.File != "" {
		fw := NewRotatingWriter(c.File, c.Rotation)
		closer = fw
		w = io.MultiWriter(os.Stderr, fw)
	}

	var h slog.Handler
	if c.NoColor || c.File != "" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = NewColorTextHandler(w, opts, true)
	}
	return slog.New(h), closer
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
