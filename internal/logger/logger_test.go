package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestRotatingWriterDefaults(t *testing.T) {
	w := NewRotatingWriter("x.log", Rotation{})
	l, ok := w.(*lj.Logger)
	require.True(t, ok, "writer is not a lumberjack.Logger")
	assert.Equal(t, 10, l.MaxSize)
	assert.Equal(t, 3, l.MaxBackups)
	assert.Equal(t, 7, l.MaxAge)
	_ = w.Close()
}

func TestRotatingWriterOverrides(t *testing.T) {
	w := NewRotatingWriter("x.log", Rotation{MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true})
	l := w.(*lj.Logger)
	assert.Equal(t, 1, l.MaxSize)
	assert.Equal(t, 9, l.MaxBackups)
	assert.Equal(t, 11, l.MaxAge)
	assert.True(t, l.Compress)
	_ = w.Close()
}

func TestRotatingWriterCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w := NewRotatingWriter(path, Rotation{})
	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestConfigNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer := Config{Level: "debug", File: path, NoColor: true}.New()
	require.NotNil(t, log)

	log.Debug("debug line", "k", "v")
	log.Info("info line")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
	assert.Contains(t, string(data), "info line")
}

func TestConfigNewLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer := Config{Level: "error", File: path, NoColor: true}.New()

	log.Info("dropped")
	log.Error("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestConfigNewStderrNoop(t *testing.T) {
	// Without a file the closer must be a no-op and logging must not panic.
	log, closer := Config{}.New()
	log.Info("to stderr")
	assert.NoError(t, closer.Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel(" error "))
}
