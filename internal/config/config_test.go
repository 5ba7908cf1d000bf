package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ansup-io/ansup/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ansup.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
storage_root = "/var/lib/ansup"
env = ["PYTHONUNBUFFERED=1", "TZ=UTC"]
log_buffer_cap = 250
restart_delay = "2s"
grace_timeout = "5s"

[log]
level = "debug"
file = "/var/log/ansup/ansup.log"

[server]
listen = ":8080"
base_path = "/api"

[metrics]
listen = ":9090"

[store]
type = "sqlite"
path = "/var/lib/ansup/state.db"

[history]
type = "clickhouse"
addr = "127.0.0.1:9000"
table = "analysis_events"

[[analyses]]
id = "traffic"
name = "traffic-analyzer"
kind = "listener"
entry = "/opt/analyses/traffic.sh"
enabled = true

[analyses.env]
REGION = "eu-west-1"

[[analyses]]
name = "nightly-report"
kind = "oneshot"
entry = "/opt/analyses/report.sh"
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ansup", c.StorageRoot)
	assert.Equal(t, []string{"PYTHONUNBUFFERED=1", "TZ=UTC"}, c.Env)
	assert.Equal(t, 250, c.LogBufferCap)
	assert.Equal(t, 2*time.Second, c.RestartDelay)
	assert.Equal(t, 5*time.Second, c.GraceTimeout)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, ":8080", c.Server.Listen)
	assert.Equal(t, "/api", c.Server.BasePath)
	assert.Equal(t, ":9090", c.Metrics.Listen)
	require.NotNil(t, c.Store)
	assert.Equal(t, "sqlite", c.Store.Type)
	require.NotNil(t, c.History)
	assert.Equal(t, "clickhouse", c.History.Type)

	require.Len(t, c.Analyses, 2)
	rec := c.Analyses[0].Record()
	assert.Equal(t, "traffic", rec.ID)
	assert.Equal(t, analysis.KindListener, rec.Kind)
	assert.True(t, rec.Enabled)
	assert.Equal(t, "eu-west-1", rec.Env["REGION"])

	rec = c.Analyses[1].Record()
	assert.Equal(t, analysis.KindOneshot, rec.Kind)
	assert.False(t, rec.Enabled)
}

func TestLoadRequiresStorageRoot(t *testing.T) {
	path := writeConfig(t, `
[[analyses]]
name = "x"
entry = "/x.sh"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_root")
}

func TestLoadRejectsMissingEntry(t *testing.T) {
	path := writeConfig(t, `
storage_root = "/tmp/a"

[[analyses]]
name = "broken"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry is required")
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	path := writeConfig(t, `
storage_root = "/tmp/a"

[[analyses]]
name = "broken"
kind = "cron"
entry = "/x.sh"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeConfig(t, `
storage_root = "/tmp/a"

[[analyses]]
id = "dup"
name = "one"
entry = "/1.sh"

[[analyses]]
id = "dup"
name = "two"
entry = "/2.sh"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestLoadRejectsClickHouseWithoutAddr(t *testing.T) {
	path := writeConfig(t, `
storage_root = "/tmp/a"

[history]
type = "clickhouse"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires addr")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestKindDefaultsToListener(t *testing.T) {
	e := AnalysisEntry{Name: "x", Entry: "/x.sh"}
	assert.Equal(t, analysis.KindListener, e.Record().Kind)
}
