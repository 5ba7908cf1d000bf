//go:build !windows

package proc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ansup-io/ansup/internal/logstore"
	"github.com/ansup-io/ansup/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entry.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestExecLauncherCapturesOutput(t *testing.T) {
	entry := writeScript(t, "echo hello\necho oops 1>&2\nprintf partial\n")
	store := logstore.New("", logstore.Options{Capacity: 32})
	mon := monitor.New(store, nil, nil)

	h, err := Start(ExecLauncher{}, Command{EntryPath: entry}, mon, Options{})
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}

	res := h.Result()
	assert.Equal(t, 0, res.Code)
	assert.False(t, res.Requested)

	var msgs []string
	for _, e := range store.Logs(0) {
		msgs = append(msgs, string(e.Origin)+":"+e.Message)
	}
	assert.Contains(t, msgs, "stdout:hello")
	assert.Contains(t, msgs, "stderr:oops")
	assert.Contains(t, msgs, "stdout:partial", "unterminated output flushed at exit")
}

func TestExecLauncherNonZeroExit(t *testing.T) {
	entry := writeScript(t, "exit 3\n")
	store := logstore.New("", logstore.Options{Capacity: 8})
	mon := monitor.New(store, nil, nil)

	h, err := Start(ExecLauncher{}, Command{EntryPath: entry}, mon, Options{})
	require.NoError(t, err)
	<-h.Done()
	assert.Equal(t, 3, h.Result().Code)
}

func TestExecLauncherGracefulStop(t *testing.T) {
	entry := writeScript(t, "echo up\nsleep 60\n")
	store := logstore.New("", logstore.Options{Capacity: 8})
	mon := monitor.New(store, nil, nil)

	h, err := Start(ExecLauncher{}, Command{EntryPath: entry}, mon, Options{GraceTimeout: 5 * time.Second})
	require.NoError(t, err)
	require.Greater(t, h.PID(), 0)

	time.Sleep(200 * time.Millisecond)
	start := time.Now()
	res := h.Stop(true)
	assert.True(t, res.Requested)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecLauncherStopEscalation(t *testing.T) {
	// The child ignores SIGTERM; Stop must escalate to SIGKILL after the
	// grace window and still return.
	entry := writeScript(t, "trap '' TERM\necho stubborn\nsleep 60\n")
	store := logstore.New("", logstore.Options{Capacity: 8})
	mon := monitor.New(store, nil, nil)

	h, err := Start(ExecLauncher{}, Command{EntryPath: entry}, mon, Options{GraceTimeout: 300 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	start := time.Now()
	res := h.Stop(true)
	assert.True(t, res.Requested)
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestExecLauncherSpawnFailure(t *testing.T) {
	store := logstore.New("", logstore.Options{Capacity: 8})
	mon := monitor.New(store, nil, nil)

	_, err := Start(ExecLauncher{Interpreter: "/nonexistent/shell"}, Command{EntryPath: "/tmp/x.sh"}, mon, Options{})
	require.Error(t, err)
}

func TestExecLauncherEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	entry := writeScript(t, "echo \"$GREETING\"\npwd\n")

	store := logstore.New("", logstore.Options{Capacity: 8})
	mon := monitor.New(store, nil, nil)

	h, err := Start(ExecLauncher{}, Command{
		EntryPath: entry,
		Dir:       dir,
		Env:       []string{"PATH=/usr/bin:/bin", "GREETING=hi-there"},
	}, mon, Options{})
	require.NoError(t, err)
	<-h.Done()

	var msgs []string
	for _, e := range store.Logs(0) {
		msgs = append(msgs, e.Message)
	}
	assert.Contains(t, msgs, "hi-there")

	// pwd may resolve symlinks (e.g. /private on darwin), so match the leaf.
	var inDir bool
	for _, m := range msgs {
		if filepath.Base(m) == filepath.Base(dir) {
			inDir = true
		}
	}
	assert.True(t, inDir, "child should run in the requested working directory")
}
