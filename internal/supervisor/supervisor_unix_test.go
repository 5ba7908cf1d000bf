//go:build !windows

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ansup-io/ansup/internal/analysis"
	"github.com/ansup-io/ansup/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "entry.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestRealProcessCrashRestart(t *testing.T) {
	dir := t.TempDir()
	// dies quickly with a nonzero code, every run
	entry := writeScript(t, dir, "echo running\nsleep 0.1\nexit 1\n")

	s := New(Options{
		StorageRoot:  dir,
		RestartDelay: 100 * time.Millisecond,
		GraceTimeout: time.Second,
	})
	defer s.Shutdown()

	id, err := s.Register(analysis.Record{Name: "crasher", Kind: analysis.KindListener, EntryPath: entry})
	require.NoError(t, err)

	_, err = s.Start(id)
	require.NoError(t, err)

	t.Log("Phase 1: waiting for at least one crash-and-restart cycle")
	sawError := false
	sawSecondRun := false
	deadline := time.Now().Add(10 * time.Second)
	var runs int
	for time.Now().Before(deadline) {
		st, err := s.Status(id)
		require.NoError(t, err)
		if st.State == StatusError {
			sawError = true
		}
		lines, _ := s.Logs(id, 0)
		runs = 0
		for _, l := range lines {
			if l.Message == "running" {
				runs++
			}
		}
		if runs >= 2 {
			sawSecondRun = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.True(t, sawSecondRun, "expected the script to be respawned, saw %d runs", runs)
	_ = sawError // error state is transient between exit and restart

	t.Log("Phase 2: explicit stop halts the restart loop")
	_, err = s.Stop(id)
	require.NoError(t, err)
	lines, _ := s.Logs(id, 0)
	before := len(lines)
	time.Sleep(500 * time.Millisecond)
	lines, _ = s.Logs(id, 0)
	assert.Equal(t, before, len(lines), "no new output after stop")
}

func TestLogFileWrittenUnderStorageRoot(t *testing.T) {
	root := t.TempDir()
	entry := writeScript(t, root, "echo file-me\n")

	s := New(Options{StorageRoot: root, GraceTimeout: time.Second})
	defer s.Shutdown()

	id, err := s.Register(analysis.Record{Name: "writer", Kind: analysis.KindOneshot, EntryPath: entry})
	require.NoError(t, err)

	_, err = s.Start(id)
	require.NoError(t, err)

	logPath := filepath.Join(root, "writer", "logs", "analysis.log")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(logPath); err == nil && len(data) > 0 {
			assert.Contains(t, string(data), "file-me")
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("log file %s never appeared", logPath)
}

func TestChildSeesStorageRootEnv(t *testing.T) {
	root := t.TempDir()
	entry := writeScript(t, root, "echo \"root=$ANSUP_STORAGE_ROOT\"\n")

	s := New(Options{StorageRoot: root, GraceTimeout: time.Second})
	defer s.Shutdown()

	id, err := s.Register(analysis.Record{Name: "envcheck", Kind: analysis.KindOneshot, EntryPath: entry})
	require.NoError(t, err)
	_, err = s.Start(id)
	require.NoError(t, err)

	want := "root=" + filepath.Join(root, "envcheck")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		lines, _ := s.Logs(id, 0)
		for _, l := range lines {
			if l.Message == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("child never reported %q", want)
}

func TestResumeRestoresEnabledListeners(t *testing.T) {
	root := t.TempDir()
	entry := writeScript(t, root, "sleep 60\n")
	dbPath := filepath.Join(root, "state.db")

	open := func() *sqlite.DB {
		db, err := sqlite.New(dbPath)
		require.NoError(t, err)
		require.NoError(t, db.EnsureSchema(context.Background()))
		return db
	}

	recRunning := analysis.Record{ID: "a-run", Name: "keeps-running", Kind: analysis.KindListener, EntryPath: entry}
	recIdle := analysis.Record{ID: "a-idle", Name: "stays-idle", Kind: analysis.KindListener, EntryPath: entry}

	t.Log("Phase 1: first supervisor starts one of two analyses, then goes away")
	db1 := open()
	s1 := New(Options{StorageRoot: root, Store: db1, GraceTimeout: time.Second})
	_, err := s1.Register(recRunning)
	require.NoError(t, err)
	_, err = s1.Register(recIdle)
	require.NoError(t, err)
	_, err = s1.Start("a-run")
	require.NoError(t, err)
	s1.Shutdown()
	require.NoError(t, db1.Close())

	t.Log("Phase 2: a fresh supervisor resumes from the same store")
	db2 := open()
	defer func() { _ = db2.Close() }()
	s2 := New(Options{StorageRoot: root, Store: db2, GraceTimeout: time.Second})
	defer s2.Shutdown()
	_, err = s2.Register(recRunning)
	require.NoError(t, err)
	_, err = s2.Register(recIdle)
	require.NoError(t, err)

	require.NoError(t, s2.Resume(context.Background()))

	st, err := s2.Status("a-run")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.State, "enabled listener resumes")
	assert.True(t, st.Enabled)

	st, err = s2.Status("a-idle")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, st.State, "never-started analysis stays idle")
}
