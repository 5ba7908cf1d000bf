package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeDaemon(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Entry == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "entry required"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "id": "id-" + req.Name})
	})
	mux.HandleFunc("POST /api/start", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "ghost" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown analysis"})
			return
		}
		_ = json.NewEncoder(w).Encode(Status{ID: id, Name: "traffic", State: "running", Enabled: true, PID: 77})
	})
	mux.HandleFunc("POST /api/stop", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Status{ID: r.URL.Query().Get("id"), State: "stopped"})
	})
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("id"); id != "" {
			_ = json.NewEncoder(w).Encode(Status{ID: id, State: "running"})
			return
		}
		_ = json.NewEncoder(w).Encode([]Status{{ID: "a", Name: "alpha"}, {ID: "b", Name: "bravo"}})
	})
	mux.HandleFunc("GET /api/logs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]LogEntry{
			{Time: time.Now(), Origin: "stdout", Message: "newest"},
			{Time: time.Now(), Origin: "stderr", Message: "older"},
		})
	})
	mux.HandleFunc("POST /api/rename", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Status{ID: r.URL.Query().Get("id"), Name: r.URL.Query().Get("name")})
	})
	mux.HandleFunc("POST /api/clear-logs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("truncate"))
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("POST /api/unregister", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	c := New(Config{BaseURL: ts.URL + "/api", Timeout: 2 * time.Second})
	return ts, c
}

func TestRegisterReturnsID(t *testing.T) {
	_, c := newFakeDaemon(t)
	id, err := c.Register(context.Background(), RegisterRequest{Name: "traffic", Entry: "/opt/run.sh"})
	require.NoError(t, err)
	assert.Equal(t, "id-traffic", id)
}

func TestRegisterErrorSurfaced(t *testing.T) {
	_, c := newFakeDaemon(t)
	_, err := c.Register(context.Background(), RegisterRequest{Name: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry required")
}

func TestStartStopStatus(t *testing.T) {
	_, c := newFakeDaemon(t)
	ctx := context.Background()

	st, err := c.Start(ctx, "id-traffic")
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, 77, st.PID)

	st, err = c.Stop(ctx, "id-traffic")
	require.NoError(t, err)
	assert.Equal(t, "stopped", st.State)

	st, err = c.Status(ctx, "id-traffic")
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)

	all, err := c.StatusAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
}

func TestStartUnknownIsError(t *testing.T) {
	_, c := newFakeDaemon(t)
	_, err := c.Start(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown analysis")
}

func TestLogsPassesLimit(t *testing.T) {
	_, c := newFakeDaemon(t)
	lines, err := c.Logs(context.Background(), "id-traffic", 3)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "newest", lines[0].Message)
}

func TestRenameAndClearLogs(t *testing.T) {
	_, c := newFakeDaemon(t)
	ctx := context.Background()

	st, err := c.Rename(ctx, "id-traffic", "flow")
	require.NoError(t, err)
	assert.Equal(t, "flow", st.Name)

	require.NoError(t, c.ClearLogs(ctx, "id-traffic", true))
	require.NoError(t, c.Unregister(ctx, "id-traffic"))
}

func TestIsReachable(t *testing.T) {
	ts, c := newFakeDaemon(t)
	assert.True(t, c.IsReachable(context.Background()))

	ts.Close()
	assert.False(t, c.IsReachable(context.Background()))
}

func TestDefaultsApplied(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, "http://localhost:8080/api", c.baseURL)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
	assert.NotNil(t, c.logger)
}
