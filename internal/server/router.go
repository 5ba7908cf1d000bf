package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ansup-io/ansup/internal/analysis"
	"github.com/ansup-io/ansup/internal/supervisor"
)

// Router provides embeddable HTTP handlers for managing analyses.
// Endpoints under basePath:
//
//	POST /register      body: analysis record JSON
//	POST /unregister    query: id=...
//	POST /start         query: id=...
//	POST /stop          query: id=...
//	POST /restart       query: id=...
//	POST /rename        query: id=...&name=...
//	POST /clear-logs    query: id=...&truncate=1
//	GET  /status        query: id=... (single) or none (all)
//	GET  /logs          query: id=...&limit=...
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

// NewRouter constructs a Router with a configurable basePath, e.g. "/api".
func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/register", r.handleRegister)
	group.POST("/unregister", r.handleUnregister)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.POST("/rename", r.handleRename)
	group.POST("/clear-logs", r.handleClearLogs)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

func (r *Router) handleRegister(c *gin.Context) {
	var rec analysis.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if rec.EntryPath == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "entry required"})
		return
	}
	if !isSafeAbsPath(rec.EntryPath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid entry: must be absolute path without traversal"})
		return
	}
	if !isSafeAbsPath(rec.WorkDir) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid workdir: must be absolute path without traversal"})
		return
	}
	id, err := r.sup.Register(rec)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, ID: id})
}

func (r *Router) handleUnregister(c *gin.Context) {
	id, ok := requireID(c)
	if !ok {
		return
	}
	if err := r.sup.Unregister(id); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStart(c *gin.Context) {
	r.lifecycle(c, r.sup.Start)
}

func (r *Router) handleStop(c *gin.Context) {
	r.lifecycle(c, r.sup.Stop)
}

func (r *Router) handleRestart(c *gin.Context) {
	r.lifecycle(c, r.sup.Restart)
}

func (r *Router) lifecycle(c *gin.Context, op func(string) (supervisor.Status, error)) {
	id, ok := requireID(c)
	if !ok {
		return
	}
	st, err := op(id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleRename(c *gin.Context) {
	id, ok := requireID(c)
	if !ok {
		return
	}
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	st, err := r.sup.Rename(id, name)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleClearLogs(c *gin.Context) {
	id, ok := requireID(c)
	if !ok {
		return
	}
	truncate := c.Query("truncate") == "1" || c.Query("truncate") == "true"
	if err := r.sup.ClearLogs(id, truncate); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		writeJSON(c, http.StatusOK, r.sup.StatusAll())
		return
	}
	st, err := r.sup.Status(id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleLogs(c *gin.Context) {
	id, ok := requireID(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
		limit = n
	}
	lines, err := r.sup.Logs(id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, lines)
}

func requireID(c *gin.Context) (string, bool) {
	id := c.Query("id")
	if id == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id query param required"})
		return "", false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, supervisor.ErrUnknownAnalysis) {
		code = http.StatusNotFound
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}
