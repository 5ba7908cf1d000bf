package client

import "time"

// RegisterRequest mirrors the JSON body accepted by POST /register.
type RegisterRequest struct {
	ID      string            `json:"id,omitempty"`
	Name    string            `json:"name,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Entry   string            `json:"entry"`
	WorkDir string            `json:"workdir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Enabled bool              `json:"enabled,omitempty"`
}

// Status is the server's view of a single analysis.
type Status struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	State     string    `json:"status"`
	Enabled   bool      `json:"enabled"`
	PID       int       `json:"pid,omitempty"`
	LastRun   time.Time `json:"last_run,omitzero"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// LogEntry is one captured output line, most recent first.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Origin  string    `json:"origin"`
	Message string    `json:"message"`
}

type registerResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}
