package logstore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ansup-io/ansup/internal/logger"
)

// Origin identifies which stream produced a captured line.
type Origin string

const (
	OriginStdout Origin = "stdout"
	OriginStderr Origin = "stderr"
	OriginSystem Origin = "system" // supervisor-generated lines such as exit notices
)

// DefaultCapacity bounds the in-memory ring when no capacity is configured.
const DefaultCapacity = 100

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one captured log line.
type Entry struct {
	Time    time.Time `json:"time"`
	Origin  Origin    `json:"origin"`
	Message string    `json:"message"`
}

// Options tunes a Store.
type Options struct {
	Capacity int // ring size, DefaultCapacity when <= 0
	Rotation logger.Rotation
	Logger   *slog.Logger
}

// Store keeps a bounded in-memory ring of the most recent entries and
// mirrors every entry to an append-only rotated file. The in-memory path is
// authoritative: disk trouble is logged at warn and never surfaces to the
// appender.
type Store struct {
	mu     sync.Mutex
	ring   []Entry
	next   int // write cursor into ring
	count  int
	path   string
	w      io.WriteCloser
	rot    logger.Rotation
	logger *slog.Logger
	closed bool
}

// New creates a store writing to path. The file (and its parent directories)
// is created lazily on first append.
func New(path string, opts Options) *Store {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Store{
		ring:   make([]Entry, capacity),
		path:   path,
		rot:    opts.Rotation,
		logger: lg,
	}
}

// Append records an entry in the ring, evicting the oldest when full, and
// mirrors it to the file.
func (s *Store) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ring[s.next] = e
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	s.writeFileLocked(e)
}

func (s *Store) writeFileLocked(e Entry) {
	if s.path == "" {
		return
	}
	if s.w == nil {
		s.w = logger.NewRotatingWriter(s.path, s.rot)
	}
	prefix := ""
	if e.Origin != OriginStdout {
		prefix = "[" + string(e.Origin) + "] "
	}
	line := fmt.Sprintf("[%s] %s%s\n", e.Time.Format(timeLayout), prefix, e.Message)
	if _, err := io.WriteString(s.w, line); err != nil {
		s.logger.Warn("log file write failed", "path", s.path, "error", err)
	}
}

// Logs returns up to limit entries, most recent first. limit <= 0 returns
// everything retained.
func (s *Store) Logs(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}

// Len reports how many entries are retained in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Path returns the current file target.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Clear drops the in-memory ring. When truncateFile is set, the on-disk file
// is removed as well; otherwise historical content is left untouched.
func (s *Store) Clear(truncateFile bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
	s.count = 0
	if !truncateFile || s.path == "" {
		return
	}
	s.closeWriterLocked()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("log file remove failed", "path", s.path, "error", err)
	}
}

// Rename atomically swaps the file target. Entries already written stay at
// the old path; future appends go to newPath.
func (s *Store) Rename(newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newPath == s.path {
		return
	}
	s.closeWriterLocked()
	s.path = newPath
}

// Close flushes and releases the file writer. Further appends are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeWriterLocked()
}

func (s *Store) closeWriterLocked() {
	if s.w == nil {
		return
	}
	if err := s.w.Close(); err != nil {
		s.logger.Warn("log file close failed", "path", s.path, "error", err)
	}
	s.w = nil
}
