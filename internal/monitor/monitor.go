package monitor

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ansup-io/ansup/internal/framer"
	"github.com/ansup-io/ansup/internal/logstore"
)

// Monitor pumps a child's stdout and stderr into the log store and an
// optional line hook. Each stream gets its own framer and goroutine; Wait
// blocks until both streams hit EOF and their trailing fragments are
// flushed, which is the signal that the pipes may be released.
type Monitor struct {
	store  *logstore.Store
	logger *slog.Logger
	onLine func(logstore.Entry)
	wg     sync.WaitGroup
}

// New creates a monitor. onLine may be nil; when set it is invoked
// fire-and-forget for every captured line, after the store append.
func New(store *logstore.Store, lg *slog.Logger, onLine func(logstore.Entry)) *Monitor {
	if lg == nil {
		lg = slog.Default()
	}
	return &Monitor{store: store, logger: lg, onLine: onLine}
}

// Watch starts pumping both streams. It must be called at most once.
func (m *Monitor) Watch(stdout, stderr io.Reader) {
	m.wg.Add(2)
	go m.pump(stdout, logstore.OriginStdout)
	go m.pump(stderr, logstore.OriginStderr)
}

// Wait blocks until both streams are fully drained.
func (m *Monitor) Wait() { m.wg.Wait() }

func (m *Monitor) pump(r io.Reader, origin logstore.Origin) {
	defer m.wg.Done()
	f := framer.New()
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range f.Feed(buf[:n]) {
				m.emit(origin, line)
			}
		}
		if err != nil {
			// Read errors on a dying child (broken pipe, closed fd) are
			// expected; they end the stream, never the supervisor.
			if !errors.Is(err, io.EOF) {
				m.logger.Warn("output stream read failed", "origin", string(origin), "error", err)
			}
			if line, ok := f.Flush(); ok {
				m.emit(origin, line)
			}
			return
		}
	}
}

func (m *Monitor) emit(origin logstore.Origin, line string) {
	e := logstore.Entry{Time: time.Now(), Origin: origin, Message: line}
	m.store.Append(e)
	if m.onLine != nil {
		m.onLine(e)
	}
}
