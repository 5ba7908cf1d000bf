package proc

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ansup-io/ansup/internal/monitor"
)

// State is the lifecycle phase of a handle.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// DefaultGraceTimeout is how long a graceful stop waits between Terminate
// and Kill.
const DefaultGraceTimeout = 3000 * time.Millisecond

// ExitResult describes how the child went away.
type ExitResult struct {
	Code      int   // conventional exit code, -1 for signals
	Err       error // Wait error, nil on clean exit
	Requested bool  // true when a Stop asked for it
}

// Options tunes a handle.
type Options struct {
	GraceTimeout time.Duration
	Logger       *slog.Logger
	// OnExit runs after both output streams are drained and the process is
	// reaped, before Done is closed and before any pending Stop returns.
	// Exactly one call per handle.
	OnExit func(res ExitResult)
}

// Handle owns exactly one live OS process from spawn to reap. A handle is
// single-use: once Done is closed it stays stopped forever.
type Handle struct {
	mu        sync.Mutex
	state     State
	proc      Process
	mon       *monitor.Monitor
	opts      Options
	requested bool
	killTimer *time.Timer
	res       ExitResult
	done      chan struct{}
	startedAt time.Time
	logger    *slog.Logger
}

// New launches cmd and wires mon onto its pipes. Exit supervision does not
// begin until Watch is called, so the caller can store the handle wherever
// OnExit expects to find it before the first exit can be observed. On spawn
// failure no handle exists and the caller's state is unchanged.
func New(l Launcher, cmd Command, mon *monitor.Monitor, opts Options) (*Handle, error) {
	if opts.GraceTimeout <= 0 {
		opts.GraceTimeout = DefaultGraceTimeout
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}

	p, err := l.Launch(cmd)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		state:     StateRunning,
		proc:      p,
		mon:       mon,
		opts:      opts,
		done:      make(chan struct{}),
		startedAt: time.Now(),
		logger:    lg,
	}
	mon.Watch(p.Stdout(), p.Stderr())
	return h, nil
}

// Watch starts exit supervision. Call it exactly once per handle; Done never
// closes before it runs.
func (h *Handle) Watch() {
	go h.supervise(h.mon)
}

// Start is New followed by Watch, for callers that do not need to observe
// the handle before exit handling can run.
func Start(l Launcher, cmd Command, mon *monitor.Monitor, opts Options) (*Handle, error) {
	h, err := New(l, cmd, mon, opts)
	if err != nil {
		return nil, err
	}
	h.Watch()
	return h, nil
}

func (h *Handle) supervise(mon *monitor.Monitor) {
	// Drain both pipes to EOF before reaping; Wait closes them.
	mon.Wait()
	err := h.proc.Wait()

	h.mu.Lock()
	if h.killTimer != nil {
		h.killTimer.Stop()
		h.killTimer = nil
	}
	res := ExitResult{Code: ExitCode(err), Err: err, Requested: h.requested}
	h.res = res
	h.mu.Unlock()

	// Exit handling must finish before Done releases pending Stop callers
	// and before the owner may spawn again.
	if h.opts.OnExit != nil {
		h.opts.OnExit(res)
	}

	h.mu.Lock()
	h.state = StateStopped
	h.proc = nil
	h.mu.Unlock()
	close(h.done)
}

// Stop requests termination and blocks until the exit is fully handled.
// Graceful stops escalate to Kill after the grace timeout. Stop never
// returns before the process is reaped; it is safe to call concurrently and
// repeatedly.
func (h *Handle) Stop(graceful bool) ExitResult {
	h.mu.Lock()
	h.requested = true
	if h.state == StateRunning {
		h.state = StateStopping
		p := h.proc
		if graceful {
			if err := p.Terminate(); err != nil {
				h.logger.Warn("terminate failed, killing", "pid", p.PID(), "error", err)
				_ = p.Kill()
			} else {
				h.killTimer = time.AfterFunc(h.opts.GraceTimeout, func() {
					h.logger.Warn("grace timeout elapsed, killing", "pid", p.PID())
					_ = p.Kill()
				})
			}
		} else {
			_ = p.Kill()
		}
	}
	h.mu.Unlock()

	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.res
}

// Done is closed once the exit is fully handled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current lifecycle phase.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PID returns the child's pid, or 0 once it is reaped.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc == nil {
		return 0
	}
	return h.proc.PID()
}

// StartedAt is the spawn time.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Result returns the exit result; valid only after Done is closed.
func (h *Handle) Result() ExitResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.res
}
