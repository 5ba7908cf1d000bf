package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ansup-io/ansup/internal/analysis"
	"github.com/ansup-io/ansup/internal/cleanup"
	"github.com/ansup-io/ansup/internal/history"
	"github.com/ansup-io/ansup/internal/logstore"
	"github.com/ansup-io/ansup/internal/metrics"
	"github.com/ansup-io/ansup/internal/monitor"
	"github.com/ansup-io/ansup/internal/proc"
	"github.com/ansup-io/ansup/internal/store"
)

// entry holds everything owned by one analysis identity. opMu serializes
// user-facing lifecycle operations so a start issued during an in-flight
// stop waits for full settlement; mu guards the mutable fields and is never
// held across blocking calls.
type entry struct {
	sup *Supervisor

	opMu sync.Mutex

	mu         sync.Mutex
	rec        analysis.Record
	handle     *proc.Handle
	failed     bool // last exit was a crash or spawn failure
	restartT   *time.Timer
	logSubs    []func(logstore.Entry)
	statusSubs []func(Status)

	logs    *logstore.Store
	cleaner *cleanup.Cleaner
}

func newEntry(s *Supervisor, rec analysis.Record) *entry {
	e := &entry{sup: s, rec: rec}
	e.logs = logstore.New(rec.LogPath(), logstore.Options{
		Capacity: s.opts.LogCapacity,
		Rotation: s.opts.LogRotation,
		Logger:   s.logger.With("analysis", rec.ID),
	})

	// Release order: cancel restart, force-stop, close logs, drop subs.
	e.cleaner = cleanup.New()
	e.cleaner.Add(func() {
		e.mu.Lock()
		e.logSubs = nil
		e.statusSubs = nil
		e.mu.Unlock()
	})
	e.cleaner.Add(func() { e.logs.Close() })
	e.cleaner.Add(func() {
		e.mu.Lock()
		h := e.handle
		e.mu.Unlock()
		if h != nil {
			h.Stop(false) // waits for any in-flight stop to settle
		}
	})
	e.cleaner.Add(func() {
		e.mu.Lock()
		e.cancelRestartLocked()
		e.mu.Unlock()
	})
	return e
}

func (e *entry) release() { e.cleaner.Release() }

func (e *entry) cancelRestartLocked() {
	if e.restartT != nil {
		e.restartT.Stop()
		e.restartT = nil
	}
}

func (e *entry) start() (Status, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.cleaner.Released() {
		return Status{}, ErrUnknownAnalysis
	}

	e.mu.Lock()
	if e.handle != nil {
		st := e.statusLocked()
		e.mu.Unlock()
		return st, nil // already running
	}
	e.cancelRestartLocked()
	e.rec.Enabled = true
	e.failed = false
	e.mu.Unlock()

	st, err := e.spawn()
	e.saveState()
	e.notifyStatus(st)
	return st, err
}

func (e *entry) stop() (Status, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.cleaner.Released() {
		return Status{}, ErrUnknownAnalysis
	}

	e.mu.Lock()
	e.rec.Enabled = false
	e.cancelRestartLocked()
	h := e.handle
	rec := e.rec
	e.mu.Unlock()

	if h != nil {
		res := h.Stop(true)
		metrics.IncStop(rec.Name)
		e.sendEvent(history.EventStop, res.Code, "")
		e.sup.logger.Info("analysis stopped", "analysis", rec.ID, "exit_code", res.Code)
	}

	e.mu.Lock()
	e.failed = false // an intentional stop clears the error state
	st := e.statusLocked()
	e.mu.Unlock()

	e.saveState()
	e.notifyStatus(st)
	return st, nil
}

func (e *entry) restart() (Status, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.cleaner.Released() {
		return Status{}, ErrUnknownAnalysis
	}

	e.mu.Lock()
	e.cancelRestartLocked()
	h := e.handle
	e.mu.Unlock()

	if h != nil {
		res := h.Stop(true)
		e.sendEvent(history.EventStop, res.Code, "restart")
	}

	e.mu.Lock()
	e.rec.Enabled = true
	e.failed = false
	e.mu.Unlock()

	st, err := e.spawn()
	e.saveState()
	e.notifyStatus(st)
	return st, err
}

// spawn launches the child. Callers hold opMu; the previous handle, if any,
// has fully settled.
func (e *entry) spawn() (Status, error) {
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()

	dir := rec.WorkDir
	if dir == "" {
		dir = rec.Dir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		e.sup.logger.Warn("analysis dir create failed", "analysis", rec.ID, "dir", dir, "error", err)
	}

	pairs := append(rec.EnvPairs(), "ANSUP_STORAGE_ROOT="+rec.Dir())
	cmd := proc.Command{
		EntryPath: rec.EntryPath,
		Dir:       dir,
		Env:       e.sup.opts.Env.Merge(pairs),
	}

	lg := e.sup.logger.With("analysis", rec.ID)
	mon := monitor.New(e.logs, lg, e.fanoutLog)
	now := time.Now()

	h, err := proc.New(e.sup.opts.Launcher, cmd, mon, proc.Options{
		GraceTimeout: e.sup.opts.GraceTimeout,
		Logger:       lg,
		OnExit:       e.handleExit,
	})

	e.mu.Lock()
	e.rec.LastRun = now
	if err != nil {
		e.failed = true
		st := e.statusLocked()
		e.mu.Unlock()
		metrics.IncSpawnFailure(rec.Name)
		e.sup.logger.Error("spawn failed", "analysis", rec.ID, "entry", rec.EntryPath, "error", err)
		e.sendEvent(history.EventCrash, -1, err.Error())
		return st, fmt.Errorf("start analysis %s: %w", rec.Name, err)
	}
	e.handle = h
	st := e.statusLocked()
	e.mu.Unlock()

	// Supervision is armed only after the handle is registered above, so an
	// instant exit cannot run handleExit against an entry that has not seen
	// the handle yet.
	h.Watch()

	metrics.IncStart(rec.Name)
	metrics.AddRunning(1)
	e.sup.logger.Info("analysis started", "analysis", rec.ID, "pid", h.PID())
	e.sendEvent(history.EventStart, 0, "")
	return st, nil
}

// handleExit runs on the handle's goroutine after the streams are drained
// and the child is reaped, before the handle's Done closes. It must not take
// opMu: a Stop caller holds it while waiting for settlement.
func (e *entry) handleExit(res proc.ExitResult) {
	e.mu.Lock()
	e.handle = nil
	rec := e.rec

	var crashed bool
	if !res.Requested {
		if rec.Kind == analysis.KindListener {
			// A listener is never supposed to exit on its own.
			crashed = true
		} else {
			crashed = res.Code != 0
		}
	}
	e.failed = crashed

	if crashed && rec.Kind == analysis.KindListener && rec.Enabled && !e.cleaner.Released() {
		e.restartT = time.AfterFunc(e.sup.opts.RestartDelay, e.autoRestart)
	}
	st := e.statusLocked()
	e.mu.Unlock()

	msg := fmt.Sprintf("process exited with code %d", res.Code)
	if res.Requested {
		msg += " (requested)"
	}
	line := logstore.Entry{Time: time.Now(), Origin: logstore.OriginSystem, Message: msg}
	e.logs.Append(line)
	e.fanoutLog(line)

	metrics.AddRunning(-1)
	if crashed {
		metrics.IncCrash(rec.Name)
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		e.sendEvent(history.EventCrash, res.Code, detail)
		e.sup.logger.Warn("analysis exited unexpectedly", "analysis", rec.ID, "exit_code", res.Code)
	} else if !res.Requested {
		// oneshot ran to completion
		e.sendEvent(history.EventStop, res.Code, "completed")
		e.sup.logger.Info("analysis completed", "analysis", rec.ID)
	}

	e.saveState()
	e.notifyStatus(st)
}

// autoRestart fires from the restart timer. Conditions are re-checked under
// opMu because a user stop or unregister may have won the race.
func (e *entry) autoRestart() {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	e.restartT = nil
	ok := e.handle == nil &&
		e.rec.Enabled &&
		e.rec.Kind == analysis.KindListener &&
		!e.cleaner.Released()
	rec := e.rec
	e.mu.Unlock()
	if !ok {
		return
	}

	metrics.IncRestart(rec.Name)
	e.sup.logger.Info("auto-restarting analysis", "analysis", rec.ID)

	st, err := e.spawn()
	if err != nil {
		// keep trying at the fixed cadence while the analysis stays enabled
		e.mu.Lock()
		if e.rec.Enabled && !e.cleaner.Released() {
			e.restartT = time.AfterFunc(e.sup.opts.RestartDelay, e.autoRestart)
		}
		e.mu.Unlock()
	}
	e.saveState()
	e.notifyStatus(st)
}

func (e *entry) rename(newName string) (Status, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.cleaner.Released() {
		return Status{}, ErrUnknownAnalysis
	}

	e.mu.Lock()
	e.rec.Name = newName
	newPath := e.rec.LogPath()
	st := e.statusLocked()
	e.mu.Unlock()

	e.logs.Rename(newPath)
	e.saveState()
	e.notifyStatus(st)
	return st, nil
}

func (e *entry) status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *entry) statusLocked() Status {
	st := Status{
		ID:      e.rec.ID,
		Name:    e.rec.Name,
		Kind:    e.rec.Kind,
		Enabled: e.rec.Enabled,
		LastRun: e.rec.LastRun,
		State:   StatusStopped,
	}
	switch {
	case e.handle != nil:
		st.State = StatusRunning
		st.PID = e.handle.PID()
		st.StartedAt = e.handle.StartedAt()
	case e.failed:
		st.State = StatusError
	}
	return st
}

func (e *entry) fanoutLog(le logstore.Entry) {
	e.mu.Lock()
	name := e.rec.Name
	subs := make([]func(logstore.Entry), len(e.logSubs))
	copy(subs, e.logSubs)
	e.mu.Unlock()

	metrics.IncLogLine(name, string(le.Origin))
	for _, fn := range subs {
		fn(le)
	}
}

func (e *entry) notifyStatus(st Status) {
	e.mu.Lock()
	subs := make([]func(Status), len(e.statusSubs))
	copy(subs, e.statusSubs)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

// saveState persists the resume-relevant slice of the entry. Persistence
// failures are logged and ignored: memory is authoritative.
func (e *entry) saveState() {
	st := e.sup.opts.Store
	if st == nil {
		return
	}
	e.mu.Lock()
	rec := store.Record{
		ID:      e.rec.ID,
		Name:    e.rec.Name,
		Kind:    string(e.rec.Kind),
		Enabled: e.rec.Enabled,
		Status:  e.statusLocked().State,
		LastRun: e.rec.LastRun,
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Save(ctx, rec); err != nil {
		e.sup.logger.Warn("state save failed", "analysis", rec.ID, "error", err)
	}
}

// sendEvent delivers to the history sink off the lifecycle path.
func (e *entry) sendEvent(t history.EventType, code int, detail string) {
	sink := e.sup.opts.History
	if sink == nil {
		return
	}
	e.mu.Lock()
	ev := history.Event{
		Type:       t,
		AnalysisID: e.rec.ID,
		Name:       e.rec.Name,
		Kind:       string(e.rec.Kind),
		OccurredAt: time.Now().UTC(),
		ExitCode:   code,
		Detail:     detail,
	}
	e.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.Send(ctx, ev); err != nil {
			e.sup.logger.Warn("history event send failed", "analysis", ev.AnalysisID, "type", string(t), "error", err)
		}
	}()
}
