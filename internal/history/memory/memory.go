package memory

import (
	"context"
	"sync"

	"github.com/ansup-io/ansup/internal/history"
)

// Sink keeps events in memory. Used in tests and as a cheap default.
type Sink struct {
	mu     sync.Mutex
	events []history.Event
	closed bool
}

func New() *Sink { return &Sink{} }

func (s *Sink) Send(_ context.Context, e history.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.events = append(s.events, e)
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Events returns a copy of everything received so far.
func (s *Sink) Events() []history.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]history.Event, len(s.events))
	copy(out, s.events)
	return out
}
