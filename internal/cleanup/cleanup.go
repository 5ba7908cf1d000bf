package cleanup

import "sync"

// Cleaner runs a fixed sequence of release steps exactly once. Steps are
// added as the owning resources are wired and run in reverse order, so the
// most recently acquired resource is released first. Release after Release
// is a no-op, and steps added afterwards run immediately.
type Cleaner struct {
	mu       sync.Mutex
	steps    []func()
	released bool
}

func New() *Cleaner { return &Cleaner{} }

// Add registers a release step. If the cleaner was already released the step
// runs synchronously, so late wiring cannot leak.
func (c *Cleaner) Add(step func()) {
	if step == nil {
		return
	}
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		step()
		return
	}
	c.steps = append(c.steps, step)
	c.mu.Unlock()
}

// Release runs all steps in reverse order, once. The steps run with the
// cleaner's lock dropped, so they may take locks that concurrent Add or
// Released callers hold. A second Release returns without waiting for the
// first one's steps.
func (c *Cleaner) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	steps := c.steps
	c.steps = nil
	c.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

// Released reports whether Release has run.
func (c *Cleaner) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
