package coordinator

import "time"

type CoordinatorOpt func(*Coordinator)

// WithDefaultSlot sets the slot loaded at startup and written by every save.
func WithDefaultSlot(slot string) CoordinatorOpt {
	return func(c *Coordinator) {
		c.defaultSlot = slot
	}
}

// WithAutoLoad controls whether a saved default slot is resumed at startup,
// publishing the session resumed event.
func WithAutoLoad(enabled bool) CoordinatorOpt {
	return func(c *Coordinator) {
		c.autoLoad = enabled
	}
}

func WithAutoSaveInterval(d time.Duration) CoordinatorOpt {
	return func(c *Coordinator) {
		c.autoSaveInterval = d
	}
}

func WithShutdownTimeout(d time.Duration) CoordinatorOpt {
	return func(c *Coordinator) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CoordinatorOpt {
	return func(c *Coordinator) {
		c.now = now
	}
}
