package exam

import "fmt"

// Clock counts down the seconds left in one attempt. It knows nothing about
// wall time: the host calls Tick once per elapsed second. A Clock belongs to
// exactly one attempt and is not safe for concurrent use on its own.
type Clock struct {
	remaining int
	started   bool
}

// Start sets the countdown. A clock can only be started once.
func (c *Clock) Start(durationSeconds int) error {
	if durationSeconds <= 0 {
		return invalidInput("duration must be positive, got %d seconds", durationSeconds)
	}
	if c.started {
		return fmt.Errorf("%w: clock already started", ErrInvalidState)
	}
	c.remaining = durationSeconds
	c.started = true
	return nil
}

// Tick removes one second, never going below zero, and returns what is left.
func (c *Clock) Tick() int {
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

// Remaining returns the seconds left.
func (c *Clock) Remaining() int {
	return c.remaining
}

// Expired reports whether a started clock has run down to zero.
func (c *Clock) Expired() bool {
	return c.started && c.remaining == 0
}
