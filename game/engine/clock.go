package engine

import "fmt"

// Clock converts wall-clock tick deltas into simulated time
type Clock struct {
	elapsedMs float64
	scale     float64
	paused    bool
}

// NewClock creates a running clock at 1x
func NewClock() *Clock {
	return &Clock{scale: 1}
}

// Advance scales raw and adds it to the elapsed time. It returns the
// simulated delta, which is zero while paused or for non-positive input.
func (c *Clock) Advance(rawMs float64) float64 {
	if c.paused || rawMs <= 0 {
		return 0
	}
	delta := rawMs * c.scale
	c.elapsedMs += delta
	return delta
}

// ElapsedMs returns the simulated time since start
func (c *Clock) ElapsedMs() float64 {
	return c.elapsedMs
}

// SetScale changes the speed of simulated time
func (c *Clock) SetScale(scale float64) error {
	if scale <= 0 || scale > MaxTimeScale {
		return fmt.Errorf("time scale must be in (0, %d], got %v", MaxTimeScale, scale)
	}
	c.scale = scale
	return nil
}

// Scale returns the current speed factor
func (c *Clock) Scale() float64 {
	return c.scale
}

// SetPaused stops or resumes simulated time
func (c *Clock) SetPaused(paused bool) {
	c.paused = paused
}

// Paused reports whether the clock is stopped
func (c *Clock) Paused() bool {
	return c.paused
}
