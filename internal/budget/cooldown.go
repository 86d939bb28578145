package budget

import (
	"sync"
	"time"
)

// Cooldown is a global quiet period. It is started by the engine after a
// tick that applied at least one fix and stays active for its interval.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	until    time.Time
	now      func() time.Time
}

// NewCooldown returns an inactive Cooldown. An interval <= 0 disables it.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{interval: interval, now: time.Now}
}

// SetInterval changes the interval used by the next Start. A running
// cooldown keeps its current deadline.
func (c *Cooldown) SetInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
}

// Start begins a cooldown from now. It is a no-op when disabled.
func (c *Cooldown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interval <= 0 {
		return
	}
	c.until = c.now().Add(c.interval)
}

// Active reports whether the cooldown has not yet expired.
func (c *Cooldown) Active() bool {
	return c.Remaining() > 0
}

// Remaining returns the time left, or zero when inactive.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.until.IsZero() {
		return 0
	}
	left := c.until.Sub(c.now())
	if left <= 0 {
		c.until = time.Time{}
		return 0
	}
	return left
}

// Until returns the expiry time, or the zero time when inactive.
func (c *Cooldown) Until() time.Time {
	if !c.Active() {
		return time.Time{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until
}

// Reset ends any active cooldown.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = time.Time{}
}
