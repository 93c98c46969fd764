// Package countdown derives the seconds left until the next resolution tick
// from an absolute deadline. Nothing here decrements a counter: every reading
// is recomputed from the deadline and the clock, so a late or skipped tick
// never accumulates drift and a new deadline corrects the display at once.
package countdown

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the recomputation cadence.
const DefaultInterval = time.Second

// Remaining returns max(0, floor((deadline-now)/1s)).
func Remaining(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Countdown owns the ticker that paces recomputation. It is not safe for
// concurrent use; the goroutine that owns the game state owns the Countdown.
type Countdown struct {
	clock    clockwork.Clock
	interval time.Duration
	ticker   clockwork.Ticker
	deadline time.Time
}

// New creates a stopped countdown.
func New(clock clockwork.Clock, interval time.Duration) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Countdown{clock: clock, interval: interval}
}

// Restart cancels any running ticker and starts a fresh one. Calling it
// repeatedly never leaves more than one ticker alive.
func (c *Countdown) Restart() {
	c.Stop()
	c.ticker = c.clock.NewTicker(c.interval)
}

// Stop releases the ticker. It is safe to call on a stopped countdown.
func (c *Countdown) Stop() {
	if c.ticker == nil {
		return
	}
	stopAndDrain(c.ticker)
	c.ticker = nil
}

// C returns the tick channel, or nil when stopped so a select on it blocks.
func (c *Countdown) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// SetDeadline records the latest authoritative deadline.
func (c *Countdown) SetDeadline(deadline time.Time) {
	c.deadline = deadline
}

// Seconds recomputes the remaining seconds against the current deadline.
func (c *Countdown) Seconds() int {
	return Remaining(c.deadline, c.clock.Now())
}

// stopAndDrain stops a ticker and discards a tick that was already delivered
// so a stale reading is never observed after a restart.
func stopAndDrain(t clockwork.Ticker) {
	t.Stop()
	select {
	case <-t.Chan():
	default:
	}
}
