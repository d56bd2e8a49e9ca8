// Package solenoid implements a safety-interlock supervisor for banks of
// solenoid actuators driven through addressable multi-channel output boards.
// It prevents coil damage from sustained activation, insufficient cooldown
// between activations, and sustained high duty cycle.
//
// The package performs no time reads of its own: every timing value is a
// uint32 millisecond counter supplied by a Clock (or passed directly, in the
// case of Channel). This keeps the state machines deterministic under test
// and makes the ~49.7-day counter wraparound explicit — elapsed times are
// always computed with unsigned modular subtraction.
package solenoid

// NeverOff is returned by TimeSinceOff for a channel that has not yet had an
// off transition. It means no cooldown constraint applies.
const NeverOff = ^uint32(0)

// Channel tracks the state, timing, and statistics of a single actuator
// channel. It is maintained by Driver and exposed read-only for diagnostics.
//
// Duty cycle is measured over a fixed-width window that hard-resets once it
// has fully elapsed: a channel that saturated the previous window starts the
// next one at 0%.
type Channel struct {
	board  uint8
	local  uint8
	global uint8

	on      bool
	lastOn  uint32 // counter value at last on transition, 0 = cleared
	lastOff uint32 // counter value at last off transition, 0 = never

	totalOn     uint32
	activations uint32

	windowStart uint32 // counter value when the duty window began, 0 = not started
	windowOn    uint32 // accumulated on-time inside the current window
}

// newChannel returns a Channel with the given identity, in the off state.
func newChannel(board, local, global uint8) Channel {
	return Channel{board: board, local: local, global: global}
}

// Board returns the index of the board this channel belongs to.
func (c *Channel) Board() uint8 { return c.board }

// Local returns the channel index on its board.
func (c *Channel) Local() uint8 { return c.local }

// Global returns the flattened channel index across all boards.
func (c *Channel) Global() uint8 { return c.global }

// IsOn reports the current commanded state.
func (c *Channel) IsOn() bool { return c.on }

// OnDuration returns how long the channel has been on, in milliseconds, or 0
// if it is currently off.
func (c *Channel) OnDuration(now uint32) uint32 {
	if !c.on {
		return 0
	}
	return now - c.lastOn
}

// TimeSinceOff returns the milliseconds elapsed since the last off
// transition, or NeverOff if the channel has never been turned off.
func (c *Channel) TimeSinceOff(now uint32) uint32 {
	if c.lastOff == 0 {
		return NeverOff
	}
	return now - c.lastOff
}

// TotalOnTime returns the lifetime accumulated on-time in milliseconds. If
// the channel is currently on, the in-progress activation is included.
func (c *Channel) TotalOnTime(now uint32) uint32 {
	if c.on {
		return c.totalOn + c.OnDuration(now)
	}
	return c.totalOn
}

// ActivationCount returns how many times the channel has been turned on
// since the last stats reset.
func (c *Channel) ActivationCount() uint32 { return c.activations }

// ResetStats clears the accumulated on-time, the activation count, and the
// duty cycle window. Current state and transition timestamps are untouched.
func (c *Channel) ResetStats() {
	c.totalOn = 0
	c.activations = 0
	c.windowStart = 0
	c.windowOn = 0
}

// UpdateState records a state transition at the given counter value. Calling
// it with the current state is a no-op. The driver calls this only after a
// successful hardware write.
func (c *Channel) UpdateState(on bool, now uint32) {
	switch {
	case on && !c.on:
		c.lastOn = now
		c.activations++
		c.on = true
		if c.windowStart == 0 {
			// First-ever activation starts the duty window.
			c.windowStart = now
		}
	case !on && c.on:
		elapsed := now - c.lastOn
		c.totalOn += elapsed
		c.windowOn += elapsed
		c.lastOff = now
		c.lastOn = 0
		c.on = false
	}
}

// advanceWindow resets the duty window if it has fully elapsed. On-time
// accumulated in the expired window is discarded; an in-progress activation
// is counted from the new window start by the callers.
func (c *Channel) advanceWindow(windowMs, now uint32) {
	if c.windowStart == 0 {
		c.windowStart = now
		c.windowOn = 0
		return
	}
	if now-c.windowStart >= windowMs {
		c.windowStart = now
		c.windowOn = 0
	}
}

// onTimeInWindow returns the on-time accrued inside the current window,
// including the in-progress activation clipped to the window start.
func (c *Channel) onTimeInWindow(now uint32) uint32 {
	onTime := c.windowOn
	if c.on {
		if c.lastOn >= c.windowStart {
			onTime += now - c.lastOn
		} else {
			// Activation began before the window started; count only
			// the part inside the window.
			onTime += now - c.windowStart
		}
	}
	return onTime
}

// DutyCycle returns the fraction of time the channel has been on within the
// rolling window, 0.0 to 1.0. The window is advanced first, so an expired
// window reads as freshly started. Returns 0 if windowMs is 0.
func (c *Channel) DutyCycle(windowMs, now uint32) float64 {
	if windowMs == 0 {
		return 0
	}

	c.advanceWindow(windowMs, now)

	elapsed := now - c.windowStart
	if elapsed == 0 {
		return 0
	}
	// Cap the denominator at the window width for the tick right after a
	// reset, where elapsed can briefly exceed it.
	if elapsed > windowMs {
		elapsed = windowMs
	}

	return float64(c.onTimeInWindow(now)) / float64(elapsed)
}

// WouldExceedDutyCycle projects the duty cycle forward assuming the channel
// is activated now and stays on for estimatedOnMs, without mutating window
// state. It lets the driver reject an activation before committing to it.
func (c *Channel) WouldExceedDutyCycle(windowMs uint32, maxDutyCycle float64, estimatedOnMs, now uint32) bool {
	if windowMs == 0 || maxDutyCycle >= 1.0 {
		return false
	}

	var elapsed uint32
	if c.windowStart > 0 {
		elapsed = now - c.windowStart
	}
	if elapsed == 0 {
		// Fresh window: no history to project against, so the
		// projection alone cannot justify a rejection.
		return false
	}

	projectedOn := c.onTimeInWindow(now) + estimatedOnMs
	projectedElapsed := elapsed + estimatedOnMs
	if projectedElapsed > windowMs {
		projectedElapsed = windowMs
	}
	if projectedElapsed == 0 {
		return false
	}

	return float64(projectedOn)/float64(projectedElapsed) > maxDutyCycle
}
