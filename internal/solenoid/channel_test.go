package solenoid

import "testing"

func TestNewChannelIdentity(t *testing.T) {
	c := newChannel(2, 5, 21)
	if c.Board() != 2 || c.Local() != 5 || c.Global() != 21 {
		t.Errorf("identity = (%d,%d,%d), want (2,5,21)", c.Board(), c.Local(), c.Global())
	}
	if c.IsOn() {
		t.Error("new channel should be off")
	}
	if c.ActivationCount() != 0 {
		t.Errorf("activation count = %d, want 0", c.ActivationCount())
	}
}

func TestUpdateStateOnIsIdempotent(t *testing.T) {
	c := newChannel(0, 0, 0)

	c.UpdateState(true, 1000)
	lastOn := c.lastOn
	count := c.activations
	windowStart := c.windowStart

	// A second on request must not touch state, timestamps, or counters.
	c.UpdateState(true, 2000)

	if !c.IsOn() {
		t.Error("channel should be on")
	}
	if c.lastOn != lastOn {
		t.Errorf("lastOn = %d, want %d", c.lastOn, lastOn)
	}
	if c.activations != count {
		t.Errorf("activations = %d, want %d", c.activations, count)
	}
	if c.windowStart != windowStart {
		t.Errorf("windowStart = %d, want %d", c.windowStart, windowStart)
	}
}

func TestOnDurationZeroWhenOff(t *testing.T) {
	c := newChannel(0, 0, 0)

	if got := c.OnDuration(5000); got != 0 {
		t.Errorf("OnDuration before first activation = %d, want 0", got)
	}

	c.UpdateState(true, 1000)
	if got := c.OnDuration(1500); got != 500 {
		t.Errorf("OnDuration while on = %d, want 500", got)
	}

	c.UpdateState(false, 2000)
	if got := c.OnDuration(9000); got != 0 {
		t.Errorf("OnDuration after off = %d, want 0", got)
	}
}

func TestTimeSinceOffSentinel(t *testing.T) {
	c := newChannel(0, 0, 0)

	if got := c.TimeSinceOff(1000); got != NeverOff {
		t.Errorf("TimeSinceOff before first off = %d, want NeverOff", got)
	}

	c.UpdateState(true, 1000)
	if got := c.TimeSinceOff(1500); got != NeverOff {
		t.Errorf("TimeSinceOff while on, never off = %d, want NeverOff", got)
	}

	c.UpdateState(false, 2000)
	if got := c.TimeSinceOff(2010); got != 10 {
		t.Errorf("TimeSinceOff = %d, want 10", got)
	}
	if got := c.TimeSinceOff(2500); got != 500 {
		t.Errorf("TimeSinceOff = %d, want 500", got)
	}
}

func TestTotalOnTimeAccumulates(t *testing.T) {
	c := newChannel(0, 0, 0)

	c.UpdateState(true, 1000)
	c.UpdateState(false, 1300)
	if got := c.TotalOnTime(1300); got != 300 {
		t.Errorf("TotalOnTime after first activation = %d, want 300", got)
	}

	// While on, the in-progress duration is included.
	c.UpdateState(true, 2000)
	if got := c.TotalOnTime(2200); got != 500 {
		t.Errorf("TotalOnTime mid-activation = %d, want 500", got)
	}

	c.UpdateState(false, 2400)
	if got := c.TotalOnTime(9999); got != 700 {
		t.Errorf("TotalOnTime = %d, want 700", got)
	}
	if got := c.ActivationCount(); got != 2 {
		t.Errorf("ActivationCount = %d, want 2", got)
	}
}

func TestResetStatsPreservesStateAndTimestamps(t *testing.T) {
	c := newChannel(0, 0, 0)

	c.UpdateState(true, 1000)
	c.UpdateState(false, 1500)
	c.UpdateState(true, 2000)

	c.ResetStats()

	if got := c.TotalOnTime(2000); got != 0 {
		t.Errorf("TotalOnTime after reset = %d, want 0", got)
	}
	if got := c.ActivationCount(); got != 0 {
		t.Errorf("ActivationCount after reset = %d, want 0", got)
	}
	if c.windowStart != 0 || c.windowOn != 0 {
		t.Error("duty window should be cleared")
	}
	if !c.IsOn() {
		t.Error("reset must not change current state")
	}
	if got := c.TimeSinceOff(1510); got != 10 {
		t.Errorf("TimeSinceOff after reset = %d, want 10", got)
	}
}

func TestDutyCycleContinuousActivation(t *testing.T) {
	c := newChannel(0, 0, 0)
	const window = 10000

	// Held on continuously from its first activation the channel reads
	// 100% for the whole window.
	c.UpdateState(true, 1000)
	if got := c.DutyCycle(window, 6000); got != 1.0 {
		t.Errorf("DutyCycle mid-window = %v, want 1.0", got)
	}

	// Once the window has fully elapsed it hard-resets: accrued on-time
	// is discarded and only time after the reset counts.
	if got := c.DutyCycle(window, 11001); got != 0 {
		t.Errorf("DutyCycle right after reset = %v, want 0", got)
	}
	if c.windowStart != 11001 {
		t.Errorf("windowStart = %d, want 11001", c.windowStart)
	}
	if got := c.DutyCycle(window, 12001); got != 1.0 {
		t.Errorf("DutyCycle in new window while still on = %v, want 1.0", got)
	}
}

func TestDutyCycleHalfLoad(t *testing.T) {
	c := newChannel(0, 0, 0)
	const window = 10000

	// On for 2500ms out of a 5000ms observation span.
	c.UpdateState(true, 1000)
	c.UpdateState(false, 3500)

	if got := c.DutyCycle(window, 6000); got != 0.5 {
		t.Errorf("DutyCycle = %v, want 0.5", got)
	}
}

func TestDutyCycleZeroWindow(t *testing.T) {
	c := newChannel(0, 0, 0)
	c.UpdateState(true, 1000)
	if got := c.DutyCycle(0, 2000); got != 0 {
		t.Errorf("DutyCycle with zero window = %v, want 0", got)
	}
}

func TestDutyCycleJustBeforeExpiry(t *testing.T) {
	c := newChannel(0, 0, 0)
	const window = 10000

	// Accrue 4000ms of on-time, then query one tick before expiry: the
	// full window history still counts.
	c.UpdateState(true, 1000)
	c.UpdateState(false, 5000)

	got := c.DutyCycle(window, 10999)
	want := 4000.0 / 9999.0
	if got != want {
		t.Errorf("DutyCycle = %v, want %v", got, want)
	}
}

func TestWouldExceedDutyCycle(t *testing.T) {
	const window = 10000

	t.Run("no history never rejects", func(t *testing.T) {
		c := newChannel(0, 0, 0)
		if c.WouldExceedDutyCycle(window, 0.5, 100, 1000) {
			t.Error("fresh channel must not be rejected by projection")
		}
	})

	t.Run("disabled limits never reject", func(t *testing.T) {
		c := newChannel(0, 0, 0)
		c.UpdateState(true, 1000)
		c.UpdateState(false, 9000)
		if c.WouldExceedDutyCycle(0, 0.5, 100, 9500) {
			t.Error("zero window must not reject")
		}
		if c.WouldExceedDutyCycle(window, 1.0, 100, 9500) {
			t.Error("max duty 1.0 must not reject")
		}
	})

	t.Run("projection over the limit rejects", func(t *testing.T) {
		c := newChannel(0, 0, 0)
		// 4000ms on within 8000ms elapsed; projecting 1000ms more:
		// (4000+1000)/(8000+1000) = 0.556 > 0.5.
		c.UpdateState(true, 1000)
		c.UpdateState(false, 5000)
		if !c.WouldExceedDutyCycle(window, 0.5, 1000, 9000) {
			t.Error("projection should exceed 50%")
		}
	})

	t.Run("projection under the limit accepts", func(t *testing.T) {
		c := newChannel(0, 0, 0)
		// 1000ms on within 8000ms elapsed; (1000+500)/(8500) = 0.18.
		c.UpdateState(true, 1000)
		c.UpdateState(false, 2000)
		if c.WouldExceedDutyCycle(window, 0.5, 500, 9000) {
			t.Error("projection should stay under 50%")
		}
	})

	t.Run("does not mutate window state", func(t *testing.T) {
		c := newChannel(0, 0, 0)
		c.UpdateState(true, 1000)
		c.UpdateState(false, 2000)
		start, on := c.windowStart, c.windowOn
		c.WouldExceedDutyCycle(window, 0.5, 500, 50000)
		if c.windowStart != start || c.windowOn != on {
			t.Error("projection must not mutate window state")
		}
	})
}

func TestCounterWraparound(t *testing.T) {
	c := newChannel(0, 0, 0)

	// Turn on 256 ticks before the counter wraps; 256 ticks after the
	// wrap the elapsed time is 512ms.
	before := ^uint32(0) - 255
	after := uint32(256)

	c.UpdateState(true, before)
	if got := c.OnDuration(after); got != 512 {
		t.Errorf("OnDuration across wrap = %d, want 512", got)
	}

	c.UpdateState(false, after)
	if got := c.TimeSinceOff(after + 100); got != 100 {
		t.Errorf("TimeSinceOff across wrap = %d, want 100", got)
	}
	if got := c.TotalOnTime(after); got != 512 {
		t.Errorf("TotalOnTime across wrap = %d, want 512", got)
	}
}
