package solenoid

import "time"

// Clock returns a monotonic millisecond counter. The counter wraps around
// after roughly 49.7 days; all duration math in this package subtracts
// counter values as uint32 so a wrap still yields the correct small elapsed
// value. A reading of 0 is reserved to mean "never", so implementations
// should start above 0.
type Clock func() uint32

// WallClock returns a Clock backed by the process monotonic clock, starting
// near zero at the time of the call.
func WallClock() Clock {
	// Offset by one tick so the clock never reads 0.
	start := time.Now().Add(-time.Millisecond)
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}
