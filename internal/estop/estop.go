// Package estop reads a hardware emergency-stop input with hardware
// abstraction. The real implementation uses the Linux GPIO character
// device. The fake implementation allows testing without hardware.
package estop

// Reader reads the emergency-stop input state.
type Reader interface {
	// Pressed returns true while the emergency stop is engaged. The
	// button is normally closed, so the raw GPIO values are inverted:
	// raw active = released.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin number the emergency-stop loop is wired to.
const DefaultPin = 21
