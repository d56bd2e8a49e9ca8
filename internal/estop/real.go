//go:build linux

package estop

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the emergency-stop loop from actual hardware using the
// Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealReader requests the given BCM pin as an input with a pull-up, so a
// broken wire reads the same as a pressed button.
func NewRealReader(pin int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request estop pin %d: %w", pin, err)
	}

	return &RealReader{chip: chip, line: line}, nil
}

// Pressed returns true while the emergency stop is engaged.
// The loop is normally closed to ground: raw low (0) = released, raw high
// (1, pulled up because the loop is open) = pressed.
func (r *RealReader) Pressed() (bool, error) {
	raw, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read estop pin: %w", err)
	}
	return raw != 0, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close estop pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
