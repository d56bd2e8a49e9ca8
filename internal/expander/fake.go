package expander

import "fmt"

// FakeBank is a test double that records writes in memory.
type FakeBank struct {
	// Addr is the address this bank was opened at.
	Addr uint8

	// Mask is the current output state.
	Mask uint8

	// Writes counts hardware write transactions (channel and mask).
	Writes int

	// MaskHistory records every mask value written via WriteMask.
	MaskHistory []uint8

	// WriteError, if set, will be returned by WriteChannel and WriteMask.
	WriteError error

	// ReadError, if set, will be returned by ReadMask.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// WriteChannel sets a single bit of the fake output state.
func (f *FakeBank) WriteChannel(channel uint8, on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if channel >= ChannelsPerBank {
		return fmt.Errorf("channel %d out of range", channel)
	}

	if on {
		f.Mask |= 1 << channel
	} else {
		f.Mask &^= 1 << channel
	}
	f.Writes++
	return nil
}

// WriteMask sets the fake output state and records it.
func (f *FakeBank) WriteMask(mask uint8) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Mask = mask
	f.MaskHistory = append(f.MaskHistory, mask)
	f.Writes++
	return nil
}

// ReadMask returns the fake output state.
func (f *FakeBank) ReadMask() (uint8, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Mask, nil
}

// Close marks the bank as closed.
func (f *FakeBank) Close() error {
	f.Closed = true
	return nil
}

// FakeOpener opens FakeBanks and keeps them for test assertions.
type FakeOpener struct {
	// Banks contains every bank opened, in open order.
	Banks []*FakeBank

	// OpenError, if set, will be returned by Open.
	OpenError error

	// MinAddr and MaxAddr bound AddressValid. The zero value accepts the
	// MCP23017 range.
	MinAddr, MaxAddr uint8
}

// Open returns a new FakeBank for the address.
func (o *FakeOpener) Open(addr uint8) (Bank, error) {
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	b := &FakeBank{Addr: addr}
	o.Banks = append(o.Banks, b)
	return b, nil
}

// AddressValid reports whether addr is inside the configured range.
func (o *FakeOpener) AddressValid(addr uint8) bool {
	min, max := o.MinAddr, o.MaxAddr
	if min == 0 && max == 0 {
		min, max = MCP23017BaseAddress, MCP23017MaxAddress
	}
	return addr >= min && addr <= max
}
