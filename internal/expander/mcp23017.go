package expander

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// MCP23017 register addresses (IOCON.BANK = 0, the power-on default).
const (
	regIODIRA = 0x00 // Port A direction, 1 = input
	regGPIOA  = 0x12 // Port A pin state
	regOLATA  = 0x14 // Port A output latch
)

// MCP23017 I2C address range set by the A0-A2 strap pins.
const (
	MCP23017BaseAddress = 0x20
	MCP23017MaxAddress  = 0x27
)

// MCP23017Bank drives Port A of an MCP23017 I2C port expander as eight
// solenoid outputs. Port B is left untouched for future use.
type MCP23017Bank struct {
	dev  i2c.Dev
	mask uint8
}

// OpenMCP23017 initializes the expander at addr on the given bus: Port A is
// configured as outputs and driven low.
func OpenMCP23017(bus i2c.Bus, addr uint8) (*MCP23017Bank, error) {
	b := &MCP23017Bank{dev: i2c.Dev{Bus: bus, Addr: uint16(addr)}}

	if err := b.writeReg(regIODIRA, 0x00); err != nil {
		return nil, fmt.Errorf("configure port A at 0x%02x: %w", addr, err)
	}
	if err := b.writeReg(regOLATA, 0x00); err != nil {
		return nil, fmt.Errorf("clear port A at 0x%02x: %w", addr, err)
	}

	return b, nil
}

// WriteChannel sets a single Port A output by rewriting the output latch.
func (b *MCP23017Bank) WriteChannel(channel uint8, on bool) error {
	if channel >= ChannelsPerBank {
		return fmt.Errorf("channel %d out of range", channel)
	}

	mask := b.mask
	if on {
		mask |= 1 << channel
	} else {
		mask &^= 1 << channel
	}

	return b.WriteMask(mask)
}

// WriteMask writes all eight Port A outputs in one transaction.
func (b *MCP23017Bank) WriteMask(mask uint8) error {
	if err := b.writeReg(regOLATA, mask); err != nil {
		return fmt.Errorf("write port A: %w", err)
	}
	b.mask = mask
	return nil
}

// ReadMask reads the Port A pin state back from the device.
func (b *MCP23017Bank) ReadMask() (uint8, error) {
	var buf [1]byte
	if err := b.dev.Tx([]byte{regGPIOA}, buf[:]); err != nil {
		return 0, fmt.Errorf("read port A: %w", err)
	}
	return buf[0], nil
}

// Close drives all outputs low. The underlying bus is shared and stays open.
func (b *MCP23017Bank) Close() error {
	return b.WriteMask(0x00)
}

func (b *MCP23017Bank) writeReg(reg, val uint8) error {
	return b.dev.Tx([]byte{reg, val}, nil)
}

// MCP23017Opener opens MCP23017 banks on a shared I2C bus.
type MCP23017Opener struct {
	Bus i2c.Bus
}

// Open initializes the expander at addr with all outputs off.
func (o *MCP23017Opener) Open(addr uint8) (Bank, error) {
	return OpenMCP23017(o.Bus, addr)
}

// AddressValid reports whether addr is in the MCP23017 strap range.
func (o *MCP23017Opener) AddressValid(addr uint8) bool {
	return addr >= MCP23017BaseAddress && addr <= MCP23017MaxAddress
}
