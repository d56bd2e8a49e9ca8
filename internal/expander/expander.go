// Package expander abstracts addressable multi-channel digital output
// boards. The real implementations drive MCP23017 I2C port expanders and
// Modbus coil banks; the fake implementation allows testing without
// hardware.
package expander

// ChannelsPerBank is the number of output channels on every supported bank.
const ChannelsPerBank = 8

// Bank is one addressable output board: eight digital outputs written
// individually or as a bitmask. Bit 0 of a mask is channel 0. Writes are
// synchronous and may fail; a failed write is assumed not to have reached
// the device.
type Bank interface {
	// WriteChannel sets a single output.
	WriteChannel(channel uint8, on bool) error

	// WriteMask sets all eight outputs in one bus transaction.
	WriteMask(mask uint8) error

	// ReadMask returns the current output state from the device.
	// Diagnostics only; the driver keeps its own shadow of commanded
	// state.
	ReadMask() (uint8, error)

	// Close releases the device.
	Close() error
}

// Opener constructs Banks from bus addresses and knows which addresses are
// valid on its transport.
type Opener interface {
	// Open initializes the bank at the given address with all outputs
	// off.
	Open(addr uint8) (Bank, error)

	// AddressValid reports whether addr is inside the transport's valid
	// address range.
	AddressValid(addr uint8) bool
}
