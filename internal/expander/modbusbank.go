package expander

import (
	"fmt"
	"sync"

	"github.com/goburrow/modbus"
)

// Modbus unit ID range usable for coil banks.
const (
	ModbusMinUnitID = 1
	ModbusMaxUnitID = 247
)

// ModbusHandler extends modbus.ClientHandler with per-unit slave selection.
// goburrow handlers read their SlaveId field when a request is encoded, so a
// connection shared between units must switch it before every transaction.
type ModbusHandler interface {
	modbus.ClientHandler
	SetSlave(slave byte)
}

// TCPHandler adapts modbus.TCPClientHandler to ModbusHandler.
type TCPHandler struct {
	*modbus.TCPClientHandler
}

func (h *TCPHandler) SetSlave(slave byte) {
	h.SlaveId = slave
}

// ClientFactory builds a modbus client over a handler. Defaults to
// modbus.NewClient when unset.
type ClientFactory func(handler modbus.ClientHandler) modbus.Client

// ModbusBank drives the first eight coils of a Modbus unit as one output
// bank. Coil 0 is channel 0. Banks opened from the same opener share one
// handler and client; each transaction selects its own unit ID under the
// shared lock so the slave selection and the request stay paired.
type ModbusBank struct {
	handler ModbusHandler
	client  modbus.Client
	unitID  uint8
	mu      *sync.Mutex
}

// WriteChannel sets a single coil.
func (b *ModbusBank) WriteChannel(channel uint8, on bool) error {
	if channel >= ChannelsPerBank {
		return fmt.Errorf("channel %d out of range", channel)
	}

	value := uint16(0x0000)
	if on {
		value = 0xFF00
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler.SetSlave(b.unitID)
	if _, err := b.client.WriteSingleCoil(uint16(channel), value); err != nil {
		return fmt.Errorf("unit %d coil %d: %w", b.unitID, channel, err)
	}
	return nil
}

// WriteMask sets all eight coils in one transaction.
func (b *ModbusBank) WriteMask(mask uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler.SetSlave(b.unitID)
	if _, err := b.client.WriteMultipleCoils(0, ChannelsPerBank, []byte{mask}); err != nil {
		return fmt.Errorf("unit %d coils: %w", b.unitID, err)
	}
	return nil
}

// ReadMask reads the coil states back from the unit.
func (b *ModbusBank) ReadMask() (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler.SetSlave(b.unitID)
	results, err := b.client.ReadCoils(0, ChannelsPerBank)
	if err != nil {
		return 0, fmt.Errorf("unit %d read coils: %w", b.unitID, err)
	}
	if len(results) < 1 {
		return 0, fmt.Errorf("unit %d read coils: empty response", b.unitID)
	}
	return results[0], nil
}

// Close drives all coils off.
func (b *ModbusBank) Close() error {
	return b.WriteMask(0x00)
}

// ModbusOpener opens coil banks over one shared connection. The handler's
// slave ID is set per transaction, never at open time.
type ModbusOpener struct {
	Handler   ModbusHandler
	NewClient ClientFactory

	mu     sync.Mutex
	client modbus.Client
}

// Open binds a bank to the unit and drives all coils off.
func (o *ModbusOpener) Open(addr uint8) (Bank, error) {
	if o.client == nil {
		factory := o.NewClient
		if factory == nil {
			factory = modbus.NewClient
		}
		o.client = factory(o.Handler)
	}

	b := &ModbusBank{handler: o.Handler, client: o.client, unitID: addr, mu: &o.mu}
	if err := b.WriteMask(0x00); err != nil {
		return nil, fmt.Errorf("clear unit %d: %w", addr, err)
	}
	return b, nil
}

// AddressValid reports whether addr is a usable Modbus unit ID.
func (o *ModbusOpener) AddressValid(addr uint8) bool {
	return addr >= ModbusMinUnitID && addr <= ModbusMaxUnitID
}
