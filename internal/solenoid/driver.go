package solenoid

import (
	"time"

	"github.com/sweeney/solenoid-bank/internal/expander"
)

// fallbackEstimateMs is the assumed on-duration used for duty cycle
// projection when no cooldown is configured to derive one from.
const fallbackEstimateMs = 100

// Driver supervises a bank of solenoid output boards. It enforces the
// configured safety policy before every activation, shadows the commanded
// state of each board, and force-deactivates channels that exceed the
// maximum on-time when Update is called.
//
// Driver is not safe for concurrent use. All methods must be called from a
// single goroutine; Update must be called on a bounded cadence (10ms or
// less is recommended) because it is the only mechanism enforcing the
// max-on-time ceiling.
type Driver struct {
	banks    []expander.Bank
	addrs    []uint8
	masks    []uint8 // shadow of commanded output state per board
	channels []Channel

	cfg         Config
	clock       Clock
	sleep       func(time.Duration)
	initialized bool

	lastCode Code
	onError  ErrorCallback
}

// New returns a Driver with the default safety policy. The driver is not
// usable until Init succeeds. A nil clock selects WallClock.
func New(clock Clock) *Driver {
	if clock == nil {
		clock = WallClock()
	}
	return &Driver{
		cfg:   DefaultConfig(),
		clock: clock,
		sleep: time.Sleep,
	}
}

// Init opens one bank per address and builds the channel arena. It fails
// atomically: on any invalid address or communication failure no banks are
// left open and the driver stays uninitialized. All channels start off.
func (d *Driver) Init(opener expander.Opener, addrs ...uint8) error {
	if len(addrs) == 0 || len(addrs) > MaxBoardsPerBus {
		return d.report(CodeInvalidBoard, NoChannel)
	}
	for _, addr := range addrs {
		if !opener.AddressValid(addr) {
			return d.report(CodeInvalidBoard, NoChannel)
		}
	}

	banks := make([]expander.Bank, 0, len(addrs))
	for _, addr := range addrs {
		bank, err := opener.Open(addr)
		if err != nil {
			for _, b := range banks {
				b.Close()
			}
			return d.report(CodeCommunication, NoChannel)
		}
		banks = append(banks, bank)
	}

	d.banks = banks
	d.addrs = append([]uint8(nil), addrs...)
	d.masks = make([]uint8, len(banks))
	d.channels = make([]Channel, len(banks)*ChannelsPerBoard)
	for board := range banks {
		for local := 0; local < ChannelsPerBoard; local++ {
			global := uint8(board*ChannelsPerBoard + local)
			d.channels[global] = newChannel(uint8(board), uint8(local), global)
		}
	}
	d.initialized = true
	d.lastCode = CodeOK
	return nil
}

// SetConfig replaces the safety policy. Takes effect on the next check.
func (d *Driver) SetConfig(cfg Config) {
	d.cfg = cfg
}

// Config returns the current safety policy.
func (d *Driver) Config() Config {
	return d.cfg
}

// SetErrorCallback installs a callback invoked synchronously on every
// reported error, or nil to disable.
func (d *Driver) SetErrorCallback(cb ErrorCallback) {
	d.onError = cb
}

// On activates a channel. It is a no-op if the channel is already on. When
// safety is enabled and the cooldown or duty cycle policy rejects the
// activation, the specific safety error is returned and neither hardware
// nor tracker state is touched.
func (d *Driver) On(channel uint8) error {
	if !d.initialized {
		return d.report(CodeNotInitialized, channel)
	}
	if channel >= d.channelCount() {
		return d.report(CodeInvalidChannel, channel)
	}

	ch := &d.channels[channel]
	if ch.IsOn() {
		return d.ok()
	}

	if d.cfg.SafetyEnabled {
		if err := d.isSafeToActivate(channel); err != nil {
			return err
		}
	}

	if err := d.writeChannel(ch.Board(), ch.Local(), true); err != nil {
		return d.report(CodeCommunication, channel)
	}
	ch.UpdateState(true, d.clock())
	return d.ok()
}

// Off deactivates a channel. Turning off is never blocked by safety checks.
// It is a no-op if the channel is already off.
func (d *Driver) Off(channel uint8) error {
	if !d.initialized {
		return d.report(CodeNotInitialized, channel)
	}
	if channel >= d.channelCount() {
		return d.report(CodeInvalidChannel, channel)
	}

	ch := &d.channels[channel]
	if !ch.IsOn() {
		return d.ok()
	}

	if err := d.writeChannel(ch.Board(), ch.Local(), false); err != nil {
		return d.report(CodeCommunication, channel)
	}
	ch.UpdateState(false, d.clock())
	return d.ok()
}

// Set dispatches to On or Off.
func (d *Driver) Set(channel uint8, on bool) error {
	if on {
		return d.On(channel)
	}
	return d.Off(channel)
}

// Toggle flips the channel state. Turning on is subject to the same safety
// checks as On.
func (d *Driver) Toggle(channel uint8) error {
	if !d.initialized {
		return d.report(CodeNotInitialized, channel)
	}
	if channel >= d.channelCount() {
		return d.report(CodeInvalidChannel, channel)
	}
	return d.Set(channel, !d.channels[channel].IsOn())
}

// Pulse activates a channel, blocks the calling goroutine for the duration,
// then deactivates it. The duration is clamped to MaxOnTimeMs when that
// ceiling is set; a zero or negative duration is a no-op. This is the only
// blocking operation in the API; callers that need to interleave work should
// use On and Off with their own timing.
func (d *Driver) Pulse(channel uint8, duration time.Duration) error {
	// A negative duration would wrap in the unsigned conversion below.
	if duration <= 0 {
		return d.ok()
	}

	durationMs := uint32(duration.Milliseconds())
	if d.cfg.MaxOnTimeMs > 0 && durationMs > d.cfg.MaxOnTimeMs {
		durationMs = d.cfg.MaxOnTimeMs
	}

	if err := d.On(channel); err != nil {
		return err
	}
	d.sleep(time.Duration(durationMs) * time.Millisecond)
	return d.Off(channel)
}

// AllOn attempts to activate every channel independently. A communication
// failure aborts immediately; safety rejections are recorded but do not
// stop the remaining channels. The first safety error is returned when no
// communication failure occurred.
func (d *Driver) AllOn() error {
	if !d.initialized {
		return d.report(CodeNotInitialized, NoChannel)
	}

	var firstErr error
	for ch := uint8(0); ch < d.channelCount(); ch++ {
		err := d.On(ch)
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		// Bus errors are critical; policy rejections are not.
		if code(err) == CodeCommunication {
			return err
		}
	}
	return firstErr
}

// AllOff deactivates every channel with one bulk write per board. It never
// consults safety checks.
func (d *Driver) AllOff() error {
	if !d.initialized {
		return d.report(CodeNotInitialized, NoChannel)
	}

	now := d.clock()
	for board := range d.banks {
		if err := d.writeBoard(uint8(board), 0x00); err != nil {
			return d.report(CodeCommunication, NoChannel)
		}
		for local := 0; local < ChannelsPerBoard; local++ {
			d.channels[board*ChannelsPerBoard+local].UpdateState(false, now)
		}
	}
	return d.ok()
}

// SetAll applies one bitmask per board. masks must have at least BoardCount
// elements. Per-board semantics are those of SetBoardChannels: a
// communication failure aborts, safety rejections degrade that board's mask
// and processing continues.
func (d *Driver) SetAll(masks []uint8) error {
	if !d.initialized {
		return d.report(CodeNotInitialized, NoChannel)
	}
	if len(masks) < len(d.banks) {
		return d.report(CodeInvalidBoard, NoChannel)
	}

	var firstErr error
	for board := range d.banks {
		err := d.SetBoardChannels(uint8(board), masks[board])
		if err == nil {
			continue
		}
		if code(err) == CodeCommunication {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetBoardChannels applies a bitmask to a single board in one bus
// transaction. Bits turning on are checked against the safety policy;
// blocked bits are cleared from the written mask and the corresponding
// channels stay in their previous state. The error for the first blocked
// channel is returned when any were blocked.
func (d *Driver) SetBoardChannels(board, mask uint8) error {
	if !d.initialized {
		return d.report(CodeNotInitialized, NoChannel)
	}
	if int(board) >= len(d.banks) {
		return d.report(CodeInvalidBoard, NoChannel)
	}

	current := d.masks[board]
	var firstBlocked error

	if d.cfg.SafetyEnabled {
		for local := uint8(0); local < ChannelsPerBoard; local++ {
			wasOn := current&(1<<local) != 0
			willBeOn := mask&(1<<local) != 0
			if !willBeOn || wasOn {
				continue
			}
			global := board*ChannelsPerBoard + local
			if err := d.isSafeToActivate(global); err != nil {
				mask &^= 1 << local
				if firstBlocked == nil {
					firstBlocked = err
				}
			}
		}
	}

	if err := d.writeBoard(board, mask); err != nil {
		return d.report(CodeCommunication, NoChannel)
	}

	now := d.clock()
	for local := uint8(0); local < ChannelsPerBoard; local++ {
		global := board*ChannelsPerBoard + local
		d.channels[global].UpdateState(mask&(1<<local) != 0, now)
	}

	if firstBlocked != nil {
		return firstBlocked
	}
	return d.ok()
}

// Update enforces the max-on-time ceiling. Every channel that has been on
// for MaxOnTimeMs or longer is forced off and a safety timeout is reported.
// This runs even when SafetyEnabled is false: thermal protection is the
// last line of defense and has no bypass. Callers must invoke Update on a
// bounded cadence; the enforcement latency equals the call interval.
func (d *Driver) Update() error {
	if !d.initialized || d.cfg.MaxOnTimeMs == 0 {
		return nil
	}

	now := d.clock()
	var firstErr error
	for i := range d.channels {
		ch := &d.channels[i]
		if !ch.IsOn() || ch.OnDuration(now) < d.cfg.MaxOnTimeMs {
			continue
		}

		if err := d.writeChannel(ch.Board(), ch.Local(), false); err != nil {
			// Leave the tracker on so the shutoff is retried next
			// tick.
			err := d.report(CodeCommunication, ch.Global())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ch.UpdateState(false, d.clock())
		err := d.report(CodeSafetyTimeout, ch.Global())
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EmergencyStop writes the all-off mask to every board directly, bypassing
// all checks and tracking, then marks every channel off. It keeps going
// past write failures so remaining boards are still cleared, and is also
// invoked from Close.
func (d *Driver) EmergencyStop() {
	now := d.clock()
	for board, bank := range d.banks {
		if err := bank.WriteMask(0x00); err != nil {
			d.report(CodeCommunication, NoChannel)
			continue
		}
		d.masks[board] = 0x00
	}
	for i := range d.channels {
		d.channels[i].UpdateState(false, now)
	}
}

// ResetAllStats clears statistics and duty cycle windows on every channel.
// Call after EmergencyStop so stale duty cycle data does not block
// subsequent legitimate use.
func (d *Driver) ResetAllStats() {
	for i := range d.channels {
		d.channels[i].ResetStats()
	}
}

// Close runs EmergencyStop and releases the banks. The driver is unusable
// afterwards.
func (d *Driver) Close() error {
	if !d.initialized {
		return nil
	}
	d.EmergencyStop()

	var firstErr error
	for _, bank := range d.banks {
		if err := bank.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.initialized = false
	return firstErr
}

// IsOn reports whether a channel is currently commanded on. Returns false
// for invalid channels.
func (d *Driver) IsOn(channel uint8) bool {
	if channel >= d.channelCount() {
		return false
	}
	return d.channels[channel].IsOn()
}

// ChannelState returns the state tracker for a channel, or nil for an
// invalid index. The returned value is read-only and valid until Close.
func (d *Driver) ChannelState(channel uint8) *Channel {
	if channel >= d.channelCount() {
		return nil
	}
	return &d.channels[channel]
}

// BoardState returns the shadowed output bitmask of a board, or 0 for an
// invalid index.
func (d *Driver) BoardState(board uint8) uint8 {
	if int(board) >= len(d.masks) {
		return 0
	}
	return d.masks[board]
}

// BoardAddress returns the bus address of a board, or 0 for an invalid
// index.
func (d *Driver) BoardAddress(board uint8) uint8 {
	if int(board) >= len(d.addrs) {
		return 0
	}
	return d.addrs[board]
}

// ReadBoardMask reads the output state back from the device. Diagnostics
// only; commanded state is available from BoardState without a bus
// transaction.
func (d *Driver) ReadBoardMask(board uint8) (uint8, error) {
	if !d.initialized {
		return 0, d.report(CodeNotInitialized, NoChannel)
	}
	if int(board) >= len(d.banks) {
		return 0, d.report(CodeInvalidBoard, NoChannel)
	}
	mask, err := d.banks[board].ReadMask()
	if err != nil {
		return 0, d.report(CodeCommunication, NoChannel)
	}
	return mask, nil
}

// BoardCount returns the number of initialized boards.
func (d *Driver) BoardCount() uint8 {
	return uint8(len(d.banks))
}

// ChannelCount returns the total number of channels.
func (d *Driver) ChannelCount() uint8 {
	return d.channelCount()
}

// Initialized reports whether Init has succeeded.
func (d *Driver) Initialized() bool {
	return d.initialized
}

// Now returns the driver's current clock reading. Useful for interpreting
// the counters returned by ChannelState.
func (d *Driver) Now() uint32 {
	return d.clock()
}

// LastError returns the code of the most recent failure, or CodeOK if the
// last operation succeeded.
func (d *Driver) LastError() Code {
	return d.lastCode
}

func (d *Driver) channelCount() uint8 {
	return uint8(len(d.channels))
}

// isSafeToActivate runs the safety checks for a new activation: cooldown
// first, then the current duty cycle, then a forward projection of the duty
// cycle assuming the activation lasts MinOffTimeMs (or a fixed conservative
// estimate when no cooldown is configured).
func (d *Driver) isSafeToActivate(channel uint8) error {
	ch := &d.channels[channel]
	now := d.clock()

	if d.cfg.MinOffTimeMs > 0 && ch.TimeSinceOff(now) < d.cfg.MinOffTimeMs {
		return d.report(CodeSafetyCooldown, channel)
	}

	if d.cfg.MaxDutyCycle < 1.0 && d.cfg.DutyCycleWindowMs > 0 {
		if ch.DutyCycle(d.cfg.DutyCycleWindowMs, now) >= d.cfg.MaxDutyCycle {
			return d.report(CodeDutyCycleExceeded, channel)
		}

		estimated := d.cfg.MinOffTimeMs
		if estimated == 0 {
			estimated = fallbackEstimateMs
		}
		if ch.WouldExceedDutyCycle(d.cfg.DutyCycleWindowMs, d.cfg.MaxDutyCycle, estimated, now) {
			return d.report(CodeDutyCycleExceeded, channel)
		}
	}

	return nil
}

// writeChannel writes one output and updates the shadow mask on success.
func (d *Driver) writeChannel(board, local uint8, on bool) error {
	if err := d.banks[board].WriteChannel(local, on); err != nil {
		return err
	}
	if on {
		d.masks[board] |= 1 << local
	} else {
		d.masks[board] &^= 1 << local
	}
	return nil
}

// writeBoard writes a full bank mask and updates the shadow on success.
func (d *Driver) writeBoard(board, mask uint8) error {
	if err := d.banks[board].WriteMask(mask); err != nil {
		return err
	}
	d.masks[board] = mask
	return nil
}

// report records the failure, notifies the callback, and returns the error
// for the caller.
func (d *Driver) report(c Code, channel uint8) error {
	d.lastCode = c
	if d.onError != nil {
		d.onError(c, channel)
	}
	return &Error{Code: c, Channel: channel}
}

// ok clears the last error code.
func (d *Driver) ok() error {
	d.lastCode = CodeOK
	return nil
}

// code extracts the Code from a driver error.
func code(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknown
}
