package solenoid

// Bank geometry. Fixed by the expander hardware: eight output channels per
// board, up to eight boards per bus.
const (
	ChannelsPerBoard = 8
	MaxBoardsPerBus  = 8
	MaxChannels      = ChannelsPerBoard * MaxBoardsPerBus
)

// Default safety limits. Chosen for small 12V actuator coils; tune per coil
// datasheet via SetConfig.
const (
	DefaultMaxOnTimeMs       = 5000
	DefaultMinOffTimeMs      = 50
	DefaultMaxDutyCycle      = 0.5
	DefaultDutyCycleWindowMs = 10000
)

// Config holds the safety policy. It may be replaced at any time via
// Driver.SetConfig; checks always read the latest value.
type Config struct {
	// MaxOnTimeMs is the hard ceiling on continuous on-duration. Channels
	// exceeding it are forced off by Update. 0 disables the ceiling (not
	// recommended for actuator coils).
	MaxOnTimeMs uint32

	// MinOffTimeMs is the minimum time a channel must stay off before it
	// may be activated again. 0 disables cooldown enforcement.
	MinOffTimeMs uint32

	// MaxDutyCycle caps the fraction of on-time within the rolling window,
	// 0.0 to 1.0. 1.0 disables duty cycle limiting.
	MaxDutyCycle float64

	// DutyCycleWindowMs is the width of the rolling window used for duty
	// cycle evaluation.
	DutyCycleWindowMs uint32

	// SafetyEnabled gates the cooldown and duty cycle checks. The
	// max-on-time ceiling enforced by Update is independent of this flag:
	// thermal protection stays on even with safety checks bypassed.
	SafetyEnabled bool
}

// DefaultConfig returns the safety policy applied to a new Driver.
func DefaultConfig() Config {
	return Config{
		MaxOnTimeMs:       DefaultMaxOnTimeMs,
		MinOffTimeMs:      DefaultMinOffTimeMs,
		MaxDutyCycle:      DefaultMaxDutyCycle,
		DutyCycleWindowMs: DefaultDutyCycleWindowMs,
		SafetyEnabled:     true,
	}
}
