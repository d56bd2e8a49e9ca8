// Package status provides a thread-safe status tracker for the solenoidd
// daemon. It is the only state shared with the HTTP handlers; the driver
// itself is single-goroutine and is never read concurrently.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/solenoid-bank/internal/solenoid"
)

// ChannelStatus is a point-in-time copy of one channel's tracker state.
type ChannelStatus struct {
	Board       uint8
	Local       uint8
	On          bool
	Activations uint32
	TotalOnMs   uint32
}

// BoardStatus is a point-in-time copy of one board's commanded outputs.
type BoardStatus struct {
	Address uint8
	Mask    uint8
}

// TripCounts tracks how often each protection has fired since startup.
type TripCounts struct {
	Timeouts  int
	Cooldowns int
	DutyCycle int
	Comm      int
	Other     int
}

// Config contains daemon configuration for display.
type Config struct {
	Transport    string
	UpdateMs     int64
	MaxOnTimeMs  int64
	MinOffTimeMs int64
	MaxDutyCycle float64
	WindowMs     int64
	Safety       bool
	Broker       string
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Channels      []ChannelStatus
	Boards        []BoardStatus
	Trips         TripCounts
	EStop         bool
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// ActiveCount returns the number of channels currently on.
func (s Snapshot) ActiveCount() int {
	n := 0
	for _, ch := range s.Channels {
		if ch.On {
			n++
		}
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the channel and board state. Called from the daemon loop
// on every tick; the slices are copied, not retained.
func (t *Tracker) Update(channels []ChannelStatus, boards []BoardStatus) {
	t.mu.Lock()
	t.snap.Channels = append(t.snap.Channels[:0], channels...)
	t.snap.Boards = append(t.snap.Boards[:0], boards...)
	t.mu.Unlock()
}

// RecordTrip counts a reported driver error by class.
func (t *Tracker) RecordTrip(code solenoid.Code) {
	t.mu.Lock()
	switch code {
	case solenoid.CodeSafetyTimeout:
		t.snap.Trips.Timeouts++
	case solenoid.CodeSafetyCooldown:
		t.snap.Trips.Cooldowns++
	case solenoid.CodeDutyCycleExceeded:
		t.snap.Trips.DutyCycle++
	case solenoid.CodeCommunication:
		t.snap.Trips.Comm++
	default:
		t.snap.Trips.Other++
	}
	t.mu.Unlock()
}

// SetEStop sets the hardware emergency-stop state.
func (t *Tracker) SetEStop(engaged bool) {
	t.mu.Lock()
	t.snap.EStop = engaged
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]ChannelStatus(nil), t.snap.Channels...)
	s.Boards = append([]BoardStatus(nil), t.snap.Boards...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
