package mqtt

import (
	"github.com/sweeney/solenoid-bank/internal/solenoid"
)

// FakePublisher records published events for test assertions. Beyond the raw
// event slices it tallies safety trips per protection code and per channel so
// tests can assert on interlock behavior directly.
type FakePublisher struct {
	// Events contains all safety events that were published.
	Events []SafetyEvent

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// TripsByCode counts safety events per protection code.
	TripsByCode map[solenoid.Code]int

	// TripsByChannel counts safety events per channel. Driver-wide events
	// are counted under solenoid.NoChannel.
	TripsByChannel map[uint8]int

	// PublishError, if set, will be returned by PublishSafety.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{
		TripsByCode:    make(map[solenoid.Code]int),
		TripsByChannel: make(map[uint8]int),
	}
}

// PublishSafety records the safety event and bumps the trip tallies.
func (f *FakePublisher) PublishSafety(event SafetyEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)
	if f.TripsByCode == nil {
		f.TripsByCode = make(map[solenoid.Code]int)
		f.TripsByChannel = make(map[uint8]int)
	}
	f.TripsByCode[event.Code]++
	f.TripsByChannel[event.Channel]++

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// SafetyEventsFor returns the recorded safety events for one channel.
func (f *FakePublisher) SafetyEventsFor(channel uint8) []SafetyEvent {
	var events []SafetyEvent
	for _, e := range f.Events {
		if e.Channel == channel {
			events = append(events, e)
		}
	}
	return events
}

// LastSystemEvent returns the most recent system event, if any.
func (f *FakePublisher) LastSystemEvent() (SystemEvent, bool) {
	if len(f.SystemEvents) == 0 {
		return SystemEvent{}, false
	}
	return f.SystemEvents[len(f.SystemEvents)-1], true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events and tallies.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.TripsByCode = make(map[solenoid.Code]int)
	f.TripsByChannel = make(map[uint8]int)
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
