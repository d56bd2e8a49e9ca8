// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/solenoid-bank/internal/solenoid"
)

// Topic is the MQTT topic for solenoid safety events.
const Topic = "actuators/solenoids/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "actuators/solenoids/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishSafety sends a safety event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishSafety(event SafetyEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SafetyEvent represents a driver error or safety trip to be published.
type SafetyEvent struct {
	Timestamp time.Time
	Code      solenoid.Code
	Channel   uint8 // solenoid.NoChannel for driver-wide events
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown,
// emergency stop).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "ESTOP"
	Reason     string // e.g., "SIGTERM", "BUTTON" (shutdown/estop only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Solenoids SafetyPayload `json:"solenoids"`
}

// SafetyPayload contains the safety event details.
type SafetyPayload struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
	Code      uint8  `json:"code"`
	Channel   *uint8 `json:"channel,omitempty"`
}

// FormatPayload creates the JSON payload for a safety event. The channel
// field is omitted for driver-wide events.
func FormatPayload(event SafetyEvent) ([]byte, error) {
	payload := Payload{
		Solenoids: SafetyPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Error:     event.Code.String(),
			Code:      uint8(event.Code),
		},
	}
	if event.Channel != solenoid.NoChannel {
		ch := event.Channel
		payload.Solenoids.Channel = &ch
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status
// snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
