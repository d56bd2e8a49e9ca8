package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	EStop         bool          `json:"estop"`
	ActiveCount   int           `json:"active_count"`
	ChannelCount  int           `json:"channel_count"`
	Boards        []BoardJSON   `json:"boards"`
	Channels      []ChannelJSON `json:"channels"`
	Trips         TripsJSON     `json:"trips"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Config        ConfigJSON    `json:"config"`
}

// BoardJSON is the JSON representation of one board.
type BoardJSON struct {
	Address string `json:"address"`
	Mask    string `json:"mask"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Board       uint8  `json:"board"`
	Local       uint8  `json:"local"`
	State       string `json:"state"`
	Activations uint32 `json:"activations"`
	TotalOnMs   uint32 `json:"total_on_ms"`
}

// TripsJSON is the JSON representation of protection trip counts.
type TripsJSON struct {
	Timeouts  int `json:"timeouts"`
	Cooldowns int `json:"cooldowns"`
	DutyCycle int `json:"duty_cycle"`
	Comm      int `json:"comm_errors"`
	Other     int `json:"other"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Transport    string  `json:"transport"`
	UpdateMs     int64   `json:"update_ms"`
	MaxOnTimeMs  int64   `json:"max_on_time_ms"`
	MinOffTimeMs int64   `json:"min_off_time_ms"`
	MaxDutyCycle float64 `json:"max_duty_cycle"`
	WindowMs     int64   `json:"duty_window_ms"`
	Safety       bool    `json:"safety_enabled"`
	Broker       string  `json:"broker"`
	HTTPAddr     string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		EStop:         snap.EStop,
		ActiveCount:   snap.ActiveCount(),
		ChannelCount:  len(snap.Channels),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Trips: TripsJSON{
			Timeouts:  snap.Trips.Timeouts,
			Cooldowns: snap.Trips.Cooldowns,
			DutyCycle: snap.Trips.DutyCycle,
			Comm:      snap.Trips.Comm,
			Other:     snap.Trips.Other,
		},
		Config: ConfigJSON{
			Transport:    snap.Config.Transport,
			UpdateMs:     snap.Config.UpdateMs,
			MaxOnTimeMs:  snap.Config.MaxOnTimeMs,
			MinOffTimeMs: snap.Config.MinOffTimeMs,
			MaxDutyCycle: snap.Config.MaxDutyCycle,
			WindowMs:     snap.Config.WindowMs,
			Safety:       snap.Config.Safety,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}

	for _, b := range snap.Boards {
		inner.Boards = append(inner.Boards, BoardJSON{
			Address: fmt.Sprintf("0x%02x", b.Address),
			Mask:    fmt.Sprintf("%08b", b.Mask),
		})
	}
	for _, ch := range snap.Channels {
		state := "OFF"
		if ch.On {
			state = "ON"
		}
		inner.Channels = append(inner.Channels, ChannelJSON{
			Board:       ch.Board,
			Local:       ch.Local,
			State:       state,
			Activations: ch.Activations,
			TotalOnMs:   ch.TotalOnMs,
		})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
