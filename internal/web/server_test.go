package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/solenoid-bank/internal/solenoid"
	"github.com/sweeney/solenoid-bank/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Transport:    "mcp23017",
		UpdateMs:     10,
		MaxOnTimeMs:  5000,
		MinOffTimeMs: 50,
		MaxDutyCycle: 0.5,
		WindowMs:     10000,
		Safety:       true,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func seedTracker(tr *status.Tracker) {
	tr.Update(
		[]status.ChannelStatus{
			{Board: 0, Local: 0, On: true, Activations: 5, TotalOnMs: 4200},
			{Board: 0, Local: 1, On: false, Activations: 2, TotalOnMs: 900},
			{Board: 1, Local: 0, On: false, Activations: 0, TotalOnMs: 0},
		},
		[]status.BoardStatus{
			{Address: 0x20, Mask: 0b00000001},
			{Address: 0x21, Mask: 0},
		},
	)
}

func TestStatusEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	seedTracker(tr)
	tr.SetMQTTConnected(true)
	tr.RecordTrip(solenoid.CodeSafetyTimeout)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.ActiveCount != 1 {
		t.Errorf("ActiveCount: got %d, want 1", sj.Status.ActiveCount)
	}
	if sj.Status.ChannelCount != 3 {
		t.Errorf("ChannelCount: got %d, want 3", sj.Status.ChannelCount)
	}
	if len(sj.Status.Boards) != 2 {
		t.Fatalf("Boards: got %d, want 2", len(sj.Status.Boards))
	}
	if sj.Status.Boards[0].Address != "0x20" {
		t.Errorf("Boards[0].Address: got %q, want 0x20", sj.Status.Boards[0].Address)
	}
	if sj.Status.Trips.Timeouts != 1 {
		t.Errorf("Trips.Timeouts: got %d, want 1", sj.Status.Trips.Timeouts)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.UpdateMs != 10 {
		t.Errorf("Config.UpdateMs: got %d, want 10", sj.Status.Config.UpdateMs)
	}
	if !sj.Status.Config.Safety {
		t.Error("expected Config.Safety=true")
	}
}

func TestChannelsEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	seedTracker(tr)

	resp, err := http.Get(ts.URL + "/api/channels")
	if err != nil {
		t.Fatalf("GET /api/channels: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Channels    []status.ChannelStatus `json:"channels"`
		ActiveCount int                    `json:"active_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if len(body.Channels) != 3 {
		t.Errorf("channels: got %d, want 3", len(body.Channels))
	}
	if body.ActiveCount != 1 {
		t.Errorf("active_count: got %d, want 1", body.ActiveCount)
	}
	if !body.Channels[0].On {
		t.Error("expected channel 0/0 on")
	}
}

func TestBoardEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	seedTracker(tr)

	resp, err := http.Get(ts.URL + "/api/boards/0")
	if err != nil {
		t.Fatalf("GET /api/boards/0: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	var body struct {
		Board    int                    `json:"board"`
		Address  uint8                  `json:"address"`
		Mask     uint8                  `json:"mask"`
		Channels []status.ChannelStatus `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if body.Address != 0x20 {
		t.Errorf("address: got 0x%02x, want 0x20", body.Address)
	}
	if body.Mask != 0b00000001 {
		t.Errorf("mask: got %08b, want 00000001", body.Mask)
	}
	if len(body.Channels) != 2 {
		t.Errorf("channels on board 0: got %d, want 2", len(body.Channels))
	}
}

func TestBoardEndpointNotFound(t *testing.T) {
	ts, tr := newTestServer(t)
	seedTracker(tr)

	resp, err := http.Get(ts.URL + "/api/boards/7")
	if err != nil {
		t.Fatalf("GET /api/boards/7: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestBoardEndpointInvalidIndex(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/boards/notanumber")
	if err != nil {
		t.Fatalf("GET /api/boards/notanumber: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	seedTracker(tr)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	resp1, _ := http.Get(ts.URL + "/api/status")
	var sj1 status.StatusJSON
	json.NewDecoder(resp1.Body).Decode(&sj1)
	resp1.Body.Close()
	if sj1.Status.EStop {
		t.Error("expected EStop=false initially")
	}

	tr.SetEStop(true)
	tr.SetMQTTConnected(true)

	resp2, _ := http.Get(ts.URL + "/api/status")
	var sj2 status.StatusJSON
	json.NewDecoder(resp2.Body).Decode(&sj2)
	resp2.Body.Close()

	if !sj2.Status.EStop {
		t.Error("expected EStop=true after update")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
