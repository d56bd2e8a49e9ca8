package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// backlogCapacity bounds the number of safety events held while the broker
// is unreachable.
const backlogCapacity = 256

// RealPublisher publishes to an actual MQTT broker. Safety events that
// cannot be delivered are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	pending *backlog
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{pending: newBacklog(backlogCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("solenoidd").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			p.replay()
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishSafety sends a safety event to the MQTT broker. While the broker
// is unreachable the event is queued for replay instead of being lost.
func (p *RealPublisher) PublishSafety(event SafetyEvent) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.pending.push(event)
		n := p.pending.len()
		p.mu.Unlock()
		return fmt.Errorf("broker unreachable, event queued (%d pending)", n)
	}
	return p.send(event)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once): lifecycle events should survive a flaky link.
	token := p.client.Publish(TopicSystem, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}

	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(event SafetyEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: safety trips matter to whoever is watching the bank.
	token := p.client.Publish(Topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// replay flushes the backlog after a reconnect.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	events, dropped := p.pending.drain()
	p.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: %d safety event(s) dropped while disconnected", dropped)
	}
	for _, e := range events {
		if err := p.send(e); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
			p.mu.Lock()
			p.pending.push(e)
			p.mu.Unlock()
		}
	}
}
