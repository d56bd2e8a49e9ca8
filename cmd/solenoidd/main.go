// Command solenoidd drives banks of solenoid outputs with safety interlocks
// and publishes protection events to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/solenoid-bank/internal/estop"
	"github.com/sweeney/solenoid-bank/internal/expander"
	"github.com/sweeney/solenoid-bank/internal/mqtt"
	"github.com/sweeney/solenoid-bank/internal/solenoid"
	"github.com/sweeney/solenoid-bank/internal/status"
	"github.com/sweeney/solenoid-bank/internal/web"
)

func main() {
	transport := flag.String("transport", "mcp23017", "Output board transport: mcp23017 or modbus")
	i2cBus := flag.String("i2c-bus", "", "I2C bus name (empty for the first available)")
	modbusTarget := flag.String("modbus-target", "localhost:502", "Modbus TCP target address")
	addresses := flag.String("addresses", "0x20", "Comma-separated board addresses")
	update := flag.Duration("update", 10*time.Millisecond, "Safety update interval")
	maxOn := flag.Duration("max-on", 5*time.Second, "Maximum continuous on-time (0 to disable)")
	minOff := flag.Duration("min-off", 50*time.Millisecond, "Minimum off-time between activations")
	maxDuty := flag.Float64("max-duty", 0.5, "Maximum duty cycle over the window")
	dutyWindow := flag.Duration("duty-window", 10*time.Second, "Duty cycle window")
	noSafety := flag.Bool("no-safety", false, "Disable activation interlocks (max on-time still enforced)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	httpAddr := flag.String("http", ":8080", "HTTP status address (empty to disable)")
	estopPin := flag.Int("estop-pin", estop.DefaultPin, "BCM pin number for the emergency stop input")
	printState := flag.Bool("print-state", false, "Print board states and exit")

	flag.Parse()

	if err := run(*transport, *i2cBus, *modbusTarget, *addresses, *update, *maxOn, *minOff, *maxDuty, *dutyWindow, *noSafety, *broker, *httpAddr, *estopPin, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(transport, i2cBus, modbusTarget, addresses string, update, maxOn, minOff time.Duration, maxDuty float64, dutyWindow time.Duration, noSafety bool, broker, httpAddr string, estopPin int, printState bool) error {
	addrs, err := parseAddresses(addresses)
	if err != nil {
		return fmt.Errorf("parse addresses: %w", err)
	}

	opener, closeTransport, err := openTransport(transport, i2cBus, modbusTarget)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	if closeTransport != nil {
		defer closeTransport()
	}

	driver := solenoid.New(nil)
	driver.SetConfig(solenoid.Config{
		MaxOnTimeMs:       uint32(maxOn.Milliseconds()),
		MinOffTimeMs:      uint32(minOff.Milliseconds()),
		MaxDutyCycle:      maxDuty,
		DutyCycleWindowMs: uint32(dutyWindow.Milliseconds()),
		SafetyEnabled:     !noSafety,
	})
	if err := driver.Init(opener, addrs...); err != nil {
		return fmt.Errorf("init driver: %w", err)
	}
	defer driver.Close()

	// Print state mode
	if printState {
		for b := uint8(0); b < driver.BoardCount(); b++ {
			mask, err := driver.ReadBoardMask(b)
			if err != nil {
				return fmt.Errorf("read board %d: %w", b, err)
			}
			fmt.Printf("board %d (0x%02x): %08b\n", b, driver.BoardAddress(b), mask)
		}
		return nil
	}

	// Initialize the E-stop input
	estopReader, err := estop.NewRealReader(estopPin)
	if err != nil {
		return fmt.Errorf("init estop: %w", err)
	}
	defer estopReader.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Transport:    transport,
		UpdateMs:     update.Milliseconds(),
		MaxOnTimeMs:  maxOn.Milliseconds(),
		MinOffTimeMs: minOff.Milliseconds(),
		MaxDutyCycle: maxDuty,
		WindowMs:     dutyWindow.Milliseconds(),
		Safety:       !noSafety,
		Broker:       broker,
		HTTPAddr:     httpAddr,
	})

	// Bridge protection trips to the tracker and the event topic.
	driver.SetErrorCallback(func(code solenoid.Code, channel uint8) {
		tracker.RecordTrip(code)
		event := mqtt.SafetyEvent{Timestamp: time.Now(), Code: code, Channel: channel}
		if err := publisher.PublishSafety(event); err != nil {
			log.Printf("safety publish error: %v", err)
		}
	})

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: transport=%s boards=%d update=%v max-on=%v min-off=%v max-duty=%.2f window=%v broker=%s",
		transport, driver.BoardCount(), update, maxOn, minOff, maxDuty, dutyWindow, broker)

	ticker := time.NewTicker(update)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(driver, estopReader, publisher, publisher, tracker, time.Now, ticker.C, sigCh)
}

func runLoop(driver *solenoid.Driver, estopReader estop.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	estopEngaged := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			driver.EmergencyStop()

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				refreshTracker(driver, tracker)
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			pressed, err := estopReader.Pressed()
			if err != nil {
				log.Printf("estop read error: %v", err)
				// Treat a broken E-stop loop as engaged.
				pressed = true
			}

			if pressed && !estopEngaged {
				estopEngaged = true
				log.Printf("emergency stop engaged")
				driver.EmergencyStop()
				driver.ResetAllStats()
				if tracker != nil {
					tracker.SetEStop(true)
				}
				event := mqtt.SystemEvent{
					Timestamp: now(),
					Event:     "ESTOP",
					Reason:    "BUTTON",
					Retained:  true,
				}
				if tracker != nil {
					refreshTracker(driver, tracker)
					snap := tracker.Snapshot()
					event.RawPayload = status.FormatStatusEvent(snap, "ESTOP", "BUTTON")
				}
				if err := publisher.PublishSystem(event); err != nil {
					log.Printf("estop publish error: %v", err)
				}
			} else if !pressed && estopEngaged {
				estopEngaged = false
				log.Printf("emergency stop cleared")
				if tracker != nil {
					tracker.SetEStop(false)
				}
			}

			if !estopEngaged {
				if err := driver.Update(); err != nil {
					log.Printf("update: %v", err)
					// Trips are already reported through the callback
				}
			}

			if tracker != nil {
				refreshTracker(driver, tracker)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

func refreshTracker(driver *solenoid.Driver, tracker *status.Tracker) {
	now := driver.Now()

	channels := make([]status.ChannelStatus, 0, driver.ChannelCount())
	for i := uint8(0); i < driver.ChannelCount(); i++ {
		ch := driver.ChannelState(i)
		if ch == nil {
			continue
		}
		channels = append(channels, status.ChannelStatus{
			Board:       ch.Board(),
			Local:       ch.Local(),
			On:          ch.IsOn(),
			Activations: ch.ActivationCount(),
			TotalOnMs:   ch.TotalOnTime(now),
		})
	}

	boards := make([]status.BoardStatus, 0, driver.BoardCount())
	for b := uint8(0); b < driver.BoardCount(); b++ {
		boards = append(boards, status.BoardStatus{
			Address: driver.BoardAddress(b),
			Mask:    driver.BoardState(b),
		})
	}

	tracker.Update(channels, boards)
}

// parseAddresses parses a comma-separated list of board addresses. Hex
// (0x20) and decimal forms are both accepted.
func parseAddresses(s string) ([]uint8, error) {
	var addrs []uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("address %q: %w", part, err)
		}
		addrs = append(addrs, uint8(v))
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses given")
	}
	return addrs, nil
}

// openTransport builds the bank opener for the selected transport. The
// returned close function releases the shared bus or connection.
func openTransport(transport, i2cBus, modbusTarget string) (expander.Opener, func(), error) {
	switch transport {
	case "mcp23017":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("periph init: %w", err)
		}
		bus, err := i2creg.Open(i2cBus)
		if err != nil {
			return nil, nil, fmt.Errorf("open i2c bus %q: %w", i2cBus, err)
		}
		return &expander.MCP23017Opener{Bus: bus}, func() { bus.Close() }, nil

	case "modbus":
		handler := modbus.NewTCPClientHandler(modbusTarget)
		handler.Timeout = 2 * time.Second
		if err := handler.Connect(); err != nil {
			return nil, nil, fmt.Errorf("connect %s: %w", modbusTarget, err)
		}
		opener := &expander.ModbusOpener{
			Handler: &expander.TCPHandler{TCPClientHandler: handler},
		}
		return opener, func() { handler.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport %q", transport)
	}
}
