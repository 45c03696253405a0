// Command gate-controller runs a sliding gate: it samples the end-stops,
// command buttons and photocell, drives the motor and indicator lines, and
// optionally publishes state changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/gate-controller/internal/config"
	"github.com/sweeney/gate-controller/internal/controller"
	"github.com/sweeney/gate-controller/internal/display"
	"github.com/sweeney/gate-controller/internal/gpio"
	"github.com/sweeney/gate-controller/internal/logic"
	"github.com/sweeney/gate-controller/internal/mqtt"
	"github.com/sweeney/gate-controller/internal/status"
)

func main() {
	cfgPath := flag.String("cfg", "", "YAML wiring file (empty for the built-in wiring)")
	broker := flag.String("broker", "", "MQTT broker address, overrides mqtt.broker")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	printState := flag.Bool("print-state", false, "Print current inputs and exit")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}

	if err := run(cfg, *heartbeat, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, heartbeat time.Duration, printState bool) error {
	port, err := gpio.Open(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Backend:     cfg.GPIO.Backend,
		Chip:        cfg.GPIO.Chip,
		Display:     strings.Join(cfg.Display.Types(), ","),
		Broker:      cfg.MQTT.Broker,
		HeartbeatMs: heartbeat.Milliseconds(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	if printState {
		in, err := port.Sample()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		tracker.Update(logic.View{Inputs: in})
		fmt.Println(string(status.FormatJSON(tracker.Snapshot())))
		return nil
	}

	sink, err := display.Open(cfg.Display)
	if err != nil {
		log.Printf("display unavailable, logging only: %v", err)
		sink = display.NewLog()
	}
	defer sink.Close()

	publisher, conn := openPublisher(cfg.MQTT)
	defer publisher.Close()

	log.Printf("started: backend=%s display=%s broker=%q heartbeat=%v",
		cfg.GPIO.Backend, cfg.Display.Type, cfg.MQTT.Broker, heartbeat)

	var hb <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		hb = t.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return serve(port, sink, publisher, conn, tracker, controller.Options{}, hb, sigCh)
}

// openPublisher returns the MQTT publisher for cfg, or a discarding one
// when no broker is configured.
func openPublisher(cfg config.MQTTConfig) (mqtt.Publisher, mqtt.ConnectionStatus) {
	if cfg.Broker == "" {
		log.Printf("mqtt disabled (no broker configured)")
		return mqtt.Discard{}, mqtt.Discard{}
	}
	p, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID)
	if err != nil {
		log.Printf("mqtt disabled: %v", err)
		return mqtt.Discard{}, mqtt.Discard{}
	}
	return p, p
}

// serve announces startup, runs the controller and the daemon loop until
// a signal arrives or the hardware fails.
func serve(port gpio.Port, sink display.Sink, publisher mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, opts controller.Options, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	d := &daemon{
		publisher: publisher,
		conn:      conn,
		tracker:   tracker,
		now:       time.Now,
	}
	d.publishSystem("STARTUP", "")

	ctrl := controller.New(port, sink, opts)
	d.view = ctrl.View

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	return d.runLoop(ctrl.Events(), done, heartbeat, sig, cancel)
}

// daemon is everything outside the gate itself: status tracking and
// telemetry. It only observes; the controller never waits on it.
type daemon struct {
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	tracker   *status.Tracker
	view      func() logic.View
	now       func() time.Time
}

func (d *daemon) runLoop(events <-chan logic.Event, done <-chan error, heartbeat <-chan time.Time, sig <-chan os.Signal, stop context.CancelFunc) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.record(ev)

		case err := <-done:
			// Run only returns on its own when the hardware failed.
			d.drain(events)
			d.publishSystem("SHUTDOWN", "HARDWARE")
			if err == nil {
				return nil
			}
			return fmt.Errorf("controller: %w", err)

		case <-heartbeat:
			snap := d.refresh()
			log.Printf("heartbeat: state=%s uptime=%v opened=%d closed=%d emergency=%d fault=%d",
				snap.Gate.State, snap.Uptime().Truncate(time.Second),
				snap.Counts.Opened, snap.Counts.Closed, snap.Counts.Emergency, snap.Counts.Fault)
			d.publishSnapshot(snap, "HEARTBEAT", "", false)

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			stop()
			err := <-done
			d.drain(events)
			d.publishSystem("SHUTDOWN", signalName(s))
			if err != nil {
				return fmt.Errorf("controller: %w", err)
			}
			return nil
		}
	}
}

func (d *daemon) record(ev logic.Event) {
	d.tracker.Record(ev)
	if d.view != nil {
		d.tracker.Update(d.view())
	}
	if err := d.publisher.Publish(ev); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// drain records the events still buffered once the controller has stopped.
func (d *daemon) drain(events <-chan logic.Event) {
	if events == nil {
		return
	}
	for ev := range events {
		d.record(ev)
	}
}

// refresh brings the tracker up to date and returns its snapshot.
func (d *daemon) refresh() status.Snapshot {
	if d.view != nil {
		d.tracker.Update(d.view())
	}
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
	return d.tracker.Snapshot()
}

// publishSystem sends STARTUP and SHUTDOWN as retained full status snapshots.
func (d *daemon) publishSystem(event, reason string) {
	d.publishSnapshot(d.refresh(), event, reason, true)
}

func (d *daemon) publishSnapshot(snap status.Snapshot, event, reason string, retained bool) {
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", strings.ToLower(event), err)
		return
	}
	log.Printf("published %s event", strings.ToLower(event))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
