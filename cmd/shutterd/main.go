// Command shutterd drives a motorized window shutter from GPIO, takes
// commands on stdin and publishes shutter state changes to MQTT.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/shutterd/internal/config"
	"github.com/sweeney/shutterd/internal/console"
	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/mqtt"
	"github.com/sweeney/shutterd/internal/shutter"
	"github.com/sweeney/shutterd/internal/status"
	"github.com/sweeney/shutterd/internal/web"
)

// statusInterval is how often the status tracker is refreshed.
const statusInterval = time.Second

// flagValues holds the hardware flags that can also come from the config file.
type flagValues struct {
	chip        string
	pinUp       int
	pinDown     int
	pinTop      int
	pinBottom   int
	upActiveLow bool
	debounce    time.Duration
	travel      time.Duration
}

// options is everything run needs.
type options struct {
	cfg        config.Config
	broker     string
	name       string
	heartbeat  time.Duration
	httpAddr   string
	verbose    bool
	printState bool
}

func main() {
	def := config.Default()
	var fv flagValues
	flag.StringVar(&fv.chip, "chip", def.Chip, "GPIO character device")
	flag.IntVar(&fv.pinUp, "pin-up", gpio.DefaultPinUp, "BCM pin number for motor up")
	flag.IntVar(&fv.pinDown, "pin-down", gpio.DefaultPinDown, "BCM pin number for motor down")
	flag.IntVar(&fv.pinTop, "pin-top", gpio.DefaultPinTop, "BCM pin number for the top limit detector")
	flag.IntVar(&fv.pinBottom, "pin-bottom", gpio.DefaultPinBottom, "BCM pin number for the bottom limit detector")
	flag.BoolVar(&fv.upActiveLow, "up-active-low", def.UpActiveLow, "Motor-up output is active low")
	flag.DurationVar(&fv.debounce, "debounce", def.Debounce, "Debounce duration for the limit detectors")
	flag.DurationVar(&fv.travel, "travel", 0, "Full travel time if already known (0 = unknown)")
	configFile := flag.String("config", "", "Config file (flags given explicitly override it)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	name := flag.String("name", "shutter", "Shutter name used in MQTT topics")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	verbose := flag.Bool("v", false, "Verbose logging")
	printState := flag.Bool("print-state", false, "Print GPIO and estimator state and exit")

	flag.Parse()

	cfg := def
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile, cfg)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg, err := applyFlags(cfg, fv, set)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	opts := options{
		cfg:        cfg,
		broker:     *broker,
		name:       *name,
		heartbeat:  *heartbeat,
		httpAddr:   *httpAddr,
		verbose:    *verbose,
		printState: *printState,
	}
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyFlags overrides cfg with the flags named in set.
func applyFlags(cfg config.Config, fv flagValues, set map[string]bool) (config.Config, error) {
	if set["chip"] {
		cfg.Chip = fv.chip
	}
	if set["pin-up"] {
		cfg.Pins.Up = fv.pinUp
	}
	if set["pin-down"] {
		cfg.Pins.Down = fv.pinDown
	}
	if set["pin-top"] {
		cfg.Pins.Top = fv.pinTop
	}
	if set["pin-bottom"] {
		cfg.Pins.Bottom = fv.pinBottom
	}
	if set["up-active-low"] {
		cfg.UpActiveLow = fv.upActiveLow
	}
	if set["debounce"] {
		cfg.Debounce = fv.debounce
	}
	if set["travel"] {
		cfg.Travel = fv.travel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func run(o options) error {
	// Initialize GPIO
	drv, err := gpio.NewRealDriver(gpio.Options{
		Chip:        o.cfg.Chip,
		Pins:        o.cfg.Pins,
		UpActiveLow: o.cfg.UpActiveLow,
		Debounce:    o.cfg.Debounce,
	})
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer drv.Close()

	ctrl := shutter.New(drv, shutter.RealClock{}, o.cfg.Timing)
	ctrl.SetVerbose(o.verbose)

	// Print state mode
	if o.printState {
		fmt.Print(console.FormatDebug(ctrl.Snapshot(), o.cfg.Pins))
		return nil
	}

	// Make sure the shutter is stopped when starting
	if err := ctrl.Stop(); err != nil {
		return fmt.Errorf("stop motor: %w", err)
	}
	if o.cfg.Travel > 0 {
		if err := ctrl.SetTravelTime(o.cfg.Travel); err != nil {
			return fmt.Errorf("set travel time: %w", err)
		}
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker, o.name)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Name:        o.name,
		Chip:        o.cfg.Chip,
		Pins:        o.cfg.Pins,
		DebounceMs:  o.cfg.Debounce.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		Timing:      o.cfg.Timing,
	})
	tracker.Update(ctrl.Snapshot())
	tracker.SetMQTTConnected(publisher.IsConnected())

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
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("limit handler stopped: %v", err)
		}
	}()

	log.Printf("started: chip=%s pins=%+v broker=%s name=%s heartbeat=%v",
		o.cfg.Chip, o.cfg.Pins, o.broker, o.name, o.heartbeat)
	fmt.Println("Type help for the list of commands")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cons := console.New(ctrl, os.Stdout, o.cfg.Pins)
	return runLoop(ctx, ctrl, cons, publisher, publisher, tracker, o.heartbeat, time.Now, ticker.C, readLines(os.Stdin), sigCh)
}

// readLines delivers input lines until r is exhausted, then closes the channel.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("stdin read error: %v", err)
		}
	}()
	return lines
}

func runLoop(ctx context.Context, ctrl *shutter.Controller, cons *console.Console, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, lines <-chan string, sig <-chan os.Signal) error {
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
			shutdown(ctrl, cons, publisher, mqttStatus, tracker, now, signalName)
			return nil

		case line, ok := <-lines:
			if !ok {
				log.Printf("stdin closed, console disabled")
				lines = nil
				continue
			}
			if cons.Execute(ctx, line) {
				shutdown(ctrl, cons, publisher, mqttStatus, tracker, now, "QUIT")
				return nil
			}

		case e := <-ctrl.Events():
			handleEvent(e, ctrl, publisher, tracker)

		case <-tick:
			t := now()
			if tracker == nil {
				continue
			}
			tracker.Update(ctrl.Snapshot())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if tracker.HeartbeatDue(t, heartbeat) {
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v position=%s motor=%s", snap.Uptime().Truncate(time.Second), snap.Shutter.Position, snap.Shutter.Motor)
				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func handleEvent(e shutter.Event, ctrl *shutter.Controller, publisher mqtt.Publisher, tracker *status.Tracker) {
	log.Printf("event: %s (position=%s motor=%s)", e.Type, e.Position, e.Motor)
	if err := publisher.Publish(e); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
	if tracker != nil {
		tracker.RecordEvent(e)
		tracker.Update(ctrl.Snapshot())
	}
}

// shutdown aborts any calibration, stops the motor, flushes pending shutter
// events and publishes the SHUTDOWN system event.
func shutdown(ctrl *shutter.Controller, cons *console.Console, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, reason string) {
	cons.Close()
	if err := ctrl.Stop(); err != nil {
		log.Printf("stop motor: %v", err)
	}
	for drained := false; !drained; {
		select {
		case e := <-ctrl.Events():
			handleEvent(e, ctrl, publisher, tracker)
		default:
			drained = true
		}
	}

	event := mqtt.SystemEvent{
		Timestamp: now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
