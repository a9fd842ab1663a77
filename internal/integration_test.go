package internal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/mqtt"
	"github.com/sweeney/shutterd/internal/shutter"
	"github.com/sweeney/shutterd/internal/status"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// system wires the fakes together the way cmd/shutterd wires the real parts.
type system struct {
	drv     *gpio.FakeDriver
	clock   *shutter.FakeClock
	ctrl    *shutter.Controller
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
}

func newSystem(t *testing.T) *system {
	t.Helper()
	drv := gpio.NewFakeDriver()
	clock := shutter.NewFakeClock(startTime)
	s := &system{
		drv:     drv,
		clock:   clock,
		ctrl:    shutter.New(drv, clock, shutter.DefaultTiming()),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(startTime, status.Config{Name: "test"}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

// pump forwards controller events to the publisher and tracker until want
// has been forwarded.
func (s *system) pump(t *testing.T, want shutter.EventType) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-s.ctrl.Events():
			if err := s.pub.Publish(e); err != nil {
				t.Fatalf("publish: %v", err)
			}
			s.tracker.RecordEvent(e)
			s.tracker.Update(s.ctrl.Snapshot())
			if e.Type == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, published %v", want, s.pub.EventTypes())
		}
	}
}

// reachLimit simulates the shutter hitting a limit detector.
func (s *system) reachLimit(line gpio.Line) {
	s.drv.Trigger(line, s.clock.Now())
}

func lastPayload(t *testing.T, pub *mqtt.FakePublisher) mqtt.ShutterPayload {
	t.Helper()
	var p mqtt.Payload
	if err := json.Unmarshal(pub.Payloads[len(pub.Payloads)-1], &p); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	return p.Shutter
}

// TestIntegrationCloseThenTrackOpening closes the shutter onto the bottom
// limit, sets the travel time and tracks a partial opening.
func TestIntegrationCloseThenTrackOpening(t *testing.T) {
	s := newSystem(t)

	if err := s.ctrl.Down(); err != nil {
		t.Fatalf("Down: %v", err)
	}
	s.pump(t, shutter.EventMovingDown)

	s.reachLimit(gpio.LimitBottom)
	s.pump(t, shutter.EventLimitBottom)

	p := lastPayload(t, s.pub)
	if p.Position == nil || *p.Position != 0 {
		t.Fatalf("position after bottom limit: got %v, want 0", p.Position)
	}
	if s.drv.Level(gpio.MotorDown) {
		t.Error("bottom limit should release the motor")
	}

	if err := s.ctrl.SetTravelTime(20 * time.Second); err != nil {
		t.Fatalf("SetTravelTime: %v", err)
	}
	s.pump(t, shutter.EventTravelSet)

	// The detector stays active while the shutter rests on it.
	s.ctrl.Up()
	s.drv.SetInput(gpio.LimitBottom, false)
	s.clock.Advance(5 * time.Second)
	s.ctrl.Stop()
	s.pump(t, shutter.EventStopped)

	p = lastPayload(t, s.pub)
	if p.Position == nil || *p.Position != 25 {
		t.Errorf("position after 5s of 20s: got %v, want 25", p.Position)
	}
	if p.TravelSeconds == nil || *p.TravelSeconds != 20 {
		t.Errorf("travel_seconds: got %v, want 20", p.TravelSeconds)
	}

	snap := s.tracker.Snapshot()
	if pct, ok := snap.Shutter.Position.Percent(); !ok || pct != 25 {
		t.Errorf("tracker position: got %s, want 25.0", snap.Shutter.Position)
	}
}

// TestIntegrationTopLimitFromUnknown checks the first opening after startup
// fixes the unknown position at 100.
func TestIntegrationTopLimitFromUnknown(t *testing.T) {
	s := newSystem(t)

	s.ctrl.Up()
	s.pump(t, shutter.EventMovingUp)
	if p := lastPayload(t, s.pub); p.Position != nil {
		t.Errorf("position before any limit: got %v, want null", *p.Position)
	}

	s.reachLimit(gpio.LimitTop)
	s.pump(t, shutter.EventLimitTop)

	p := lastPayload(t, s.pub)
	if p.Position == nil || *p.Position != 100 {
		t.Errorf("position after top limit: got %v, want 100", p.Position)
	}
	if p.Motor != "STOPPED" {
		t.Errorf("motor: got %q, want STOPPED", p.Motor)
	}
}

// TestIntegrationTrackingLost runs the shutter past its estimated travel
// without reaching the limit.
func TestIntegrationTrackingLost(t *testing.T) {
	s := newSystem(t)

	s.ctrl.Up()
	s.reachLimit(gpio.LimitTop)
	s.pump(t, shutter.EventLimitTop)
	s.ctrl.SetTravelTime(10 * time.Second)

	s.ctrl.Down()
	s.drv.SetInput(gpio.LimitTop, false)
	s.clock.Advance(30 * time.Second)
	s.ctrl.Stop()
	s.pump(t, shutter.EventTrackingLost)
	s.pump(t, shutter.EventStopped)

	p := lastPayload(t, s.pub)
	if p.Position != nil {
		t.Errorf("position after tracking lost: got %v, want null", *p.Position)
	}
	if s.tracker.Snapshot().Shutter.Position.Known() {
		t.Error("tracker should report unknown position")
	}
}

// TestIntegrationBounceIgnored triggers an edge whose level is gone by the
// time the settle delay has passed. Edges are handled in order, so once the
// following top limit is confirmed the bounce has been processed.
func TestIntegrationBounceIgnored(t *testing.T) {
	s := newSystem(t)

	s.ctrl.Up()
	s.drv.Bounce(gpio.LimitBottom, s.clock.Now())
	s.reachLimit(gpio.LimitTop)
	s.pump(t, shutter.EventLimitTop)

	for _, typ := range s.pub.EventTypes() {
		if typ == shutter.EventLimitBottom {
			t.Error("bounce should not confirm the bottom limit")
		}
	}
	if s.drv.Level(gpio.MotorUp) {
		t.Error("top limit should release the motor")
	}
}

// TestIntegrationStatusPayload checks the status document built from the
// tracker after a limit.
func TestIntegrationStatusPayload(t *testing.T) {
	s := newSystem(t)

	s.ctrl.Up()
	s.reachLimit(gpio.LimitTop)
	s.pump(t, shutter.EventLimitTop)

	data := status.FormatStatusEvent(s.tracker.Snapshot(), "HEARTBEAT", "")
	if err := s.pub.PublishSystem(mqtt.SystemEvent{Event: "HEARTBEAT", RawPayload: data}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(s.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid status payload: %v", err)
	}
	if parsed.Status.Position == nil || *parsed.Status.Position != 100 {
		t.Errorf("status position: got %v, want 100", parsed.Status.Position)
	}
	if !parsed.Status.Lines["END_HIGH"] {
		t.Error("status should show END_HIGH active")
	}
	if parsed.Status.LastEvent == nil || parsed.Status.LastEvent.Type != "LIMIT_TOP" {
		t.Errorf("status last event: got %+v", parsed.Status.LastEvent)
	}
}
