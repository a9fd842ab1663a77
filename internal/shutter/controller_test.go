package shutter

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T) (*Controller, *gpio.FakeDriver, *FakeClock) {
	t.Helper()
	drv := gpio.NewFakeDriver()
	clk := NewFakeClock(t0)
	return New(drv, clk, DefaultTiming()), drv, clk
}

// setState primes the estimator as if the shutter had been tracked before.
func setState(c *Controller, pos Position, travel time.Duration) {
	c.mu.Lock()
	c.position = pos
	c.travel = travel
	c.mu.Unlock()
}

// drainEvents returns every queued event type.
func drainEvents(c *Controller) []EventType {
	var got []EventType
	for {
		select {
		case e := <-c.Events():
			got = append(got, e.Type)
		default:
			return got
		}
	}
}

func TestNewController(t *testing.T) {
	c, _, _ := newTestController(t)

	if c.Position().Known() {
		t.Errorf("expected unknown position, got %s", c.Position())
	}
	snap := c.Snapshot()
	if _, ok := snap.TravelTime(); ok {
		t.Errorf("expected unknown travel time, got %v", snap.Travel)
	}
	if snap.Motor != MotorStopped {
		t.Errorf("expected STOPPED, got %s", snap.Motor)
	}
	if snap.Calibrating {
		t.Error("new controller should not be calibrating")
	}
}

func TestUpDrivesSingleOutput(t *testing.T) {
	c, drv, _ := newTestController(t)

	if err := c.Up(); err != nil {
		t.Fatalf("Up: %v", err)
	}

	want := []gpio.Write{
		{Line: gpio.MotorUp, Active: false},
		{Line: gpio.MotorDown, Active: false},
		{Line: gpio.MotorUp, Active: true},
	}
	got := drv.WriteLog()
	if len(got) != len(want) {
		t.Fatalf("writes: got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	if s := c.Snapshot().Motor; s != MotorMovingUp {
		t.Errorf("motor: got %s, want MOVING_UP", s)
	}
}

func TestDirectionChangeNeverEnergizesBoth(t *testing.T) {
	c, drv, clk := newTestController(t)

	c.Up()
	clk.Advance(time.Second)
	c.Down()
	clk.Advance(time.Second)
	c.Up()
	c.Stop()

	up, down := false, false
	for i, w := range drv.WriteLog() {
		if w.Line == gpio.MotorUp {
			up = w.Active
		} else {
			down = w.Active
		}
		if up && down {
			t.Fatalf("write %d: both directions energized", i)
		}
	}
	if up || down {
		t.Error("expected both outputs inactive after Stop")
	}
}

func TestDownDrivesDownOutput(t *testing.T) {
	c, drv, _ := newTestController(t)

	c.Down()

	if drv.Level(gpio.MotorUp) || !drv.Level(gpio.MotorDown) {
		t.Errorf("levels: up=%v down=%v", drv.Level(gpio.MotorUp), drv.Level(gpio.MotorDown))
	}
	if s := c.Snapshot().Motor; s != MotorMovingDown {
		t.Errorf("motor: got %s, want MOVING_DOWN", s)
	}
}

func TestStopTwiceIsIdempotent(t *testing.T) {
	c, drv, clk := newTestController(t)
	setState(c, PositionAt(50), 20*time.Second)

	c.Up()
	clk.Advance(5 * time.Second)
	c.Stop()

	c.mu.Lock()
	win := c.win
	c.mu.Unlock()
	pos := c.Position()
	levelsUp, levelsDown := drv.Level(gpio.MotorUp), drv.Level(gpio.MotorDown)

	clk.Advance(3 * time.Second)
	c.Stop()

	if c.Position() != pos {
		t.Errorf("position changed: got %s, want %s", c.Position(), pos)
	}
	c.mu.Lock()
	if c.win != win {
		t.Errorf("window changed: got %+v, want %+v", c.win, win)
	}
	c.mu.Unlock()
	if drv.Level(gpio.MotorUp) != levelsUp || drv.Level(gpio.MotorDown) != levelsDown {
		t.Error("output configuration changed")
	}
}

func TestUpdatePosition(t *testing.T) {
	tests := []struct {
		name    string
		start   float64
		dir     Directive
		elapsed time.Duration
		top     bool
		bottom  bool
		want    Position
	}{
		{"up quarter", 50, DirectiveUp, 5 * time.Second, false, false, PositionAt(75)},
		{"down quarter", 50, DirectiveDown, 5 * time.Second, false, false, PositionAt(25)},
		{"no motion", 30, DirectiveUp, 0, false, false, PositionAt(30)},
		{"clamp bottom confirmed", 10, DirectiveDown, 5 * time.Second, false, true, PositionAt(0)},
		{"clamp bottom unconfirmed", 10, DirectiveDown, 5 * time.Second, false, false, Position{}},
		{"clamp top confirmed", 90, DirectiveUp, 5 * time.Second, true, false, PositionAt(100)},
		{"clamp top unconfirmed", 90, DirectiveUp, 5 * time.Second, false, false, Position{}},
		{"exact top unconfirmed", 75, DirectiveUp, 5 * time.Second, false, false, Position{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, drv, clk := newTestController(t)
			setState(c, PositionAt(tt.start), 20*time.Second)
			drv.SetInput(gpio.LimitTop, tt.top)
			drv.SetInput(gpio.LimitBottom, tt.bottom)

			c.command(tt.dir)
			clk.Advance(tt.elapsed)
			c.Stop()

			if got := c.Position(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUpdatePositionTrackingLostEvent(t *testing.T) {
	c, _, clk := newTestController(t)
	setState(c, PositionAt(90), 20*time.Second)

	c.Up()
	clk.Advance(5 * time.Second)
	c.Stop()

	got := drainEvents(c)
	want := []EventType{EventMovingUp, EventTrackingLost, EventStopped}
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUpdatePositionNeedsStartAndTravel(t *testing.T) {
	c, _, clk := newTestController(t)
	setState(c, Position{}, 20*time.Second)
	c.Up()
	clk.Advance(5 * time.Second)
	c.Stop()
	if c.Position().Known() {
		t.Errorf("unknown start: got %s, want Unknown", c.Position())
	}

	c, _, clk = newTestController(t)
	setState(c, PositionAt(40), 0)
	c.Down()
	clk.Advance(5 * time.Second)
	c.Stop()
	if got := c.Position(); got != PositionAt(40) {
		t.Errorf("unknown travel: got %s, want 40.0", got)
	}
}

func TestInconsistentMotorTreatedAsStopped(t *testing.T) {
	c, drv, _ := newTestController(t)
	setState(c, PositionAt(50), 20*time.Second)
	drv.Set(gpio.MotorUp, true)
	drv.Set(gpio.MotorDown, true)

	if s := c.Snapshot().Motor; s != MotorInconsistent {
		t.Fatalf("motor: got %s, want INCONSISTENT", s)
	}

	c.mu.Lock()
	c.win = window{start: t0, end: t0.Add(5 * time.Second)}
	c.updatePosition()
	c.mu.Unlock()

	if got := c.Position(); got != PositionAt(50) {
		t.Errorf("got %s, want 50.0", got)
	}
}

func TestSetTravelTime(t *testing.T) {
	c, _, _ := newTestController(t)

	if err := c.SetTravelTime(20 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d, ok := c.Snapshot().TravelTime(); !ok || d != 20*time.Second {
		t.Errorf("travel: got %v (%v), want 20s", d, ok)
	}

	for _, d := range []time.Duration{0, -time.Second} {
		err := c.SetTravelTime(d)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetTravelTime(%v): got %v, want ErrInvalidArgument", d, err)
		}
	}
	if d, _ := c.Snapshot().TravelTime(); d != 20*time.Second {
		t.Errorf("rejected value changed travel to %v", d)
	}
}

func TestSetMotionWriteError(t *testing.T) {
	c, drv, _ := newTestController(t)
	drv.SetError = errors.New("simulated error")

	if err := c.Up(); err == nil {
		t.Fatal("expected error")
	}
	c.mu.Lock()
	open := c.win.open
	c.mu.Unlock()
	if open {
		t.Error("window should not open when the write fails")
	}
}

func TestReadErrorReportsInactive(t *testing.T) {
	c, drv, _ := newTestController(t)
	c.Up()
	drv.ReadError = errors.New("simulated error")

	snap := c.Snapshot()
	if snap.Motor != MotorStopped {
		t.Errorf("motor: got %s, want STOPPED", snap.Motor)
	}
	for line, v := range snap.Levels {
		if v {
			t.Errorf("%s: expected inactive on read error", line)
		}
	}
}

func TestSnapshot(t *testing.T) {
	c, drv, _ := newTestController(t)
	setState(c, PositionAt(25), 30*time.Second)
	drv.SetInput(gpio.LimitBottom, true)
	c.Down()

	snap := c.Snapshot()
	if !snap.Levels[gpio.MotorDown] || snap.Levels[gpio.MotorUp] {
		t.Errorf("motor levels: %+v", snap.Levels)
	}
	if !snap.Levels[gpio.LimitBottom] || snap.Levels[gpio.LimitTop] {
		t.Errorf("limit levels: %+v", snap.Levels)
	}
	if snap.Position != PositionAt(25) {
		t.Errorf("position: got %s", snap.Position)
	}
	if snap.Travel != 30*time.Second {
		t.Errorf("travel: got %v", snap.Travel)
	}
}

func TestPositionString(t *testing.T) {
	if s := (Position{}).String(); s != "Unknown" {
		t.Errorf("got %q, want Unknown", s)
	}
	if s := PositionAt(75).String(); s != "75.0" {
		t.Errorf("got %q, want 75.0", s)
	}
	if p, _ := PositionAt(140).Percent(); p != 100 {
		t.Errorf("PositionAt should clamp, got %v", p)
	}
}
