package shutter

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
)

// eventBuffer is the capacity of the Events channel.
const eventBuffer = 32

// Controller owns all mutable shutter state. A single mutex covers the
// position, travel time, measurement window, calibrating flag and every
// write to the motor outputs, so commands, limit events and calibration
// serialize through one path.
type Controller struct {
	drv    gpio.Driver
	clock  Clock
	timing Timing

	mu          sync.Mutex
	position    Position
	travel      time.Duration // <= 0 is unknown
	win         window
	calibrating bool
	verbose     bool

	events chan Event
}

// New creates a controller with unknown position and travel time.
func New(drv gpio.Driver, clock Clock, timing Timing) *Controller {
	return &Controller{
		drv:    drv,
		clock:  clock,
		timing: timing,
		events: make(chan Event, eventBuffer),
	}
}

// SetVerbose enables debug logging.
func (c *Controller) SetVerbose(v bool) {
	c.mu.Lock()
	c.verbose = v
	c.mu.Unlock()
}

// Events delivers state changes. Events are dropped when nobody reads them.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Timing returns the configured delays.
func (c *Controller) Timing() Timing {
	return c.timing
}

// Position returns the estimated opening.
func (c *Controller) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// SetTravelTime sets the full travel time manually, bypassing calibration.
func (c *Controller) SetTravelTime(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: travel time must be positive, got %v", ErrInvalidArgument, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.travel = d
	c.emit(EventTravelSet)
	return nil
}

// Snapshot returns the line levels and estimator state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	levels := make(map[gpio.Line]bool, len(gpio.Lines))
	for _, line := range gpio.Lines {
		levels[line] = c.level(line)
	}
	return Snapshot{
		Levels:      levels,
		Motor:       c.motorState(),
		Position:    c.position,
		Travel:      c.travel,
		Calibrating: c.calibrating,
	}
}

// motorState derives the motor direction from the output lines.
// Caller must hold c.mu.
func (c *Controller) motorState() MotorState {
	up, down := c.level(gpio.MotorUp), c.level(gpio.MotorDown)
	switch {
	case up && down:
		return MotorInconsistent
	case up:
		return MotorMovingUp
	case down:
		return MotorMovingDown
	default:
		return MotorStopped
	}
}

// level reads a line, reporting read errors as inactive.
// Caller must hold c.mu.
func (c *Controller) level(line gpio.Line) bool {
	v, err := c.drv.Read(line)
	if err != nil {
		log.Printf("gpio read error: %v", err)
		return false
	}
	return v
}

// emit queues an event with the current state. Caller must hold c.mu.
func (c *Controller) emit(t EventType) {
	c.send(Event{Type: t})
}

// send fills in the common fields and queues e. Caller must hold c.mu.
func (c *Controller) send(e Event) {
	e.Timestamp = c.clock.Now()
	e.Position = c.position
	e.Motor = c.motorState()
	e.Travel = c.travel
	select {
	case c.events <- e:
	default:
		log.Printf("event queue full, dropping %s", e.Type)
	}
}

// debugf logs only in verbose mode. Caller must hold c.mu.
func (c *Controller) debugf(format string, args ...interface{}) {
	if c.verbose {
		log.Printf(format, args...)
	}
}
