// Package shutter contains the control logic for a single motorized shutter:
// motor directives, time-based position estimation, limit sensor handling
// and travel time calibration.
// Hardware is reached only through gpio.Driver and time only through Clock,
// so the whole package runs against fakes in tests.
package shutter

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
)

// Directive is a commanded motor direction.
type Directive int

const (
	DirectiveStop Directive = iota
	DirectiveUp
	DirectiveDown
)

func (d Directive) String() string {
	switch d {
	case DirectiveUp:
		return "UP"
	case DirectiveDown:
		return "DOWN"
	default:
		return "STOP"
	}
}

// MotorState is the motor direction observed on the output lines.
type MotorState int

const (
	MotorStopped MotorState = iota
	MotorMovingUp
	MotorMovingDown
	// MotorInconsistent means both directions are energized.
	MotorInconsistent
)

func (m MotorState) String() string {
	switch m {
	case MotorStopped:
		return "STOPPED"
	case MotorMovingUp:
		return "MOVING_UP"
	case MotorMovingDown:
		return "MOVING_DOWN"
	default:
		return "INCONSISTENT"
	}
}

// Position is the estimated opening of the shutter in percent:
// 0 is fully closed, 100 fully open. The zero value is an unknown position.
type Position struct {
	percent float64
	known   bool
}

// PositionAt returns a known position clamped to [0, 100].
func PositionAt(percent float64) Position {
	return Position{percent: clamp(percent), known: true}
}

// Percent returns the opening and whether it is known.
func (p Position) Percent() (float64, bool) {
	return p.percent, p.known
}

// Known reports whether the position is known.
func (p Position) Known() bool {
	return p.known
}

func (p Position) String() string {
	if !p.known {
		return "Unknown"
	}
	return fmt.Sprintf("%.1f", p.percent)
}

func clamp(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// window is the interval of the latest continuous motor motion.
type window struct {
	start time.Time
	end   time.Time
	open  bool
}

// Timing holds the settle and calibration delays. They encode physical
// debounce and overtravel behaviour of the shutter.
type Timing struct {
	// Settle is the wait after a limit edge before trusting the sensor.
	Settle time.Duration
	// Overtravel is the extra wait on the bottom limit outside calibration.
	Overtravel time.Duration
	// Margin is the wait after reaching the bottom during calibration so the
	// limit handler's own stop lands first.
	Margin time.Duration
	// SpinUp is subtracted from the measured travel: the motor is not at
	// full speed right away.
	SpinUp time.Duration
	// Poll is the calibration polling interval.
	Poll time.Duration
	// CalibrationTimeout bounds each calibration leg. Zero waits forever.
	CalibrationTimeout time.Duration
}

// DefaultTiming returns the delays tuned on the prototype.
func DefaultTiming() Timing {
	return Timing{
		Settle:             100 * time.Millisecond,
		Overtravel:         1500 * time.Millisecond,
		Margin:             3 * time.Second,
		SpinUp:             time.Second,
		Poll:               2 * time.Second,
		CalibrationTimeout: 2 * time.Minute,
	}
}

// EventType identifies a shutter state change.
type EventType string

const (
	EventMovingUp          EventType = "MOVING_UP"
	EventMovingDown        EventType = "MOVING_DOWN"
	EventStopped           EventType = "STOPPED"
	EventLimitTop          EventType = "LIMIT_TOP"
	EventLimitBottom       EventType = "LIMIT_BOTTOM"
	EventTrackingLost      EventType = "TRACKING_LOST"
	EventTravelSet         EventType = "TRAVEL_SET"
	EventCalibrated        EventType = "CALIBRATED"
	EventCalibrationFailed EventType = "CALIBRATION_FAILED"
)

// Event is a state change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Position  Position
	Motor     MotorState
	Travel    time.Duration
	Speed     float64 // CALIBRATED only
	Reason    string  // CALIBRATION_FAILED only
}

// Snapshot is a point-in-time view of the controller for diagnostics.
type Snapshot struct {
	Levels      map[gpio.Line]bool
	Motor       MotorState
	Position    Position
	Travel      time.Duration
	Calibrating bool
}

// TravelTime returns the full travel time and whether it is known.
func (s Snapshot) TravelTime() (time.Duration, bool) {
	return s.Travel, s.Travel > 0
}

var (
	// ErrInvalidArgument is returned for non-positive heights or travel times.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCalibrating is returned when a calibration is already running.
	ErrCalibrating = errors.New("calibration already in progress")
	// ErrCalibrationTimeout is returned when a limit is not reached in time.
	ErrCalibrationTimeout = errors.New("calibration timed out")
	// ErrCalibrationFailed is returned when the measurement is unusable.
	ErrCalibrationFailed = errors.New("calibration failed")
)
