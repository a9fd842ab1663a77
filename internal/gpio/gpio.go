// Package gpio provides the shutter's motor outputs and limit inputs with
// hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"time"
)

// Line identifies one of the four shutter lines.
type Line int

const (
	MotorUp Line = iota
	MotorDown
	LimitTop
	LimitBottom
)

// Lines lists every line in display order.
var Lines = []Line{MotorUp, MotorDown, LimitTop, LimitBottom}

func (l Line) String() string {
	switch l {
	case MotorUp:
		return "MOTOR_UP"
	case MotorDown:
		return "MOTOR_DOWN"
	case LimitTop:
		return "END_HIGH"
	case LimitBottom:
		return "END_LOW"
	}
	return fmt.Sprintf("LINE(%d)", int(l))
}

// IsOutput reports whether the line drives the motor.
func (l Line) IsOutput() bool {
	return l == MotorUp || l == MotorDown
}

// Edge is a limit sensor activation reported by the driver.
type Edge struct {
	Line Line
	Time time.Time
}

// Driver drives the motor outputs and reads the limit inputs.
// All levels are logical: true means the motor direction is energized or
// the limit detector is on, regardless of the wiring polarity.
type Driver interface {
	// Set drives an output line.
	Set(line Line, active bool) error

	// Read returns the current logical level of any line.
	Read(line Line) (bool, error)

	// Edges delivers limit sensor activations. The channel is bounded;
	// implementations drop edges rather than block when it is full.
	Edges() <-chan Edge

	// Close releases GPIO resources.
	Close() error
}

// Pins holds the BCM offsets of the shutter lines.
type Pins struct {
	Up     int
	Down   int
	Top    int
	Bottom int
}

// Offset returns the BCM offset for a line.
func (p Pins) Offset(line Line) int {
	switch line {
	case MotorUp:
		return p.Up
	case MotorDown:
		return p.Down
	case LimitTop:
		return p.Top
	default:
		return p.Bottom
	}
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinUp     = 3
	DefaultPinDown   = 4
	DefaultPinTop    = 27
	DefaultPinBottom = 17
)

// DefaultPins returns the prototype wiring.
func DefaultPins() Pins {
	return Pins{Up: DefaultPinUp, Down: DefaultPinDown, Top: DefaultPinTop, Bottom: DefaultPinBottom}
}

// EdgeBuffer is the capacity of the edge channel.
const EdgeBuffer = 8
