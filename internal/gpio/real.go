//go:build linux

package gpio

import (
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealDriver drives actual hardware using Linux GPIO character device.
type RealDriver struct {
	chip  *gpiocdev.Chip
	lines map[Line]*gpiocdev.Line
	pins  Pins
	edges chan Edge
}

// Options configures the real driver.
type Options struct {
	Chip string
	Pins Pins

	// UpActiveLow inverts the motor-up output. The prototype drives the
	// up relay through a PNP transistor, so low means energized.
	UpActiveLow bool

	// Debounce is the kernel debounce period applied to the limit inputs.
	Debounce time.Duration
}

// NewRealDriver requests the four shutter lines on the given chip.
// Outputs start inactive; limit inputs are pulled up and report falling edges.
func NewRealDriver(opts Options) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip(opts.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	d := &RealDriver{
		chip:  chip,
		lines: make(map[Line]*gpiocdev.Line),
		pins:  opts.Pins,
		edges: make(chan Edge, EdgeBuffer),
	}

	upOpts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if opts.UpActiveLow {
		upOpts = append(upOpts, gpiocdev.AsActiveLow)
	}
	if err := d.request(MotorUp, upOpts...); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.request(MotorDown, gpiocdev.AsOutput(0)); err != nil {
		d.Close()
		return nil, err
	}

	// Detectors pull the line low when on, so the activation is a falling edge.
	for _, line := range []Line{LimitTop, LimitBottom} {
		err := d.request(line,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(opts.Debounce),
			gpiocdev.WithEventHandler(d.handleEvent),
		)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}

func (d *RealDriver) request(line Line, opts ...gpiocdev.LineReqOption) error {
	offset := d.pins.Offset(line)
	l, err := d.chip.RequestLine(offset, opts...)
	if err != nil {
		return fmt.Errorf("request %s pin %d: %w", line, offset, err)
	}
	d.lines[line] = l
	return nil
}

// handleEvent runs on the gpiocdev event goroutine.
func (d *RealDriver) handleEvent(evt gpiocdev.LineEvent) {
	var line Line
	switch evt.Offset {
	case d.pins.Top:
		line = LimitTop
	case d.pins.Bottom:
		line = LimitBottom
	default:
		return
	}
	select {
	case d.edges <- Edge{Line: line, Time: time.Now()}:
	default:
		log.Printf("gpio: edge queue full, dropping %s edge", line)
	}
}

// Set drives an output line.
func (d *RealDriver) Set(line Line, active bool) error {
	if !line.IsOutput() {
		return fmt.Errorf("set %s: not an output", line)
	}
	v := 0
	if active {
		v = 1
	}
	if err := d.lines[line].SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", line, err)
	}
	return nil
}

// Read returns the logical level of a line.
// Inverts raw limit inputs: raw low (0) = detector on.
func (d *RealDriver) Read(line Line) (bool, error) {
	l, ok := d.lines[line]
	if !ok {
		return false, fmt.Errorf("read %s: line not requested", line)
	}
	raw, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", line, err)
	}
	if line.IsOutput() {
		return raw == 1, nil
	}
	return raw == 0, nil
}

// Edges delivers limit sensor activations.
func (d *RealDriver) Edges() <-chan Edge {
	return d.edges
}

// Close releases GPIO resources.
// Outputs are driven inactive and every line is reconfigured as a pulled-down
// input (matching Pi boot defaults) before closing, so the motor cannot be
// left energized.
func (d *RealDriver) Close() error {
	var errs []error

	for _, line := range Lines {
		l, ok := d.lines[line]
		if !ok {
			continue
		}
		if line.IsOutput() {
			if err := l.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", line, err))
			}
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", line, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", line, err))
		}
	}
	d.lines = map[Line]*gpiocdev.Line{}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		d.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
