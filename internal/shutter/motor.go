package shutter

import (
	"fmt"
	"log"

	"github.com/sweeney/shutterd/internal/gpio"
)

// Up starts opening the shutter.
func (c *Controller) Up() error {
	return c.command(DirectiveUp)
}

// Down starts closing the shutter.
func (c *Controller) Down() error {
	return c.command(DirectiveDown)
}

// Stop stops any movement.
func (c *Controller) Stop() error {
	return c.command(DirectiveStop)
}

func (c *Controller) command(d Directive) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setMotion(d)
}

// setMotion is the only place that writes the motor outputs.
// Caller must hold c.mu.
func (c *Controller) setMotion(d Directive) error {
	now := c.clock.Now()
	if c.win.open {
		c.win.end = now
		c.win.open = false
	}
	c.updatePosition()

	// Stop the motor before doing anything else, so both directions are
	// never energized together.
	if err := c.release(); err != nil {
		return err
	}
	c.debugf("motor: stopped")

	var line gpio.Line
	switch d {
	case DirectiveUp:
		line = gpio.MotorUp
		c.debugf("motor: opening")
	case DirectiveDown:
		line = gpio.MotorDown
		c.debugf("motor: closing")
	default:
		c.emit(EventStopped)
		return nil
	}

	c.win = window{start: now, open: true}
	if err := c.drv.Set(line, true); err != nil {
		c.win.open = false
		if rerr := c.release(); rerr != nil {
			log.Printf("motor: release after failed %s: %v", d, rerr)
		}
		return fmt.Errorf("motor %s: %w", d, err)
	}

	if d == DirectiveUp {
		c.emit(EventMovingUp)
	} else {
		c.emit(EventMovingDown)
	}
	return nil
}

// release drives both outputs inactive. Caller must hold c.mu.
func (c *Controller) release() error {
	var first error
	for _, line := range []gpio.Line{gpio.MotorUp, gpio.MotorDown} {
		if err := c.drv.Set(line, false); err != nil && first == nil {
			first = fmt.Errorf("motor stop: %w", err)
		}
	}
	return first
}
