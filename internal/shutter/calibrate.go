package shutter

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/sweeney/shutterd/internal/gpio"
)

// Calibrate measures the full travel time by closing the shutter and then
// timing a complete opening. height is the travel distance; the returned
// speed is height per second. On any failure, cancellation included, the
// motor is stopped before returning.
func (c *Controller) Calibrate(ctx context.Context, height float64) (speed float64, err error) {
	if !(height > 0) || math.IsInf(height, 1) {
		return 0, fmt.Errorf("%w: height must be positive, got %v", ErrInvalidArgument, height)
	}

	c.mu.Lock()
	if c.calibrating {
		c.mu.Unlock()
		return 0, ErrCalibrating
	}
	c.calibrating = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calibrating = false
		if err == nil {
			return
		}
		if serr := c.setMotion(DirectiveStop); serr != nil {
			log.Printf("calibrate: stop: %v", serr)
		}
		c.send(Event{Type: EventCalibrationFailed, Reason: err.Error()})
	}()

	log.Printf("calibrate: closing the shutter")
	if err := c.command(DirectiveDown); err != nil {
		return 0, err
	}
	if err := c.waitStopped(ctx, gpio.LimitBottom); err != nil {
		return 0, err
	}

	// Make sure the limit handler's own stop went through first.
	if err := c.sleep(ctx, c.timing.Margin); err != nil {
		return 0, err
	}

	log.Printf("calibrate: opening the shutter")
	if err := c.command(DirectiveUp); err != nil {
		return 0, err
	}
	if err := c.waitStopped(ctx, gpio.LimitTop); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.win.open {
		return 0, fmt.Errorf("%w: measurement window still open", ErrCalibrationFailed)
	}
	travel := c.win.end.Sub(c.win.start) - c.timing.SpinUp
	if travel <= 0 {
		return 0, fmt.Errorf("%w: measured travel %v", ErrCalibrationFailed, travel)
	}
	c.travel = travel
	speed = height / travel.Seconds()
	log.Printf("calibrate: travel %v, speed %.3f/s", travel, speed)
	c.send(Event{Type: EventCalibrated, Speed: speed})
	return speed, nil
}

// waitStopped polls until the motor is stopped with the given limit active.
func (c *Controller) waitStopped(ctx context.Context, line gpio.Line) error {
	timeout := c.timing.CalibrationTimeout
	deadline := c.clock.Now().Add(timeout)
	for {
		c.mu.Lock()
		done := c.motorState() == MotorStopped && c.level(line)
		c.mu.Unlock()
		if done {
			return nil
		}
		if timeout > 0 && !c.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s not reached within %v", ErrCalibrationTimeout, line, timeout)
		}
		if err := c.sleep(ctx, c.timing.Poll); err != nil {
			return err
		}
	}
}

// Calibrating reports whether a calibration is running.
func (c *Controller) Calibrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calibrating
}
