package shutter

import (
	"context"
	"log"

	"github.com/sweeney/shutterd/internal/gpio"
)

// Run consumes limit sensor edges until ctx is done or the edge channel is
// closed. Edges are handled one at a time.
func (c *Controller) Run(ctx context.Context) error {
	edges := c.drv.Edges()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-edges:
			if !ok {
				return nil
			}
			c.handleLimit(ctx, e.Line)
		}
	}
}

// handleLimit reacts to a limit sensor edge. The sensor is trusted only
// after the settle delay; on the bottom limit the stop is further delayed
// to let the shutter finish closing, except while calibrating where the
// earliest stop point is wanted. The lock is not held while waiting.
func (c *Controller) handleLimit(ctx context.Context, line gpio.Line) {
	if line != gpio.LimitTop && line != gpio.LimitBottom {
		return
	}

	// Give time for the value to be stable
	if err := c.sleep(ctx, c.timing.Settle); err != nil {
		return
	}

	c.mu.Lock()
	active := c.level(line)
	calibrating := c.calibrating
	if !active {
		c.debugf("limit: %s bounced, ignoring", line)
	} else {
		c.debugf("limit: detector on: %s", line)
	}
	c.mu.Unlock()
	if !active {
		return
	}

	if line == gpio.LimitBottom && !calibrating {
		if err := c.sleep(ctx, c.timing.Overtravel); err != nil {
			return
		}
	}

	c.confirmLimit(line)
}

// confirmLimit re-reads the sensor, as the shutter may have moved during
// the wait, and pins the position to the matching boundary before forcing
// a stop. It reports whether the limit was confirmed.
func (c *Controller) confirmLimit(line gpio.Line) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.level(line) {
		c.debugf("limit: %s released during wait, ignoring", line)
		return false
	}

	boundary, evt := 0.0, EventLimitBottom
	if line == gpio.LimitTop {
		boundary, evt = 100.0, EventLimitTop
	}
	c.position = PositionAt(boundary)

	if err := c.setMotion(DirectiveStop); err != nil {
		log.Printf("limit: stop on %s: %v", line, err)
	}
	log.Printf("limit: %s reached, position %s", line, c.position)
	c.emit(evt)
	return true
}
