package shutter

import (
	"log"

	"github.com/sweeney/shutterd/internal/gpio"
)

// updatePosition folds the closed measurement window into the position
// estimate. It must run before the outputs change, while the motor state
// still reflects the motion that just ended. Caller must hold c.mu.
//
// Nothing is estimated without both a starting position and a travel time.
// An estimate that lands on a boundary the matching sensor does not confirm
// means tracking was lost: the position becomes unknown.
func (c *Controller) updatePosition() {
	pct, ok := c.position.Percent()
	if !ok || c.travel <= 0 {
		return
	}

	var direction float64
	switch state := c.motorState(); state {
	case MotorMovingUp:
		direction = 1
	case MotorMovingDown:
		direction = -1
	case MotorInconsistent:
		log.Printf("weird motor state %s, check the gpio status", state)
	}

	elapsed := c.win.end.Sub(c.win.start)
	delta := 100 * direction * elapsed.Seconds() / c.travel.Seconds()
	next := clamp(pct + delta)

	c.debugf("position: initial %.2f, delta %.2f, new %.2f", pct, delta, next)

	if (next == 0 && !c.level(gpio.LimitBottom)) || (next == 100 && !c.level(gpio.LimitTop)) {
		log.Printf("position: lost track of the shutter (estimate %.1f not confirmed by sensor)", next)
		c.position = Position{}
		c.emit(EventTrackingLost)
		return
	}
	c.position = PositionAt(next)
}
