package console

import (
	"fmt"
	"strings"

	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/shutter"
)

// HelpText lists the console commands.
const HelpText = `------------------------------------------------------
Type one of the following commands followed by ENTER
to control the window shutter:

 up       : moves the shutter up

 down     : moves the shutter down

 stop     : stop any movement of the shutter
            (also aborts a running speed measurement)

 state    : returns the percent of opening of
            the shutter.

 speed h  : measures the speed of the shutter with
            h being the height of the shutter

 time t   : set the time to fully open the shutter with
            t being the time in seconds.
            Using this command, can save running 'speed'

 debug    : show the state of the GPIO pins and globals

 help     : print this help

 exit     : exit this shutter control program
 quit
------------------------------------------------------
`

// FormatDebug renders the line levels and estimator state. Levels are
// logical: 1 means energized for outputs and triggered for limit sensors.
func FormatDebug(s shutter.Snapshot, pins gpio.Pins) string {
	var b strings.Builder
	b.WriteString("  Name (pin): Value\n")
	b.WriteString("------------------------\n")
	for _, line := range gpio.Lines {
		v := 0
		if s.Levels[line] {
			v = 1
		}
		fmt.Fprintf(&b, "  %s (%d): %d\n", line, pins.Offset(line), v)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Motor    : %s\n", s.Motor)
	fmt.Fprintf(&b, "State    : %s\n", s.Position)
	if d, ok := s.TravelTime(); ok {
		fmt.Fprintf(&b, "Max time : %.3f\n", d.Seconds())
	} else {
		b.WriteString("Max time : Unknown\n")
	}
	if s.Calibrating {
		b.WriteString("Calibrating\n")
	}
	return b.String()
}
