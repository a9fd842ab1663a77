// Package console implements the interactive line-oriented command
// interface of the shutter daemon.
//
// Commands:
//
//	up, down, stop   drive the motor (stop also cancels a calibration)
//	state            print the estimated opening
//	speed <h>        calibrate the travel time; h is the shutter height
//	time <t>         set the full travel time to t seconds
//	debug            dump the GPIO lines and estimator state
//	help             print the command list
//	exit, quit       leave the daemon
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"

	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/shutter"
)

// Shutter is the part of shutter.Controller the console drives.
type Shutter interface {
	Up() error
	Down() error
	Stop() error
	Position() shutter.Position
	SetTravelTime(d time.Duration) error
	Calibrate(ctx context.Context, height float64) (float64, error)
	Snapshot() shutter.Snapshot
}

// Command is one tokenized console line.
type Command struct {
	Name string
	Args []string
}

// Parse tokenizes a console line. Quotes and escapes follow shell rules.
// An empty line yields a Command with an empty Name.
func Parse(line string) (Command, error) {
	parts, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse %q: %w", line, err)
	}
	if len(parts) == 0 {
		return Command{}, nil
	}
	return Command{Name: strings.ToLower(parts[0]), Args: parts[1:]}, nil
}

// Console executes commands against a shutter and writes replies to out.
// Calibration runs in the background so that stop and quit stay responsive.
type Console struct {
	ctrl Shutter
	pins gpio.Pins

	mu     sync.Mutex // guards out and cancel
	out    io.Writer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a console. pins is only used to label the debug dump.
func New(ctrl Shutter, out io.Writer, pins gpio.Pins) *Console {
	return &Console{ctrl: ctrl, out: out, pins: pins}
}

// Execute runs one input line. It returns true when the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	cmd, err := Parse(line)
	if err != nil {
		c.printf("%v\n", err)
		return false
	}

	switch cmd.Name {
	case "":
	case "up":
		c.report(c.ctrl.Up())
	case "down":
		c.report(c.ctrl.Down())
	case "stop":
		if c.CancelCalibration() {
			c.printf("Calibration cancelled\n")
		}
		c.report(c.ctrl.Stop())
	case "state":
		c.printf("%s\n", c.ctrl.Position())
	case "speed":
		if len(cmd.Args) != 1 {
			c.printf("Missing height parameter\n")
			return false
		}
		height, err := parsePositive(cmd.Args[0])
		if err != nil {
			c.printf("Invalid height parameter: %v\n", err)
			return false
		}
		c.startCalibration(ctx, height)
	case "time":
		if len(cmd.Args) != 1 {
			c.printf("Missing time parameter\n")
			return false
		}
		secs, err := parsePositive(cmd.Args[0])
		if err != nil {
			c.printf("Invalid time parameter: %v\n", err)
			return false
		}
		c.report(c.ctrl.SetTravelTime(time.Duration(secs * float64(time.Second))))
	case "debug":
		c.printf("%s", FormatDebug(c.ctrl.Snapshot(), c.pins))
	case "help":
		c.printf("%s", HelpText)
	case "exit", "quit":
		return true
	default:
		c.printf("Unknown command %q, type help for the list\n", cmd.Name)
	}
	return false
}

// startCalibration launches Calibrate in the background.
func (c *Console) startCalibration(ctx context.Context, height float64) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		c.printf("%v\n", shutter.ErrCalibrating)
		return
	}
	cctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	c.printf("Calibrating, type stop to abort\n")
	go func() {
		defer c.wg.Done()
		speed, err := c.ctrl.Calibrate(cctx, height)

		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()

		switch {
		case errors.Is(err, context.Canceled):
			log.Printf("console: calibration cancelled")
		case err != nil:
			c.printf("Calibration failed: %v\n", err)
		default:
			c.printf("%g\n", speed)
		}
	}()
}

// CancelCalibration aborts a running calibration and waits for it to stop
// the motor. It reports whether one was running.
func (c *Console) CancelCalibration() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	c.wg.Wait()
	return true
}

// Close cancels any running calibration.
func (c *Console) Close() {
	c.CancelCalibration()
	c.wg.Wait()
}

func (c *Console) report(err error) {
	if err != nil {
		c.printf("Error: %v\n", err)
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !(v > 0) || math.IsInf(v, 1) {
		return 0, fmt.Errorf("%w: %s must be a positive number", shutter.ErrInvalidArgument, s)
	}
	return v, nil
}
