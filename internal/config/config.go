// Package config reads the shutterd configuration file.
//
// Sample config:
//
//	[gpio]
//	chip=gpiochip0        # GPIO character device
//	motor=3,4             # BCM pins for motor up, motor down
//	limits=27,17          # BCM pins for top and bottom detectors
//	up_active_low=1       # motor-up relay is driven through a PNP
//	debounce=200ms        # kernel debounce on the detectors
//	[timing]
//	settle=100ms          # wait before trusting a detector edge
//	overtravel=1.5s       # extra wait on the bottom detector
//	margin=3s             # calibration wait after reaching the bottom
//	spinup=1s             # subtracted from the measured travel
//	poll=2s               # calibration polling interval
//	timeout=2m            # calibration timeout per leg, 0 to wait forever
//	travel=25s            # known full travel time, skips calibration
package config

import (
	"fmt"
	"time"

	"github.com/aamcrae/config"

	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/shutter"
)

// Config is the daemon configuration.
type Config struct {
	Chip        string
	Pins        gpio.Pins
	UpActiveLow bool
	Debounce    time.Duration
	Timing      shutter.Timing
	Travel      time.Duration // 0 = unknown
}

// Default returns the prototype configuration.
func Default() Config {
	return Config{
		Chip:        "gpiochip0",
		Pins:        gpio.DefaultPins(),
		UpActiveLow: true,
		Debounce:    200 * time.Millisecond,
		Timing:      shutter.DefaultTiming(),
	}
}

// Load reads a config file over base. Missing sections and keys keep the
// values from base.
func Load(file string, base Config) (Config, error) {
	conf, err := config.ParseFile(file)
	if err != nil {
		return base, fmt.Errorf("%s: %w", file, err)
	}
	c := base
	if s := conf.GetSection("gpio"); s != nil {
		if err := loadGPIO(s, &c); err != nil {
			return base, fmt.Errorf("%s: gpio: %w", file, err)
		}
	}
	if s := conf.GetSection("timing"); s != nil {
		if err := loadTiming(s, &c); err != nil {
			return base, fmt.Errorf("%s: timing: %w", file, err)
		}
	}
	if err := c.Validate(); err != nil {
		return base, fmt.Errorf("%s: %w", file, err)
	}
	return c, nil
}

// section is the part of a config file section used here.
type section interface {
	GetArg(key string) (string, error)
	Parse(key, format string, args ...interface{}) (int, error)
}

func loadGPIO(s section, c *Config) error {
	if v, err := s.GetArg("chip"); err == nil {
		c.Chip = v
	}
	if _, err := s.GetArg("motor"); err == nil {
		n, err := s.Parse("motor", "%d,%d", &c.Pins.Up, &c.Pins.Down)
		if err != nil {
			return fmt.Errorf("motor: %v", err)
		}
		if n != 2 {
			return fmt.Errorf("motor: argument count")
		}
	}
	if _, err := s.GetArg("limits"); err == nil {
		n, err := s.Parse("limits", "%d,%d", &c.Pins.Top, &c.Pins.Bottom)
		if err != nil {
			return fmt.Errorf("limits: %v", err)
		}
		if n != 2 {
			return fmt.Errorf("limits: argument count")
		}
	}
	if _, err := s.GetArg("up_active_low"); err == nil {
		var v int
		n, err := s.Parse("up_active_low", "%d", &v)
		if err != nil || n != 1 {
			return fmt.Errorf("up_active_low: expected 0 or 1")
		}
		c.UpActiveLow = v != 0
	}
	return parseDuration(s, "debounce", &c.Debounce)
}

func loadTiming(s section, c *Config) error {
	fields := []struct {
		key string
		d   *time.Duration
	}{
		{"settle", &c.Timing.Settle},
		{"overtravel", &c.Timing.Overtravel},
		{"margin", &c.Timing.Margin},
		{"spinup", &c.Timing.SpinUp},
		{"poll", &c.Timing.Poll},
		{"timeout", &c.Timing.CalibrationTimeout},
		{"travel", &c.Travel},
	}
	for _, f := range fields {
		if err := parseDuration(s, f.key, f.d); err != nil {
			return err
		}
	}
	return nil
}

// parseDuration sets d from key when present.
func parseDuration(s section, key string, d *time.Duration) error {
	v, err := s.GetArg(key)
	if err != nil {
		return nil
	}
	p, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %v", key, err)
	}
	*d = p
	return nil
}

// Validate checks the values the controller cannot work without.
func (c Config) Validate() error {
	if c.Chip == "" {
		return fmt.Errorf("empty gpio chip")
	}
	seen := map[int]gpio.Line{}
	for _, line := range gpio.Lines {
		off := c.Pins.Offset(line)
		if off < 0 {
			return fmt.Errorf("%s: invalid pin %d", line, off)
		}
		if other, dup := seen[off]; dup {
			return fmt.Errorf("%s and %s share pin %d", other, line, off)
		}
		seen[off] = line
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	t := c.Timing
	if t.Settle < 0 || t.Overtravel < 0 || t.Margin < 0 || t.SpinUp < 0 || t.CalibrationTimeout < 0 {
		return fmt.Errorf("timings must not be negative")
	}
	if t.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Travel < 0 {
		return fmt.Errorf("travel must not be negative")
	}
	return nil
}
