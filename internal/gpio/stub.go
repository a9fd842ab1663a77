//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// Options configures the real driver.
type Options struct {
	Chip        string
	Pins        Pins
	UpActiveLow bool
	Debounce    time.Duration
}

// NewRealDriver returns an error on non-Linux platforms.
func NewRealDriver(opts Options) (*RealDriver, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (d *RealDriver) Set(line Line, active bool) error {
	return errors.New("gpio: not supported")
}

// Read is not implemented on non-Linux platforms.
func (d *RealDriver) Read(line Line) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Edges returns nil on non-Linux platforms.
func (d *RealDriver) Edges() <-chan Edge {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (d *RealDriver) Close() error {
	return nil
}
