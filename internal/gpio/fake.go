package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeDriver is a test double holding line levels in memory.
// Safe for concurrent use.
type FakeDriver struct {
	mu sync.Mutex

	levels map[Line]bool
	edges  chan Edge

	// Writes records every Set call in order.
	Writes []Write

	// SetError, if set, will be returned by Set (the level is not changed).
	SetError error

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Closed tracks if Close was called
	Closed bool
}

// Write is a single recorded Set call.
type Write struct {
	Line   Line
	Active bool
}

// NewFakeDriver creates a FakeDriver with every line inactive.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		levels: make(map[Line]bool),
		edges:  make(chan Edge, EdgeBuffer),
	}
}

// Set records the write and updates the output level.
func (f *FakeDriver) Set(line Line, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if !line.IsOutput() {
		return errors.New("not an output")
	}
	f.Writes = append(f.Writes, Write{Line: line, Active: active})
	f.levels[line] = active
	return nil
}

// Read returns the current level of a line.
func (f *FakeDriver) Read(line Line) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.levels[line], nil
}

// Edges returns the scripted edge channel.
func (f *FakeDriver) Edges() <-chan Edge {
	return f.edges
}

// SetInput changes a limit sensor level without emitting an edge.
func (f *FakeDriver) SetInput(line Line, active bool) {
	f.mu.Lock()
	f.levels[line] = active
	f.mu.Unlock()
}

// Trigger activates a limit sensor and emits its edge.
func (f *FakeDriver) Trigger(line Line, at time.Time) {
	f.SetInput(line, true)
	f.edges <- Edge{Line: line, Time: at}
}

// Bounce emits an edge without changing the level, like contact noise that
// is gone before the line is read.
func (f *FakeDriver) Bounce(line Line, at time.Time) {
	f.edges <- Edge{Line: line, Time: at}
}

// Level returns the current level of a line without consulting ReadError.
func (f *FakeDriver) Level(line Line) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[line]
}

// WriteLog returns a copy of the recorded writes.
func (f *FakeDriver) WriteLog() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.Writes...)
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears levels and recorded writes.
func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = make(map[Line]bool)
	f.Writes = nil
	f.SetError = nil
	f.ReadError = nil
	f.Closed = false
}
