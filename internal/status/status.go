// Package status provides a thread-safe status tracker for the shutter daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/shutter"
)

// Config contains daemon configuration for display.
type Config struct {
	Name        string
	Chip        string
	Pins        gpio.Pins
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Timing      shutter.Timing
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Shutter       shutter.Snapshot
	LastEvent     *shutter.Event
	EventCount    int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu            sync.RWMutex
	snap          Snapshot
	lastHeartbeat time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		lastHeartbeat: startTime,
	}
}

// HeartbeatDue reports whether interval has passed since the last heartbeat
// (or since start) and, if so, records now as the last heartbeat.
// A non-positive interval disables heartbeats.
func (t *Tracker) HeartbeatDue(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastHeartbeat) < interval {
		return false
	}
	t.lastHeartbeat = now
	return true
}

// Update stores the latest controller snapshot. The Levels map is owned by
// the tracker afterwards and must not be modified by the caller.
// Called from runLoop on every tick and after every event.
func (t *Tracker) Update(s shutter.Snapshot) {
	t.mu.Lock()
	t.snap.Shutter = s
	t.mu.Unlock()
}

// RecordEvent stores the most recent shutter event.
func (t *Tracker) RecordEvent(e shutter.Event) {
	t.mu.Lock()
	t.snap.LastEvent = &e
	t.snap.EventCount++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastEvent != nil {
		e := *s.LastEvent
		s.LastEvent = &e
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
