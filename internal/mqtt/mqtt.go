// Package mqtt publishes shutter events to MQTT with abstraction for testing.
// Publishing is one-way: nothing is subscribed and no command is accepted
// over the broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shutterd/internal/shutter"
)

// TopicEvents returns the topic for shutter events.
func TopicEvents(name string) string {
	return "home/shutter/" + name + "/events"
}

// TopicSystem returns the topic for system lifecycle events.
func TopicSystem(name string) string {
	return "home/shutter/" + name + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a shutter event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event shutter.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Shutter ShutterPayload `json:"shutter"`
}

// ShutterPayload contains the shutter event details.
// Position and TravelSeconds are null while unknown.
type ShutterPayload struct {
	Name          string   `json:"name"`
	Timestamp     string   `json:"timestamp"`
	Event         string   `json:"event"`
	Motor         string   `json:"motor"`
	Position      *float64 `json:"position"`
	TravelSeconds *float64 `json:"travel_seconds"`
	Speed         float64  `json:"speed,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a shutter event.
func FormatPayload(name string, event shutter.Event) ([]byte, error) {
	payload := Payload{
		Shutter: ShutterPayload{
			Name:      name,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Motor:     event.Motor.String(),
			Speed:     event.Speed,
			Reason:    event.Reason,
		},
	}
	if pct, ok := event.Position.Percent(); ok {
		payload.Shutter.Position = &pct
	}
	if event.Travel > 0 {
		s := event.Travel.Seconds()
		payload.Shutter.TravelSeconds = &s
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
