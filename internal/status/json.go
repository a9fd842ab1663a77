package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
// Position and TravelSeconds are null while unknown.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Name          string          `json:"name"`
	Motor         string          `json:"motor"`
	Position      *float64        `json:"position"`
	TravelSeconds *float64        `json:"travel_seconds"`
	Calibrating   bool            `json:"calibrating"`
	Lines         map[string]bool `json:"lines"`
	LastEvent     *LastEventJSON  `json:"last_event,omitempty"`
	EventCount    int             `json:"event_count"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Config        ConfigJSON      `json:"config"`
}

// LastEventJSON describes the most recent shutter event.
type LastEventJSON struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip                 string `json:"chip"`
	DebounceMs           int64  `json:"debounce_ms"`
	HeartbeatMs          int64  `json:"heartbeat_ms"`
	Broker               string `json:"broker"`
	HTTPAddr             string `json:"http_addr"`
	SettleMs             int64  `json:"settle_ms"`
	OvertravelMs         int64  `json:"overtravel_ms"`
	CalibrationTimeoutMs int64  `json:"calibration_timeout_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	sh := snap.Shutter
	inner := StatusInner{
		Name:          snap.Config.Name,
		Motor:         sh.Motor.String(),
		Calibrating:   sh.Calibrating,
		Lines:         make(map[string]bool, len(gpio.Lines)),
		EventCount:    snap.EventCount,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Chip:                 snap.Config.Chip,
			DebounceMs:           snap.Config.DebounceMs,
			HeartbeatMs:          snap.Config.HeartbeatMs,
			Broker:               snap.Config.Broker,
			HTTPAddr:             snap.Config.HTTPAddr,
			SettleMs:             snap.Config.Timing.Settle.Milliseconds(),
			OvertravelMs:         snap.Config.Timing.Overtravel.Milliseconds(),
			CalibrationTimeoutMs: snap.Config.Timing.CalibrationTimeout.Milliseconds(),
		},
	}
	if pct, ok := sh.Position.Percent(); ok {
		inner.Position = &pct
	}
	if d, ok := sh.TravelTime(); ok {
		s := d.Seconds()
		inner.TravelSeconds = &s
	}
	for _, line := range gpio.Lines {
		inner.Lines[line.String()] = sh.Levels[line]
	}
	if snap.LastEvent != nil {
		inner.LastEvent = &LastEventJSON{
			Type:      string(snap.LastEvent.Type),
			Timestamp: snap.LastEvent.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
