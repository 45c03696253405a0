// Package mqtt publishes gate telemetry, with an abstraction for testing.
// Telemetry is optional: the gate runs the same with no broker configured.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gate-controller/internal/logic"
)

// TopicEvents is the MQTT topic for state transitions.
const TopicEvents = "gate/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "gate/controller/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a state transition to the broker.
	// Returns error if publishing fails (should not stop the gate).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // "SIGTERM", "SIGINT", "HARDWARE" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message for a state transition.
type Payload struct {
	Gate GatePayload `json:"gate"`
}

// GatePayload contains the transition details.
type GatePayload struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a state transition.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Gate: GatePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			From:      event.From.String(),
			State:     event.To.String(),
			Reason:    string(event.Reason),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message for simple system events (LWT,
// RECONNECTED, SHUTDOWN) that carry no status snapshot.
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
// If event.RawPayload is set, it is returned directly.
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

// Discard is the Publisher used when no broker is configured.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(logic.Event) error { return nil }

// PublishSystem implements Publisher.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// Close implements Publisher.
func (Discard) Close() error { return nil }

// IsConnected is always false.
func (Discard) IsConnected() bool { return false }
