package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gate-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Previous      string       `json:"previous"`
	Ready         bool         `json:"ready"`
	Counter       uint32       `json:"timeout_counter"`
	Inputs        InputsJSON   `json:"inputs"`
	Outputs       OutputsJSON  `json:"outputs"`
	LastChange    *ChangeJSON  `json:"last_change,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// InputsJSON is the JSON representation of the sensor snapshot.
type InputsJSON struct {
	LimitOpen   bool `json:"limit_open"`
	LimitClosed bool `json:"limit_closed"`
	CmdOpen     bool `json:"cmd_open"`
	CmdClosed   bool `json:"cmd_closed"`
	Obstruction bool `json:"obstruction"`
}

// OutputsJSON is the JSON representation of the actuator snapshot.
type OutputsJSON struct {
	MotorOpen    bool `json:"motor_open"`
	MotorClosed  bool `json:"motor_closed"`
	LEDMoving    bool `json:"led_moving"`
	LEDEmergency bool `json:"led_emergency"`
}

// ChangeJSON describes the most recent state entry.
type ChangeJSON struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	Reason    string `json:"reason,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opening   int `json:"opening"`
	Closing   int `json:"closing"`
	Opened    int `json:"opened"`
	Closed    int `json:"closed"`
	Emergency int `json:"emergency"`
	Fault     int `json:"fault"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend     string `json:"backend"`
	Chip        string `json:"chip,omitempty"`
	Display     string `json:"display"`
	Broker      string `json:"broker"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	TickMs      int64  `json:"tick_ms"`
	PollMs      int64  `json:"poll_ms"`
	TimeoutTick int    `json:"timeout_ticks"`
}

func buildInner(snap Snapshot) StatusInner {
	g := snap.Gate
	inner := StatusInner{
		State:         g.State.String(),
		Previous:      g.Previous.String(),
		Ready:         snap.Started,
		Counter:       uint32(g.Counter),
		Inputs:        InputsJSON(g.Inputs),
		Outputs:       OutputsJSON(g.Outputs),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        CountsJSON(snap.Counts),
		Config: ConfigJSON{
			Backend:     snap.Config.Backend,
			Chip:        snap.Config.Chip,
			Display:     snap.Config.Display,
			Broker:      snap.Config.Broker,
			HeartbeatMs: snap.Config.HeartbeatMs,
			TickMs:      logic.TickPeriod.Milliseconds(),
			PollMs:      logic.PollPeriod.Milliseconds(),
			TimeoutTick: logic.TimeoutThreshold,
		},
	}
	if !snap.Started {
		inner.State = "UNKNOWN"
		inner.Previous = "UNKNOWN"
	} else {
		inner.LastChange = &ChangeJSON{
			Timestamp: snap.Last.Timestamp.UTC().Format(time.RFC3339),
			From:      snap.Last.From.String(),
			Reason:    string(snap.Last.Reason),
		}
	}
	if snap.Network != nil {
		n := NetworkJSON(*snap.Network)
		inner.Network = &n
	}
	return inner
}

// FormatJSON returns the indented JSON status for -print-state (no event/reason).
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
