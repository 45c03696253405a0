// Package status provides a thread-safe status tracker for the
// gate-controller daemon. It is read by the heartbeat and -print-state.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gate-controller/internal/logic"
)

// NetworkInfo contains host network state. This is a local copy to avoid
// importing the daemon's environment parsing from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend     string
	Chip        string
	Display     string
	Broker      string
	HeartbeatMs int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Gate          logic.View
	Started       bool // at least one state entered
	Last          logic.Event
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the gate view.
func (t *Tracker) Update(v logic.View) {
	t.mu.Lock()
	t.snap.Gate = v
	t.mu.Unlock()
}

// Record notes a state entry: it becomes the last event and is counted.
func (t *Tracker) Record(ev logic.Event) {
	t.mu.Lock()
	t.snap.Started = true
	t.snap.Last = ev
	t.snap.Counts.Add(ev)
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
