// Package logic contains the pure decision logic of the gate controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, goroutines
// or time.Sleep). Callers sample inputs, hand them in, and act on the
// returned state and outputs.
package logic

import "time"

// Timing and threshold constants. They are fixed at build time.
const (
	TickPeriod             = 50 * time.Millisecond   // Periodic ticker firing interval
	PollPeriod             = 10 * time.Millisecond   // Control loop poll while polling a state
	EmergencyRecheckPeriod = 1500 * time.Millisecond // Obstruction recheck cadence in Emergency
	FaultBlinkPeriod       = 500 * time.Millisecond  // Emergency LED toggle spacing in Fault

	// TimeoutThreshold is the number of ticks a motion may last before it
	// is considered stuck (3600 * 50ms = 180s).
	TimeoutThreshold = 3600
)

// State is a gate state machine state.
type State uint8

const (
	StateInit State = iota
	StateOpening
	StateClosing
	StateClosed
	StateOpen
	StateEmergency
	StateFault
	StateIdle
)

var stateNames = [...]string{
	StateInit:      "INIT",
	StateOpening:   "OPENING",
	StateClosing:   "CLOSING",
	StateClosed:    "CLOSED",
	StateOpen:      "OPEN",
	StateEmergency: "EMERGENCY",
	StateFault:     "FAULT",
	StateIdle:      "IDLE",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// IsMotion reports whether s drives the motor. Only motion states advance
// the timeout counter.
func IsMotion(s State) bool {
	return s == StateOpening || s == StateClosing
}

// Inputs is one sample of the five sensor lines. All levels are active-high.
type Inputs struct {
	LimitOpen   bool // gate reached the open end-stop
	LimitClosed bool // gate reached the closed end-stop
	CmdOpen     bool // external open command
	CmdClosed   bool // external close command
	Obstruction bool // photocell / safety barrier interrupted
}

// Contradiction reports whether both end-stops are asserted at once.
func (in Inputs) Contradiction() bool {
	return in.LimitOpen && in.LimitClosed
}

// CommandAsserted reports whether either direction command is asserted.
func (in Inputs) CommandAsserted() bool {
	return in.CmdOpen || in.CmdClosed
}

// Outputs is the level of the four actuator lines.
// MotorOpen and MotorClosed are never both true.
type Outputs struct {
	MotorOpen    bool
	MotorClosed  bool
	LEDMoving    bool
	LEDEmergency bool
}

// Reason explains why a transition was taken.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonStartup            Reason = "startup"
	ReasonContradiction      Reason = "contradiction"
	ReasonLimitOpen          Reason = "limit_open"
	ReasonLimitClosed        Reason = "limit_closed"
	ReasonObstruction        Reason = "obstruction"
	ReasonObstructionCleared Reason = "obstruction_cleared"
	ReasonCmdOpen            Reason = "cmd_open"
	ReasonCmdClosed          Reason = "cmd_closed"
	ReasonTimeout            Reason = "timeout"
	ReasonIdleDefault        Reason = "idle_default"
	ReasonEntryOnly          Reason = "entry_only"
	ReasonBlinkDone          Reason = "blink_done"
	ReasonUnknownState       Reason = "unknown_state"
)

// Transition is the result of evaluating the transition function once.
// To equals the evaluated state when the machine stays put.
type Transition struct {
	To     State
	Reason Reason
}

// Event records a state entry, to be logged and published.
type Event struct {
	Timestamp time.Time
	From      State
	To        State
	Reason    Reason
}

// EventCounts tracks how often each notable state was entered since startup.
type EventCounts struct {
	Opening   int
	Closing   int
	Opened    int
	Closed    int
	Emergency int
	Fault     int
}

// Add counts the state entered by e.
func (c *EventCounts) Add(e Event) {
	switch e.To {
	case StateOpening:
		c.Opening++
	case StateClosing:
		c.Closing++
	case StateOpen:
		c.Opened++
	case StateClosed:
		c.Closed++
	case StateEmergency:
		c.Emergency++
	case StateFault:
		c.Fault++
	}
}

// View is a point-in-time view of the running gate, assembled from the
// controller's published snapshots.
type View struct {
	State    State
	Previous State
	Inputs   Inputs
	Outputs  Outputs
	Counter  TimeoutCounter
}
