package logic

import "time"

// Machine holds the state variables of the gate. Only the control loop
// mutates it.
type Machine struct {
	Current  State
	Previous State
	Next     State
}

// NewMachine returns a machine about to enter Init.
func NewMachine() Machine {
	return Machine{Current: StateInit, Previous: StateInit, Next: StateInit}
}

// Enter makes Next the current state, remembering the state it replaces.
// Emergency relies on Previous to know where to resume.
func (m *Machine) Enter() State {
	m.Previous = m.Current
	m.Current = m.Next
	return m.Current
}

// Step is the transition function: it returns the state to enter next,
// or s itself when the machine stays put.
func Step(s, previous State, in Inputs, c TimeoutCounter) State {
	return Next(s, previous, in, c).To
}

// Next evaluates the transition table for state s and reports why the
// chosen transition was taken. previous is only consulted by Emergency.
// A sensor contradiction wins over every other exit condition of a
// polled state.
func Next(s, previous State, in Inputs, c TimeoutCounter) Transition {
	switch s {
	case StateInit:
		return Transition{StateIdle, ReasonStartup}
	case StateIdle:
		return nextFromIdle(in)
	case StateOpening, StateClosing:
		return nextFromMotion(s, in, c)
	case StateClosed, StateOpen:
		if in.Contradiction() {
			return Transition{StateFault, ReasonContradiction}
		}
		return Transition{StateIdle, ReasonEntryOnly}
	case StateEmergency:
		return nextFromEmergency(previous, in)
	case StateFault:
		// One blink cycle, then Idle, even if the cause persists.
		return Transition{StateIdle, ReasonBlinkDone}
	default:
		return Transition{StateFault, ReasonUnknownState}
	}
}

func nextFromIdle(in Inputs) Transition {
	switch {
	case in.Contradiction():
		return Transition{StateFault, ReasonContradiction}
	case !in.LimitOpen && !in.LimitClosed && !in.Obstruction:
		// Gate somewhere between the end-stops with nothing in the way.
		return Transition{StateClosing, ReasonIdleDefault}
	case in.CmdOpen && !in.Obstruction:
		return Transition{StateOpening, ReasonCmdOpen}
	case in.CmdClosed && !in.Obstruction:
		return Transition{StateClosing, ReasonCmdClosed}
	case in.Obstruction && (in.LimitOpen || in.LimitClosed):
		return Transition{StateFault, ReasonObstruction}
	}
	return Transition{StateIdle, ReasonNone}
}

func nextFromMotion(s State, in Inputs, c TimeoutCounter) Transition {
	opening := s == StateOpening
	switch {
	case in.Contradiction():
		return Transition{StateFault, ReasonContradiction}
	case opening && in.LimitOpen:
		return Transition{StateOpen, ReasonLimitOpen}
	case !opening && in.LimitClosed:
		return Transition{StateClosed, ReasonLimitClosed}
	case in.Obstruction:
		return Transition{StateEmergency, ReasonObstruction}
	case opening && in.CmdClosed:
		return Transition{StateClosing, ReasonCmdClosed}
	case !opening && in.CmdOpen:
		return Transition{StateOpening, ReasonCmdOpen}
	case c.HasTimedOut():
		return Transition{StateFault, ReasonTimeout}
	}
	return Transition{s, ReasonNone}
}

func nextFromEmergency(previous State, in Inputs) Transition {
	switch {
	case in.Contradiction():
		return Transition{StateFault, ReasonContradiction}
	case in.Obstruction:
		return Transition{StateEmergency, ReasonNone}
	case !IsMotion(previous):
		// Emergency is only entered from a motion; anything else means
		// there is no travel to resume.
		return Transition{StateIdle, ReasonObstructionCleared}
	}
	return Transition{previous, ReasonObstructionCleared}
}

// OutputsFor returns the actuator levels issued on entry to s.
// Fault starts its blink cycle with the emergency LED lit.
func OutputsFor(s State) Outputs {
	switch s {
	case StateOpening:
		return Outputs{MotorOpen: true, LEDMoving: true}
	case StateClosing:
		return Outputs{MotorClosed: true, LEDMoving: true}
	case StateEmergency, StateFault:
		return Outputs{LEDEmergency: true}
	default:
		return Outputs{}
	}
}

// LabelFor returns the two display lines shown on entry to s.
func LabelFor(s State) (string, string) {
	switch s {
	case StateInit:
		return "INICIANDO", ""
	case StateOpening:
		return "ABRIENDO", "PUERTON"
	case StateClosing:
		return "CERRANDO", "PUERTON"
	case StateClosed:
		return "PUERTON", "CERRADO"
	case StateOpen:
		return "PUERTON", "ABIERTO"
	case StateEmergency:
		return "EMERGENCIA!!!", ""
	case StateFault:
		return "   ERROR!!!", "   ERROR!!!"
	case StateIdle:
		return "ESPERANDO", ""
	}
	return "DESCONOCIDO", ""
}

// PollDelay returns how long the control loop waits before evaluating s
// again when the previous evaluation kept the machine in s.
func PollDelay(s State) time.Duration {
	switch s {
	case StateIdle, StateOpening, StateClosing:
		return PollPeriod
	case StateEmergency:
		return EmergencyRecheckPeriod
	}
	return 0
}

// EntryDelay returns how long the control loop waits after entering s
// before its first evaluation. Emergency checks the obstruction only
// after a full recheck period.
func EntryDelay(s State) time.Duration {
	if s == StateEmergency {
		return EmergencyRecheckPeriod
	}
	return 0
}
