package logic

import "testing"

var allStates = []State{
	StateInit, StateOpening, StateClosing, StateClosed,
	StateOpen, StateEmergency, StateFault, StateIdle,
}

// allInputs enumerates every combination of the five sensor lines.
func allInputs() []Inputs {
	var out []Inputs
	for bits := 0; bits < 32; bits++ {
		out = append(out, Inputs{
			LimitOpen:   bits&1 != 0,
			LimitClosed: bits&2 != 0,
			CmdOpen:     bits&4 != 0,
			CmdClosed:   bits&8 != 0,
			Obstruction: bits&16 != 0,
		})
	}
	return out
}

func TestNewMachine(t *testing.T) {
	m := NewMachine()
	if m.Current != StateInit || m.Previous != StateInit || m.Next != StateInit {
		t.Errorf("expected all INIT, got %+v", m)
	}
}

func TestMachineEnterRecordsPrevious(t *testing.T) {
	m := NewMachine()
	m.Enter()

	m.Next = StateOpening
	if got := m.Enter(); got != StateOpening {
		t.Fatalf("expected OPENING, got %s", got)
	}
	m.Next = StateEmergency
	m.Enter()

	if m.Current != StateEmergency {
		t.Errorf("expected current EMERGENCY, got %s", m.Current)
	}
	if m.Previous != StateOpening {
		t.Errorf("expected previous OPENING, got %s", m.Previous)
	}
}

func TestTransitionTable(t *testing.T) {
	timedOut := TimeoutCounter(TimeoutThreshold)

	tests := []struct {
		name     string
		state    State
		previous State
		in       Inputs
		counter  TimeoutCounter
		want     State
		reason   Reason
	}{
		{"init always idles", StateInit, StateInit, Inputs{CmdOpen: true}, 0, StateIdle, ReasonStartup},

		{"idle no signals closes", StateIdle, StateInit, Inputs{}, 0, StateClosing, ReasonIdleDefault},
		{"idle open command", StateIdle, StateClosed, Inputs{LimitClosed: true, CmdOpen: true}, 0, StateOpening, ReasonCmdOpen},
		{"idle close command", StateIdle, StateOpen, Inputs{LimitOpen: true, CmdClosed: true}, 0, StateClosing, ReasonCmdClosed},
		{"idle open command blocked", StateIdle, StateClosed, Inputs{LimitClosed: true, CmdOpen: true, Obstruction: true}, 0, StateFault, ReasonObstruction},
		{"idle obstruction at end-stop", StateIdle, StateOpen, Inputs{LimitOpen: true, Obstruction: true}, 0, StateFault, ReasonObstruction},
		{"idle obstruction mid travel waits", StateIdle, StateInit, Inputs{Obstruction: true}, 0, StateIdle, ReasonNone},
		{"idle rests closed", StateIdle, StateClosed, Inputs{LimitClosed: true}, 0, StateIdle, ReasonNone},
		{"idle rests open", StateIdle, StateOpen, Inputs{LimitOpen: true}, 0, StateIdle, ReasonNone},
		{"idle contradiction beats command", StateIdle, StateInit, Inputs{LimitOpen: true, LimitClosed: true, CmdOpen: true}, 0, StateFault, ReasonContradiction},

		{"opening reaches end-stop", StateOpening, StateIdle, Inputs{LimitOpen: true}, 0, StateOpen, ReasonLimitOpen},
		{"opening contradiction", StateOpening, StateIdle, Inputs{LimitOpen: true, LimitClosed: true}, 0, StateFault, ReasonContradiction},
		{"opening obstruction", StateOpening, StateIdle, Inputs{Obstruction: true}, 0, StateEmergency, ReasonObstruction},
		{"opening obstruction beats reverse", StateOpening, StateIdle, Inputs{Obstruction: true, CmdClosed: true}, 0, StateEmergency, ReasonObstruction},
		{"opening reversed", StateOpening, StateIdle, Inputs{CmdClosed: true}, 0, StateClosing, ReasonCmdClosed},
		{"opening timeout", StateOpening, StateIdle, Inputs{}, timedOut, StateFault, ReasonTimeout},
		{"opening keeps going", StateOpening, StateIdle, Inputs{CmdOpen: true}, TimeoutThreshold - 1, StateOpening, ReasonNone},
		{"opening ignores closed end-stop", StateOpening, StateIdle, Inputs{LimitClosed: true}, 0, StateOpening, ReasonNone},

		{"closing reaches end-stop", StateClosing, StateIdle, Inputs{LimitClosed: true}, 0, StateClosed, ReasonLimitClosed},
		{"closing contradiction", StateClosing, StateIdle, Inputs{LimitOpen: true, LimitClosed: true}, 0, StateFault, ReasonContradiction},
		{"closing obstruction", StateClosing, StateIdle, Inputs{Obstruction: true, CmdOpen: true}, 0, StateEmergency, ReasonObstruction},
		{"closing reversed", StateClosing, StateIdle, Inputs{CmdOpen: true}, 0, StateOpening, ReasonCmdOpen},
		{"closing timeout", StateClosing, StateIdle, Inputs{}, timedOut, StateFault, ReasonTimeout},
		{"closing keeps going", StateClosing, StateIdle, Inputs{LimitOpen: true}, 10, StateClosing, ReasonNone},

		{"closed falls through", StateClosed, StateClosing, Inputs{LimitClosed: true}, 0, StateIdle, ReasonEntryOnly},
		{"open falls through", StateOpen, StateOpening, Inputs{LimitOpen: true}, 0, StateIdle, ReasonEntryOnly},
		{"closed contradiction", StateClosed, StateClosing, Inputs{LimitOpen: true, LimitClosed: true}, 0, StateFault, ReasonContradiction},

		{"emergency holds", StateEmergency, StateOpening, Inputs{Obstruction: true}, 0, StateEmergency, ReasonNone},
		{"emergency resumes opening", StateEmergency, StateOpening, Inputs{}, 0, StateOpening, ReasonObstructionCleared},
		{"emergency resumes closing", StateEmergency, StateClosing, Inputs{CmdOpen: true}, 0, StateClosing, ReasonObstructionCleared},
		{"emergency without travel idles", StateEmergency, StateEmergency, Inputs{}, 0, StateIdle, ReasonObstructionCleared},
		{"emergency contradiction", StateEmergency, StateOpening, Inputs{LimitOpen: true, LimitClosed: true, Obstruction: true}, 0, StateFault, ReasonContradiction},

		{"fault clears after blink", StateFault, StateOpening, Inputs{}, 0, StateIdle, ReasonBlinkDone},
		{"fault clears with contradiction", StateFault, StateIdle, Inputs{LimitOpen: true, LimitClosed: true}, 0, StateIdle, ReasonBlinkDone},

		{"unknown state faults", State(42), StateIdle, Inputs{}, 0, StateFault, ReasonUnknownState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.state, tt.previous, tt.in, tt.counter)
			if got.To != tt.want {
				t.Errorf("Next(%s): expected %s, got %s", tt.state, tt.want, got.To)
			}
			if got.Reason != tt.reason {
				t.Errorf("Next(%s): expected reason %q, got %q", tt.state, tt.reason, got.Reason)
			}
			if step := Step(tt.state, tt.previous, tt.in, tt.counter); step != got.To {
				t.Errorf("Step disagrees with Next: %s vs %s", step, got.To)
			}
		})
	}
}

func TestContradictionAlwaysFaults(t *testing.T) {
	polled := []State{StateIdle, StateOpening, StateClosing, StateClosed, StateOpen, StateEmergency}

	for _, s := range polled {
		for _, in := range allInputs() {
			if !in.Contradiction() {
				continue
			}
			for _, c := range []TimeoutCounter{0, TimeoutThreshold} {
				if got := Step(s, StateOpening, in, c); got != StateFault {
					t.Errorf("%s with %+v: expected FAULT, got %s", s, in, got)
				}
			}
		}
	}
}

func TestMotorsNeverBothDriven(t *testing.T) {
	for _, s := range allStates {
		out := OutputsFor(s)
		if out.MotorOpen && out.MotorClosed {
			t.Errorf("%s drives both motor directions", s)
		}
	}

	// Every state reachable in one step must also respect the invariant.
	for _, s := range allStates {
		for _, in := range allInputs() {
			next := Step(s, StateClosing, in, TimeoutThreshold)
			out := OutputsFor(next)
			if out.MotorOpen && out.MotorClosed {
				t.Errorf("%s -> %s drives both motor directions", s, next)
			}
		}
	}
}

func TestOutputsFor(t *testing.T) {
	tests := []struct {
		state State
		want  Outputs
	}{
		{StateInit, Outputs{}},
		{StateIdle, Outputs{}},
		{StateOpening, Outputs{MotorOpen: true, LEDMoving: true}},
		{StateClosing, Outputs{MotorClosed: true, LEDMoving: true}},
		{StateOpen, Outputs{}},
		{StateClosed, Outputs{}},
		{StateEmergency, Outputs{LEDEmergency: true}},
		{StateFault, Outputs{LEDEmergency: true}},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := OutputsFor(tt.state); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		state        State
		line1, line2 string
	}{
		{StateInit, "INICIANDO", ""},
		{StateOpening, "ABRIENDO", "PUERTON"},
		{StateClosing, "CERRANDO", "PUERTON"},
		{StateClosed, "PUERTON", "CERRADO"},
		{StateOpen, "PUERTON", "ABIERTO"},
		{StateEmergency, "EMERGENCIA!!!", ""},
		{StateFault, "   ERROR!!!", "   ERROR!!!"},
		{StateIdle, "ESPERANDO", ""},
	}

	for _, tt := range tests {
		l1, l2 := LabelFor(tt.state)
		if l1 != tt.line1 || l2 != tt.line2 {
			t.Errorf("%s: expected (%q, %q), got (%q, %q)", tt.state, tt.line1, tt.line2, l1, l2)
		}
	}
}

func TestDelays(t *testing.T) {
	if PollDelay(StateOpening) != PollPeriod || PollDelay(StateClosing) != PollPeriod || PollDelay(StateIdle) != PollPeriod {
		t.Error("motion and idle states should poll at PollPeriod")
	}
	if PollDelay(StateEmergency) != EmergencyRecheckPeriod {
		t.Errorf("expected emergency poll %v, got %v", EmergencyRecheckPeriod, PollDelay(StateEmergency))
	}
	if PollDelay(StateClosed) != 0 || PollDelay(StateOpen) != 0 {
		t.Error("rest states must fall through without waiting")
	}
	if EntryDelay(StateEmergency) != EmergencyRecheckPeriod {
		t.Errorf("expected emergency entry delay %v, got %v", EmergencyRecheckPeriod, EntryDelay(StateEmergency))
	}
	for _, s := range allStates {
		if s != StateEmergency && EntryDelay(s) != 0 {
			t.Errorf("%s: unexpected entry delay %v", s, EntryDelay(s))
		}
	}
}

func TestStateString(t *testing.T) {
	if StateEmergency.String() != "EMERGENCY" {
		t.Errorf("expected EMERGENCY, got %s", StateEmergency)
	}
	if State(99).String() != "UNKNOWN" {
		t.Errorf("expected UNKNOWN, got %s", State(99))
	}
	if State(99).Valid() {
		t.Error("State(99) should not be valid")
	}
	for _, s := range allStates {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
}

func TestEventCountsAdd(t *testing.T) {
	var c EventCounts
	for _, s := range []State{StateOpening, StateOpening, StateEmergency, StateFault, StateIdle, StateOpen, StateClosed, StateClosing} {
		c.Add(Event{To: s})
	}

	want := EventCounts{Opening: 2, Closing: 1, Opened: 1, Closed: 1, Emergency: 1, Fault: 1}
	if c != want {
		t.Errorf("expected %+v, got %+v", want, c)
	}
}
