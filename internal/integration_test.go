package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/gate-controller/internal/controller"
	"github.com/sweeney/gate-controller/internal/display"
	"github.com/sweeney/gate-controller/internal/gpio"
	"github.com/sweeney/gate-controller/internal/logic"
	"github.com/sweeney/gate-controller/internal/mqtt"
	"github.com/sweeney/gate-controller/internal/status"
)

// rig wires the controller to fakes and forwards every event to the
// publisher and tracker, the way the daemon loop does.
type rig struct {
	t       *testing.T
	ctrl    *controller.Controller
	port    *gpio.FakePort
	sink    *display.Recorder
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	clock   time.Time
}

func newRig(t *testing.T, in logic.Inputs) *rig {
	r := &rig{
		t:       t,
		port:    gpio.NewFakePort(in),
		sink:    display.NewRecorder(),
		pub:     mqtt.NewFakePublisher(),
		clock:   time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC),
		tracker: status.NewTracker(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), status.Config{}),
	}
	r.ctrl = controller.New(r.port, r.sink, controller.Options{
		Sleep: func(d time.Duration) { r.clock = r.clock.Add(d) },
		Now:   func() time.Time { return r.clock },
	})
	r.tick()
	return r
}

func (r *rig) tick() {
	r.t.Helper()
	if err := r.ctrl.Tick(); err != nil {
		r.t.Fatalf("tick: %v", err)
	}
}

// set changes the sensor levels and lets one tick sample them.
func (r *rig) set(in logic.Inputs) {
	r.port.Set(in)
	r.tick()
}

// step runs n control loop iterations, forwarding events as they appear.
func (r *rig) step(n int) {
	r.t.Helper()
	for i := 0; i < n; i++ {
		if err := r.ctrl.Iterate(); err != nil {
			r.t.Fatalf("iterate: %v", err)
		}
		r.forward()
	}
}

func (r *rig) forward() {
	for {
		select {
		case ev := <-r.ctrl.Events():
			r.tracker.Record(ev)
			r.tracker.Update(r.ctrl.View())
			if err := r.pub.Publish(ev); err != nil {
				r.t.Logf("publish error: %v", err)
			}
		default:
			return
		}
	}
}

func (r *rig) states() []logic.State {
	var out []logic.State
	for _, ev := range r.pub.Events() {
		out = append(out, ev.To)
	}
	return out
}

func assertStates(t *testing.T, got []logic.State, want ...logic.State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("states: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states: got %v, want %v", got, want)
		}
	}
}

// TestIntegrationOpenCloseCycle drives a closed gate open, lets it settle,
// then closes it again.
func TestIntegrationOpenCloseCycle(t *testing.T) {
	r := newRig(t, logic.Inputs{LimitClosed: true})
	r.step(2) // Init, Idle

	// Button press, gate leaves the closed end-stop.
	r.set(logic.Inputs{LimitClosed: true, CmdOpen: true})
	r.step(2)
	r.set(logic.Inputs{})
	for i := 0; i < 99; i++ {
		r.tick()
	}
	r.step(1)
	if r.ctrl.Counter() != 100 {
		t.Errorf("expected 100 ticks counted while opening, got %d", r.ctrl.Counter())
	}

	// Open end-stop reached.
	r.set(logic.Inputs{LimitOpen: true})
	r.step(3) // decide Open, enter Open, enter Idle

	// Close command.
	r.set(logic.Inputs{LimitOpen: true, CmdClosed: true})
	r.step(2)
	r.set(logic.Inputs{})
	r.step(1)

	r.set(logic.Inputs{LimitClosed: true})
	r.step(3)

	assertStates(t, r.states(),
		logic.StateInit, logic.StateIdle,
		logic.StateOpening, logic.StateOpen, logic.StateIdle,
		logic.StateClosing, logic.StateClosed, logic.StateIdle,
	)

	if got := r.port.Last(); got != (logic.Outputs{}) {
		t.Errorf("expected all outputs low at rest, got %+v", got)
	}
	counts := r.tracker.Snapshot().Counts
	if counts.Opening != 1 || counts.Opened != 1 || counts.Closing != 1 || counts.Closed != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}

	var labels []string
	for _, f := range r.sink.Frames() {
		labels = append(labels, f.Line1+"/"+f.Line2)
	}
	want := []string{
		"INICIANDO/", "ESPERANDO/",
		"ABRIENDO/PUERTON", "PUERTON/ABIERTO", "ESPERANDO/",
		"CERRANDO/PUERTON", "PUERTON/CERRADO", "ESPERANDO/",
	}
	if len(labels) != len(want) {
		t.Fatalf("labels: got %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: got %q, want %q", i, labels[i], want[i])
		}
	}
}

// TestIntegrationMotorNeverBothDirections walks through every scripted
// scenario and checks no drive ever asserted both motor lines.
func TestIntegrationMotorNeverBothDirections(t *testing.T) {
	r := newRig(t, logic.Inputs{})
	scripts := []logic.Inputs{
		{},
		{CmdOpen: true},
		{Obstruction: true},
		{},
		{CmdClosed: true},
		{CmdOpen: true, CmdClosed: true},
		{LimitOpen: true, LimitClosed: true},
		{LimitOpen: true},
		{Obstruction: true, LimitOpen: true},
		{},
	}
	for _, in := range scripts {
		r.set(in)
		r.step(4)
	}

	for i, out := range r.port.Driven() {
		if out.MotorOpen && out.MotorClosed {
			t.Fatalf("drive %d asserted both motor directions: %+v", i, out)
		}
	}
}

// TestIntegrationObstructionDuringClose stops the gate, holds it while the
// photocell is blocked, and resumes closing once clear.
func TestIntegrationObstructionDuringClose(t *testing.T) {
	r := newRig(t, logic.Inputs{})
	r.step(3) // Init, Idle, Closing

	r.set(logic.Inputs{Obstruction: true})
	r.step(2)
	start := r.clock
	r.step(3)
	if r.ctrl.State() != logic.StateEmergency {
		t.Fatalf("expected EMERGENCY while blocked, got %s", r.ctrl.State())
	}
	if waited := r.clock.Sub(start); waited != 3*logic.EmergencyRecheckPeriod {
		t.Errorf("expected rechecks every %v, waited %v over 3 passes", logic.EmergencyRecheckPeriod, waited)
	}
	if got := r.port.Last(); got != (logic.Outputs{LEDEmergency: true}) {
		t.Errorf("expected motors off and emergency LED on, got %+v", got)
	}

	r.set(logic.Inputs{})
	r.step(2)

	assertStates(t, r.states(),
		logic.StateInit, logic.StateIdle, logic.StateClosing,
		logic.StateEmergency, logic.StateClosing,
	)

	var payload mqtt.Payload
	last := r.pub.Payloads()[len(r.pub.Payloads())-1]
	if err := json.Unmarshal(last, &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Gate.From != "EMERGENCY" || payload.Gate.State != "CLOSING" || payload.Gate.Reason != "obstruction_cleared" {
		t.Errorf("unexpected resume payload: %+v", payload.Gate)
	}
}

// TestIntegrationStuckMotorFaults times out a gate that never reaches an
// end-stop, blinks the fault, and retries closing.
func TestIntegrationStuckMotorFaults(t *testing.T) {
	r := newRig(t, logic.Inputs{})
	r.step(3)

	for i := 0; i < logic.TimeoutThreshold+10; i++ {
		r.tick()
	}
	if r.ctrl.Counter() != logic.TimeoutThreshold {
		t.Errorf("counter should saturate at %d, got %d", logic.TimeoutThreshold, r.ctrl.Counter())
	}

	r.step(3) // decide Fault, enter Fault with blink, enter Idle
	r.tick()  // at rest: counter resets
	r.step(2) // Idle default: Closing again

	assertStates(t, r.states(),
		logic.StateInit, logic.StateIdle, logic.StateClosing,
		logic.StateFault, logic.StateIdle, logic.StateClosing,
	)
	if r.tracker.Snapshot().Last.Reason != logic.ReasonIdleDefault {
		t.Errorf("unexpected last reason: %s", r.tracker.Snapshot().Last.Reason)
	}
	if r.ctrl.Counter() != 0 {
		t.Errorf("expected counter reset after fault, got %d", r.ctrl.Counter())
	}
}

// TestIntegrationPublishFailureDoesNotStopGate keeps operating with a
// broken telemetry link and a broken display.
func TestIntegrationPublishFailureDoesNotStopGate(t *testing.T) {
	r := newRig(t, logic.Inputs{LimitClosed: true})
	r.pub.SetErrors(errors.New("broker down"), nil)
	r.sink.Fail()

	r.step(2)
	r.set(logic.Inputs{LimitClosed: true, CmdOpen: true})
	r.step(2)

	if r.ctrl.State() != logic.StateOpening {
		t.Errorf("expected OPENING, got %s", r.ctrl.State())
	}
	if r.tracker.Snapshot().Counts.Opening != 1 {
		t.Error("tracker should still see the transition")
	}
}

// TestIntegrationStatusSnapshot checks the status JSON mid-travel.
func TestIntegrationStatusSnapshot(t *testing.T) {
	r := newRig(t, logic.Inputs{LimitClosed: true})
	r.step(2)
	r.set(logic.Inputs{LimitClosed: true, CmdOpen: true})
	r.step(2)
	r.set(logic.Inputs{})
	r.tracker.Update(r.ctrl.View())

	var parsed status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(r.tracker.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.State != "OPENING" || s.Previous != "IDLE" {
		t.Errorf("unexpected state: %s from %s", s.State, s.Previous)
	}
	if !s.Outputs.MotorOpen || !s.Outputs.LEDMoving || s.Outputs.MotorClosed {
		t.Errorf("unexpected outputs: %+v", s.Outputs)
	}
	if s.Counter != 1 {
		t.Errorf("expected counter 1, got %d", s.Counter)
	}
}
