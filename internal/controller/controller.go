// Package controller runs the gate: a periodic ticker that samples the
// sensors and advances the timeout counter, and a control loop that feeds
// those snapshots through the transition function and drives the outputs.
//
// Ownership: the ticker is the only writer of the inputs snapshot and the
// counter; the control loop is the only writer of the outputs snapshot and
// the state variables. Each snapshot is published atomically, so a reader
// never sees a torn mix of old and new bits.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/gate-controller/internal/display"
	"github.com/sweeney/gate-controller/internal/gpio"
	"github.com/sweeney/gate-controller/internal/logic"
)

// DefaultEventBuffer is the capacity of the Events channel.
const DefaultEventBuffer = 32

// Options tweaks a Controller. The zero value runs in real time.
type Options struct {
	// Sleep implements the control loop's bounded delays. Defaults to time.Sleep.
	Sleep func(time.Duration)

	// Now timestamps events. Defaults to time.Now.
	Now func() time.Time

	// Ticks drives the periodic ticker. Defaults to a logic.TickPeriod ticker.
	Ticks <-chan time.Time

	// EventBuffer sizes the Events channel. Defaults to DefaultEventBuffer.
	EventBuffer int
}

// Controller owns the gate state machine and its shared snapshots.
type Controller struct {
	port  gpio.Port
	sink  display.Sink
	sleep func(time.Duration)
	now   func() time.Time
	ticks <-chan time.Time

	// Published snapshots.
	inputs   atomic.Pointer[logic.Inputs]
	outputs  atomic.Pointer[logic.Outputs]
	counter  atomic.Uint32
	current  atomic.Uint32
	previous atomic.Uint32

	// Control loop only.
	machine logic.Machine
	pending bool
	reason  logic.Reason

	events chan logic.Event
	errs   chan error
}

// New creates a Controller about to enter Init. It does not touch the
// hardware until Run or Tick is called.
func New(port gpio.Port, sink display.Sink, opts Options) *Controller {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if sink == nil {
		sink = display.Discard{}
	}

	c := &Controller{
		port:    port,
		sink:    sink,
		sleep:   opts.Sleep,
		now:     opts.Now,
		ticks:   opts.Ticks,
		machine: logic.NewMachine(),
		pending: true,
		reason:  logic.ReasonStartup,
		events:  make(chan logic.Event, opts.EventBuffer),
		errs:    make(chan error, 1),
	}
	c.inputs.Store(&logic.Inputs{})
	c.outputs.Store(&logic.Outputs{})
	return c
}

// Events delivers one event per state entry. It is closed when Run returns.
// Events are dropped, with a log line, if the consumer falls behind: the
// control loop never waits on it.
func (c *Controller) Events() <-chan logic.Event {
	return c.events
}

// Inputs returns the latest published sensor snapshot.
func (c *Controller) Inputs() logic.Inputs {
	return *c.inputs.Load()
}

// Outputs returns the latest published actuator snapshot.
func (c *Controller) Outputs() logic.Outputs {
	return *c.outputs.Load()
}

// Counter returns the latest published timeout counter.
func (c *Controller) Counter() logic.TimeoutCounter {
	return logic.TimeoutCounter(c.counter.Load())
}

// State returns the state the control loop last entered.
func (c *Controller) State() logic.State {
	return logic.State(c.current.Load())
}

// View assembles the published snapshots. Each field is consistent on its
// own; fields may come from neighbouring ticks.
func (c *Controller) View() logic.View {
	return logic.View{
		State:    c.State(),
		Previous: logic.State(c.previous.Load()),
		Inputs:   c.Inputs(),
		Outputs:  c.Outputs(),
		Counter:  c.Counter(),
	}
}

// Tick is one firing of the periodic ticker: it samples the sensors into
// the inputs snapshot and advances the timeout counter from the current
// state and that sample. It never changes state.
func (c *Controller) Tick() error {
	in, err := c.port.Sample()
	if err != nil {
		return fmt.Errorf("sample inputs: %w", err)
	}
	c.inputs.Store(&in)

	cnt := c.Counter().Tick(logic.IsMotion(c.State()), in.CommandAsserted())
	c.counter.Store(uint32(cnt))
	return nil
}

// Run primes the inputs snapshot, starts the ticker and runs the control
// loop until ctx is cancelled or the hardware fails. Cancellation is seen
// between iterations; a delay already entered always completes. On the way
// out all outputs are driven low. The caller still owns port and sink.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.events)

	// One synchronous sample so the first Idle evaluation sees real
	// sensor levels rather than the all-false zero snapshot.
	if err := c.Tick(); err != nil {
		return err
	}

	ticks := c.ticks
	if ticks == nil {
		t := time.NewTicker(logic.TickPeriod)
		defer t.Stop()
		ticks = t.C
	}

	tickCtx, stopTicker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runTicker(tickCtx, ticks)
	}()
	defer wg.Wait()
	defer stopTicker()

	for {
		select {
		case err := <-c.errs:
			c.stop()
			return err
		case <-ctx.Done():
			log.Printf("controller: stopping in %s", c.machine.Current)
			if err := c.stop(); err != nil {
				return err
			}
			return nil
		default:
		}

		if err := c.Iterate(); err != nil {
			c.stop()
			return err
		}
	}
}

func (c *Controller) runTicker(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if err := c.Tick(); err != nil {
				select {
				case c.errs <- err:
				default:
				}
				return
			}
		}
	}
}

// Iterate runs one pass of the control loop: the entry actions of a
// pending state, one evaluation of the transition function against the
// published snapshots, and the poll delay if the machine stays put.
// A state change is entered on the next call without waiting, except a
// reversal between Opening and Closing, which waits one poll first.
func (c *Controller) Iterate() error {
	if c.pending {
		if err := c.enter(); err != nil {
			return err
		}
	}

	cur := c.machine.Current
	t := logic.Next(cur, c.machine.Previous, c.Inputs(), c.Counter())
	if t.To != cur {
		if logic.IsMotion(cur) && logic.IsMotion(t.To) {
			c.sleep(logic.PollDelay(cur))
		}
		c.machine.Next = t.To
		c.reason = t.Reason
		c.pending = true
		return nil
	}

	c.sleep(logic.PollDelay(cur))
	return nil
}

// enter performs the entry actions of machine.Next: record the previous
// state, publish the new one, drive its outputs, show its label and emit
// the event, then run its entry-time delays.
func (c *Controller) enter() error {
	from := c.machine.Current
	s := c.machine.Enter()
	c.pending = false

	if !s.Valid() {
		log.Printf("controller: unknown state %d, entering %s", s, logic.StateFault)
		c.machine.Current = from
		c.machine.Next = logic.StateFault
		c.reason = logic.ReasonUnknownState
		return c.enter()
	}

	c.previous.Store(uint32(c.machine.Previous))
	c.current.Store(uint32(s))

	if err := c.drive(logic.OutputsFor(s)); err != nil {
		return err
	}

	line1, line2 := logic.LabelFor(s)
	if err := c.sink.Show(line1, line2); err != nil {
		log.Printf("display error: %v", err)
	}

	ev := logic.Event{Timestamp: c.now(), From: from, To: s, Reason: c.reason}
	log.Printf("state: %s (from %s, reason %s)", s, from, reasonOrNone(c.reason))
	select {
	case c.events <- ev:
	default:
		log.Printf("controller: event buffer full, dropping %s", s)
	}

	switch s {
	case logic.StateFault:
		return c.blink()
	default:
		c.sleep(logic.EntryDelay(s))
	}
	return nil
}

// blink runs the single self-clearing Fault cycle: the entry pattern lit
// the emergency LED, it goes dark for one period and lights again.
func (c *Controller) blink() error {
	out := logic.OutputsFor(logic.StateFault)

	c.sleep(logic.FaultBlinkPeriod)
	out.LEDEmergency = false
	if err := c.drive(out); err != nil {
		return err
	}

	c.sleep(logic.FaultBlinkPeriod)
	out.LEDEmergency = true
	return c.drive(out)
}

// drive writes out to the hardware and publishes it.
func (c *Controller) drive(out logic.Outputs) error {
	if out.MotorOpen && out.MotorClosed {
		// Never produced by OutputsFor.
		return fmt.Errorf("refusing to drive both motor directions")
	}
	if err := c.port.Drive(out); err != nil {
		return fmt.Errorf("drive outputs: %w", err)
	}
	c.outputs.Store(&out)
	return nil
}

// stop drives everything low and shows the shutdown label.
func (c *Controller) stop() error {
	if err := c.drive(logic.Outputs{}); err != nil {
		return err
	}
	if err := c.sink.Show("APAGADO", ""); err != nil {
		log.Printf("display error: %v", err)
	}
	return nil
}

func reasonOrNone(r logic.Reason) string {
	if r == logic.ReasonNone {
		return "none"
	}
	return string(r)
}
