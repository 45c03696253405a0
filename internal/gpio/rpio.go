//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/sweeney/gate-controller/internal/logic"
)

// rpio maps a single process-wide register window.
var rpioMu sync.Mutex

// RPIOPort drives the gate through memory-mapped Raspberry Pi GPIO registers.
type RPIOPort struct {
	inputs  []rpio.Pin
	outputs []rpio.Pin
}

// NewRPIOPort maps /dev/gpiomem and configures the lines described by cfg.
func NewRPIOPort(cfg Config) (*RPIOPort, error) {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w", err)
	}

	p := &RPIOPort{}
	for _, off := range cfg.Inputs.Offsets() {
		pin := rpio.Pin(off)
		pin.Input()
		pin.PullDown()
		p.inputs = append(p.inputs, pin)
	}
	for _, off := range cfg.Outputs.Offsets() {
		pin := rpio.Pin(off)
		pin.Output()
		pin.Low()
		p.outputs = append(p.outputs, pin)
	}
	return p, nil
}

// Sample reads all five sensor lines.
func (p *RPIOPort) Sample() (logic.Inputs, error) {
	values := make([]int, len(p.inputs))
	for i, pin := range p.inputs {
		values[i] = int(pin.Read())
	}
	return inputsFromValues(values), nil
}

// Drive sets all four actuator lines.
func (p *RPIOPort) Drive(out logic.Outputs) error {
	for i, v := range outputValues(out) {
		p.outputs[i].Write(rpio.State(v))
	}
	return nil
}

// Close stops the motor, returns the outputs to pulled-down inputs and
// unmaps the registers.
func (p *RPIOPort) Close() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	for _, pin := range p.outputs {
		pin.Low()
		pin.Input()
		pin.PullDown()
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close rpio: %w", err)
	}
	return nil
}
