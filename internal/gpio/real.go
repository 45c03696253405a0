//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/gate-controller/internal/logic"
)

const consumer = "gate-controller"

// CdevPort drives the gate through the Linux GPIO character device.
type CdevPort struct {
	inputs  *gpiocdev.Lines
	outputs *gpiocdev.Lines
}

// NewCdevPort requests the input and output lines described by cfg.
func NewCdevPort(cfg Config) (*CdevPort, error) {
	chip := cfg.Chip
	if chip == "" {
		chip = DefaultChip
	}

	// Pull-down keeps a disconnected sensor reading inactive.
	in, err := gpiocdev.RequestLines(chip, cfg.Inputs.Offsets(),
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request input lines on %s: %w", chip, err)
	}

	out, err := gpiocdev.RequestLines(chip, cfg.Outputs.Offsets(),
		gpiocdev.AsOutput(outputValues(logic.Outputs{})...),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("request output lines on %s: %w", chip, err)
	}

	return &CdevPort{inputs: in, outputs: out}, nil
}

// Sample reads all five sensor lines in one request.
func (p *CdevPort) Sample() (logic.Inputs, error) {
	values := make([]int, 5)
	if err := p.inputs.Values(values); err != nil {
		return logic.Inputs{}, fmt.Errorf("read input lines: %w", err)
	}
	return inputsFromValues(values), nil
}

// Drive sets all four actuator lines in one request.
func (p *CdevPort) Drive(out logic.Outputs) error {
	if err := p.outputs.SetValues(outputValues(out)); err != nil {
		return fmt.Errorf("set output lines: %w", err)
	}
	return nil
}

// Close stops the motor, then returns the output lines to inputs with
// pull-down (matching Pi boot defaults) before releasing them.
func (p *CdevPort) Close() error {
	var errs []error

	if p.outputs != nil {
		if err := p.outputs.SetValues(outputValues(logic.Outputs{})); err != nil {
			errs = append(errs, fmt.Errorf("stop outputs: %w", err))
		}
		if err := p.outputs.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure outputs: %w", err))
		}
		if err := p.outputs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close outputs: %w", err))
		}
	}
	if p.inputs != nil {
		if err := p.inputs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close inputs: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
