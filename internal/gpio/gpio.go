// Package gpio provides the gate's sensor and actuator lines with hardware
// abstraction. The real implementations use the Linux GPIO character
// device (default) or memory-mapped Raspberry Pi registers.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/gate-controller/internal/logic"
)

// Port reads the five sensor lines and drives the four actuator lines.
// Sample and Drive never block on anything but the hardware access itself.
// Any error they return is a hardware failure.
type Port interface {
	// Sample returns the current level of every sensor line.
	Sample() (logic.Inputs, error)

	// Drive applies the given actuator levels.
	Drive(out logic.Outputs) error

	// Close drives all outputs low and releases GPIO resources.
	Close() error
}

// Backend names accepted in Config.Backend.
const (
	BackendCdev = "gpiocdev"
	BackendRPIO = "rpio"
)

// ErrNotSupported is returned by hardware backends on platforms without GPIO.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// ErrPinConflict is returned when two signals share one line.
var ErrPinConflict = errors.New("gpio: pin assigned twice")

// Config selects the backend and maps each signal to a line offset
// (BCM numbering on a Raspberry Pi).
type Config struct {
	Backend string     `yaml:"backend"` // "gpiocdev" (default) or "rpio"
	Chip    string     `yaml:"chip"`    // character device, gpiocdev only
	Inputs  InputPins  `yaml:"inputs"`
	Outputs OutputPins `yaml:"outputs"`
}

// InputPins maps sensor signals to line offsets.
type InputPins struct {
	LimitOpen   int `yaml:"limit_open"`
	LimitClosed int `yaml:"limit_closed"`
	CmdOpen     int `yaml:"cmd_open"`
	CmdClosed   int `yaml:"cmd_closed"`
	Obstruction int `yaml:"obstruction"`
}

// OutputPins maps actuator signals to line offsets.
type OutputPins struct {
	MotorOpen    int `yaml:"motor_open"`
	MotorClosed  int `yaml:"motor_closed"`
	LEDMoving    int `yaml:"led_moving"`
	LEDEmergency int `yaml:"led_emergency"`
}

// Default pin assignment, matching the controller board wiring.
const (
	DefaultChip = "gpiochip0"

	DefaultPinLimitOpen   = 12
	DefaultPinLimitClosed = 13
	DefaultPinObstruction = 14
	DefaultPinCmdClosed   = 27
	DefaultPinCmdOpen     = 26

	DefaultPinLEDMoving    = 4
	DefaultPinLEDEmergency = 16
	DefaultPinMotorClosed  = 17
	DefaultPinMotorOpen    = 5
)

// DefaultConfig returns the default backend and pin assignment.
func DefaultConfig() Config {
	return Config{
		Backend: BackendCdev,
		Chip:    DefaultChip,
		Inputs: InputPins{
			LimitOpen:   DefaultPinLimitOpen,
			LimitClosed: DefaultPinLimitClosed,
			CmdOpen:     DefaultPinCmdOpen,
			CmdClosed:   DefaultPinCmdClosed,
			Obstruction: DefaultPinObstruction,
		},
		Outputs: OutputPins{
			MotorOpen:    DefaultPinMotorOpen,
			MotorClosed:  DefaultPinMotorClosed,
			LEDMoving:    DefaultPinLEDMoving,
			LEDEmergency: DefaultPinLEDEmergency,
		},
	}
}

// Offsets returns the input lines in the order used by inputsFromValues.
func (p InputPins) Offsets() []int {
	return []int{p.LimitOpen, p.LimitClosed, p.CmdOpen, p.CmdClosed, p.Obstruction}
}

// Offsets returns the output lines in the order used by outputValues.
func (p OutputPins) Offsets() []int {
	return []int{p.MotorOpen, p.MotorClosed, p.LEDMoving, p.LEDEmergency}
}

// Validate checks the backend name and that no line is used twice.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendCdev, BackendRPIO:
	default:
		return fmt.Errorf("gpio: unknown backend %q", c.Backend)
	}

	names := []string{
		"limit_open", "limit_closed", "cmd_open", "cmd_closed", "obstruction",
		"motor_open", "motor_closed", "led_moving", "led_emergency",
	}
	seen := make(map[int]string)
	for i, off := range append(c.Inputs.Offsets(), c.Outputs.Offsets()...) {
		if off < 0 {
			return fmt.Errorf("gpio: %s: negative line offset %d", names[i], off)
		}
		if prev, ok := seen[off]; ok {
			return fmt.Errorf("%w: line %d used by %s and %s", ErrPinConflict, off, prev, names[i])
		}
		seen[off] = names[i]
	}
	return nil
}

// Open creates the Port selected by cfg.Backend.
func Open(cfg Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendRPIO:
		p, err := NewRPIOPort(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		p, err := NewCdevPort(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// inputsFromValues converts raw levels, ordered as InputPins.Offsets, into Inputs.
// Sensors are active-high.
func inputsFromValues(v []int) logic.Inputs {
	return logic.Inputs{
		LimitOpen:   v[0] != 0,
		LimitClosed: v[1] != 0,
		CmdOpen:     v[2] != 0,
		CmdClosed:   v[3] != 0,
		Obstruction: v[4] != 0,
	}
}

// outputValues converts Outputs into raw levels ordered as OutputPins.Offsets.
func outputValues(out logic.Outputs) []int {
	return []int{level(out.MotorOpen), level(out.MotorClosed), level(out.LEDMoving), level(out.LEDEmergency)}
}

func level(b bool) int {
	if b {
		return 1
	}
	return 0
}
