//go:build !linux

package gpio

import "github.com/sweeney/gate-controller/internal/logic"

// CdevPort is not available on non-Linux platforms.
type CdevPort struct{}

// NewCdevPort returns ErrNotSupported on non-Linux platforms.
func NewCdevPort(cfg Config) (*CdevPort, error) {
	return nil, ErrNotSupported
}

// Sample is not implemented on non-Linux platforms.
func (p *CdevPort) Sample() (logic.Inputs, error) {
	return logic.Inputs{}, ErrNotSupported
}

// Drive is not implemented on non-Linux platforms.
func (p *CdevPort) Drive(out logic.Outputs) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (p *CdevPort) Close() error {
	return nil
}

// RPIOPort is not available on non-Linux platforms.
type RPIOPort struct{}

// NewRPIOPort returns ErrNotSupported on non-Linux platforms.
func NewRPIOPort(cfg Config) (*RPIOPort, error) {
	return nil, ErrNotSupported
}

// Sample is not implemented on non-Linux platforms.
func (p *RPIOPort) Sample() (logic.Inputs, error) {
	return logic.Inputs{}, ErrNotSupported
}

// Drive is not implemented on non-Linux platforms.
func (p *RPIOPort) Drive(out logic.Outputs) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (p *RPIOPort) Close() error {
	return nil
}
