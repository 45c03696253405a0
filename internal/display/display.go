// Package display renders the gate state on two-line character displays.
// The controller only needs Sink; the concrete sinks are chosen by config.
package display

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// Width is the number of characters per display row.
const Width = 16

// Sink shows two lines of text.
type Sink interface {
	// Show replaces the display content. Lines longer than Width are truncated.
	Show(line1, line2 string) error

	// Close releases the display.
	Close() error
}

// Sink type names accepted in Config.Type.
const (
	TypeLog    = "log"
	TypeLCD    = "lcd"
	TypeSerial = "serial"
)

// Config holds configuration for display sinks.
type Config struct {
	// Type is a comma separated list of sinks, e.g. "log,lcd".
	Type string `yaml:"type"`

	// I2C character LCD behind a PCF8574 backpack
	I2CBus  string `yaml:"i2c_bus"`  // empty = first bus found
	I2CAddr uint16 `yaml:"i2c_addr"` // 7-bit address

	// Serial character LCD
	SerialDevice string `yaml:"serial_device"`
	SerialBaud   int    `yaml:"serial_baud"`
}

// DefaultConfig logs the display content only.
func DefaultConfig() Config {
	return Config{
		Type:       TypeLog,
		I2CAddr:    DefaultLCDAddr,
		SerialBaud: 9600,
	}
}

// Types returns the configured sink names, trimmed, without empties.
func (c Config) Types() []string {
	var out []string
	for _, t := range strings.Split(c.Type, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate rejects unknown sink names and missing device settings.
func (c Config) Validate() error {
	for _, t := range c.Types() {
		switch t {
		case TypeLog, TypeLCD:
		case TypeSerial:
			if c.SerialDevice == "" {
				return errors.New("display: serial display needs serial_device")
			}
		default:
			return fmt.Errorf("display: unknown type %q", t)
		}
	}
	return nil
}

// Open creates the sinks named in cfg. Returns a Multi when more than one
// is configured and a Discard sink when none is.
func Open(cfg Config) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var sinks []Sink
	for _, t := range cfg.Types() {
		var (
			s   Sink
			err error
		)
		switch t {
		case TypeLog:
			s = NewLog()
		case TypeLCD:
			s, err = OpenLCD(cfg.I2CBus, cfg.I2CAddr)
		case TypeSerial:
			s, err = OpenSerialLCD(cfg.SerialDevice, cfg.SerialBaud)
		}
		if err != nil {
			for _, opened := range sinks {
				opened.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}

	switch len(sinks) {
	case 0:
		return Discard{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMulti(sinks...), nil
}

// fit truncates or pads s to exactly Width characters.
func fit(s string) string {
	if len(s) > Width {
		return s[:Width]
	}
	return s + strings.Repeat(" ", Width-len(s))
}

// Log writes the display content to the standard logger.
type Log struct{}

// NewLog creates a Log sink.
func NewLog() *Log {
	return &Log{}
}

// Show implements Sink.Show.
func (l *Log) Show(line1, line2 string) error {
	log.Printf("display: [%s] [%s]", strings.TrimSpace(line1), strings.TrimSpace(line2))
	return nil
}

// Close implements Sink.Close.
func (l *Log) Close() error {
	return nil
}

// Discard implements Sink but does nothing.
// Used when no display is configured.
type Discard struct{}

// Show implements Sink.Show.
func (Discard) Show(line1, line2 string) error { return nil }

// Close implements Sink.Close.
func (Discard) Close() error { return nil }

// Multi fans the content out to several sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks into one.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Show implements Sink.Show. Every sink is updated even if one fails.
func (m *Multi) Show(line1, line2 string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Show(line1, line2); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.Close.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
