package display

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultLCDAddr is the usual address of a PCF8574 LCD backpack.
const DefaultLCDAddr = 0x27

// PCF8574 bit assignment on the common HD44780 backpack.
const (
	lcdRS        = 0x01
	lcdEnable    = 0x04
	lcdBacklight = 0x08
)

// HD44780 commands.
const (
	cmdClear       = 0x01
	cmdEntryMode   = 0x06 // increment, no shift
	cmdDisplayOff  = 0x08
	cmdDisplayOn   = 0x0C // display on, cursor off, blink off
	cmdFunctionSet = 0x28 // 4-bit bus, 2 lines, 5x8 font
	cmdSetDDRAM    = 0x80
	row2Offset     = 0x40
)

// LCD drives an HD44780 character display in 4-bit mode through a
// PCF8574 I2C expander.
type LCD struct {
	dev   *i2c.Dev
	bus   i2c.BusCloser // nil when the bus is owned by the caller
	sleep func(time.Duration)
}

// OpenLCD initialises periph, opens the named I2C bus ("" = first
// available) and resets the display at addr.
func OpenLCD(busName string, addr uint16) (*LCD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	l, err := NewLCD(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	l.bus = bus
	return l, nil
}

// NewLCD resets the display at addr on an already opened bus.
func NewLCD(bus i2c.Bus, addr uint16) (*LCD, error) {
	return newLCD(bus, addr, time.Sleep)
}

func newLCD(bus i2c.Bus, addr uint16, sleep func(time.Duration)) (*LCD, error) {
	if addr == 0 {
		addr = DefaultLCDAddr
	}
	l := &LCD{
		dev:   &i2c.Dev{Bus: bus, Addr: addr},
		sleep: sleep,
	}
	if err := l.reset(); err != nil {
		return nil, fmt.Errorf("lcd reset at 0x%02x: %w", addr, err)
	}
	return l, nil
}

// reset runs the HD44780 4-bit initialisation sequence.
func (l *LCD) reset() error {
	l.sleep(50 * time.Millisecond)

	// Three 8-bit function sets, then switch to 4-bit.
	for _, d := range []time.Duration{5 * time.Millisecond, time.Millisecond, time.Millisecond} {
		if err := l.writeNibble(0x03, 0); err != nil {
			return err
		}
		l.sleep(d)
	}
	if err := l.writeNibble(0x02, 0); err != nil {
		return err
	}
	l.sleep(time.Millisecond)

	for _, c := range []byte{cmdFunctionSet, cmdDisplayOff, cmdClear, cmdEntryMode, cmdDisplayOn} {
		if err := l.command(c); err != nil {
			return err
		}
	}
	return nil
}

// Show implements Sink.Show.
func (l *LCD) Show(line1, line2 string) error {
	if err := l.command(cmdClear); err != nil {
		return fmt.Errorf("lcd clear: %w", err)
	}
	if err := l.command(cmdSetDDRAM); err != nil {
		return fmt.Errorf("lcd cursor: %w", err)
	}
	if err := l.text(fit(line1)); err != nil {
		return fmt.Errorf("lcd line 1: %w", err)
	}
	if err := l.command(cmdSetDDRAM | row2Offset); err != nil {
		return fmt.Errorf("lcd cursor: %w", err)
	}
	if err := l.text(fit(line2)); err != nil {
		return fmt.Errorf("lcd line 2: %w", err)
	}
	return nil
}

// Close releases the bus if OpenLCD opened it. The last frame stays on
// the glass with the backlight on.
func (l *LCD) Close() error {
	if l.bus != nil {
		return l.bus.Close()
	}
	return nil
}

func (l *LCD) command(c byte) error {
	if err := l.write(c, 0); err != nil {
		return err
	}
	if c == cmdClear {
		l.sleep(2 * time.Millisecond)
	}
	return nil
}

func (l *LCD) text(s string) error {
	for i := 0; i < len(s); i++ {
		if err := l.write(s[i], lcdRS); err != nil {
			return err
		}
	}
	return nil
}

// write sends one byte as two nibbles, high nibble first.
func (l *LCD) write(b, mode byte) error {
	if err := l.writeNibble(b>>4, mode); err != nil {
		return err
	}
	return l.writeNibble(b&0x0F, mode)
}

// writeNibble puts n on D4-D7 and strobes Enable.
func (l *LCD) writeNibble(n, mode byte) error {
	data := n<<4 | mode | lcdBacklight
	return l.dev.Tx([]byte{data | lcdEnable, data}, nil)
}
