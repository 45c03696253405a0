package display

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// SerLCD command prefix and commands.
const (
	serialCommand   = 0xFE
	serialClear     = 0x01
	serialCursorRow = 0x80
)

// SerialLCD drives a serial character display speaking the SerLCD
// command set.
type SerialLCD struct {
	port   io.WriteCloser
	device string
}

// OpenSerialLCD opens the serial device at the given baud rate.
func OpenSerialLCD(device string, baud int) (*SerialLCD, error) {
	if baud == 0 {
		baud = 9600
	}
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	return &SerialLCD{port: port, device: device}, nil
}

// NewSerialLCD wraps an already open port.
func NewSerialLCD(port io.WriteCloser) *SerialLCD {
	return &SerialLCD{port: port}
}

// Show implements Sink.Show. The whole frame goes out in one write.
func (s *SerialLCD) Show(line1, line2 string) error {
	var buf bytes.Buffer
	buf.Write([]byte{serialCommand, serialClear})
	buf.Write([]byte{serialCommand, serialCursorRow})
	buf.WriteString(fit(line1))
	buf.Write([]byte{serialCommand, serialCursorRow | row2Offset})
	buf.WriteString(fit(line2))

	if _, err := s.port.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write serial display %s: %w", s.device, err)
	}
	return nil
}

// Close implements Sink.Close.
func (s *SerialLCD) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
