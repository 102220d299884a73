package feed

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the firmware of the pole sensor board.
const DefaultBaudRate = 115200

// OpenSerial opens a serial port in 8N1 mode and returns a [LineSource]
// reading from it. A zero baud rate selects [DefaultBaudRate].
//
// Returns an error wrapping [ErrUnavailable] if the port cannot be opened.
func OpenSerial(port string, baud int, parse Parser) (*LineSource, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open serial port %s: %w", ErrUnavailable, port, err)
	}
	return NewLineSource(p, parse), nil
}
