package bus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"
)

// serialReadTimeout bounds one Read so Run can notice cancellation.
const serialReadTimeout = 100 * time.Millisecond

// SerialTransport is a Transport over a local UART.
type SerialTransport struct {
	path string
	port serial.Port
	mode serial.Mode
}

// OpenSerial opens path at the given bit rate with 8N1 framing.
func OpenSerial(path string, baud int) (*SerialTransport, error) {
	if path == "" {
		return nil, ErrNoDevice
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	mode := serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, &mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	return &SerialTransport{path: path, port: port, mode: mode}, nil
}

// Path returns the device path the transport was opened on.
func (s *SerialTransport) Path() string {
	return s.path
}

// Read returns 0, nil when the read timeout expires without data.
func (s *SerialTransport) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Drain waits for the UART to finish sending.
func (s *SerialTransport) Drain() error {
	return s.port.Drain()
}

// SetBaud reapplies the mode with the new rate.
func (s *SerialTransport) SetBaud(rate int) error {
	mode := s.mode
	mode.BaudRate = rate
	if err := s.port.SetMode(&mode); err != nil {
		return err
	}
	s.mode = mode
	return nil
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

// Port exposes the underlying serial port, e.g. for ModemLine.
func (s *SerialTransport) Port() serial.Port {
	return s.port
}

// Line selects the modem control output used as a direction signal.
type Line int

const (
	LineRTS Line = iota
	LineDTR
)

// ParseLine maps a config value to a Line. ok is false for "none" and "".
func ParseLine(name string) (line Line, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return 0, false, nil
	case "rts":
		return LineRTS, true, nil
	case "dtr":
		return LineDTR, true, nil
	default:
		return 0, false, fmt.Errorf("unknown direction line %q", name)
	}
}

func (l Line) String() string {
	switch l {
	case LineRTS:
		return "rts"
	case LineDTR:
		return "dtr"
	default:
		return fmt.Sprintf("line(%d)", int(l))
	}
}

// modemPort is the subset of serial.Port used by ModemLine.
type modemPort interface {
	SetRTS(rts bool) error
	SetDTR(dtr bool) error
}

// ModemLine drives a transceiver's DE/RE pins from RTS or DTR.
type ModemLine struct {
	port   modemPort
	line   Line
	invert bool
}

// NewModemLine returns a Direction on the transport's modem lines. With
// invert set, the line is low while transmitting.
func NewModemLine(t *SerialTransport, line Line, invert bool) *ModemLine {
	return newModemLine(t.port, line, invert)
}

func newModemLine(port modemPort, line Line, invert bool) *ModemLine {
	return &ModemLine{port: port, line: line, invert: invert}
}

func (m *ModemLine) SetTransmit(on bool) error {
	level := on != m.invert
	if m.line == LineDTR {
		return m.port.SetDTR(level)
	}
	return m.port.SetRTS(level)
}

// IsDisconnect reports whether err means the device is gone and reading
// should stop, as opposed to a transient or configuration error.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, ErrNoDevice) {
		return true
	}

	var code serial.PortErrorCode
	var portErr *serial.PortError
	var portErrVal serial.PortError
	switch {
	case errors.As(err, &portErr):
		code = portErr.Code()
	case errors.As(err, &portErrVal):
		code = portErrVal.Code()
	default:
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "input/output error") ||
			strings.Contains(msg, "no such device") ||
			strings.Contains(msg, "device not configured") ||
			strings.Contains(msg, "bad file descriptor")
	}

	switch code {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
