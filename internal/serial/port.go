package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability. The receiver never writes to
// the port (the carousel channel is simplex); Write is kept so *serial.Port
// satisfies the interface without a wrapper.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens a live serial device carrying a KISS-framed byte stream, e.g.
// from a UART-attached TNC or demodulator board.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
