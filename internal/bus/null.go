package bus

import (
	"errors"
	"io"
	"sync"
)

// ErrNoDevice is reported for a bus that has no device configured.
var ErrNoDevice = errors.New("no device configured")

// NullTransport stands in for an unconfigured bus. Reads block until Close,
// writes fail with ErrNoDevice and baud changes are accepted.
type NullTransport struct {
	once   sync.Once
	closed chan struct{}
}

// NewNullTransport returns an open NullTransport.
func NewNullTransport() *NullTransport {
	return &NullTransport{closed: make(chan struct{})}
}

func (n *NullTransport) Read([]byte) (int, error) {
	<-n.closed
	return 0, io.EOF
}

func (n *NullTransport) Write([]byte) (int, error) {
	return 0, ErrNoDevice
}

func (n *NullTransport) Drain() error { return nil }

func (n *NullTransport) SetBaud(int) error { return nil }

func (n *NullTransport) Close() error {
	n.once.Do(func() { close(n.closed) })
	return nil
}
