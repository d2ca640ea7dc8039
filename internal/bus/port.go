package bus

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/queue"
)

const (
	// DefaultBaud is the bit rate both buses start with.
	DefaultBaud = 115200

	// readBufferSize bounds one receive chunk.
	readBufferSize = 256

	// transientPause is how long Run waits after a read error that does not
	// indicate a lost device.
	transientPause = 100 * time.Millisecond
)

// Transport is the byte-level link underneath a bus.
type Transport interface {
	io.Reader
	io.Writer
	// Drain blocks until all written bytes have left the output buffer.
	Drain() error
	// SetBaud changes the bit rate immediately.
	SetBaud(rate int) error
	Close() error
}

// Direction is the half-duplex turnaround control for one bus.
type Direction interface {
	// SetTransmit drives the bus when on is true and releases it otherwise.
	SetTransmit(on bool) error
}

// Port is one half-duplex bus.
type Port struct {
	id        int
	transport Transport
	dir       Direction
	rx        *queue.Queue

	// txMu serializes transmit and baud changes; both are called from the
	// main loop only, the lock guards against misuse from other goroutines.
	txMu sync.Mutex
	baud int

	reported uint64 // dropped bytes already logged, touched only by Run
}

// NewPort creates a bus port. A nil dir means the transceiver switches
// direction on its own.
func NewPort(id int, transport Transport, dir Direction, queueCapacity int) *Port {
	if dir == nil {
		dir = NoDirection{}
	}
	return &Port{
		id:        id,
		transport: transport,
		dir:       dir,
		rx:        queue.New(queueCapacity),
		baud:      DefaultBaud,
	}
}

// ID returns the bus selector (1 or 2).
func (p *Port) ID() int {
	return p.id
}

// Queue returns the receive queue drained by the main loop.
func (p *Port) Queue() *queue.Queue {
	return p.rx
}

// Baud returns the last bit rate applied.
func (p *Port) Baud() int {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	return p.baud
}

// OnReceive is the receive event: it moves a chunk read from the transport
// into the queue and flags it for the main loop.
func (p *Port) OnReceive(data []byte) {
	if len(data) == 0 {
		return
	}
	p.rx.PushMany(data)
	p.rx.MarkChunk()
	logging.LogBusTraffic(p.id, "rx", data)
}

// Transmit sends data with the direction signal asserted for exactly the
// duration of the frame. It blocks until the transport confirms the bytes
// are on the wire. Must not be called from the receive goroutine.
func (p *Port) Transmit(data []byte) (err error) {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	if err := p.dir.SetTransmit(true); err != nil {
		return fmt.Errorf("bus %d: assert direction: %w", p.id, err)
	}
	defer func() {
		if relErr := p.dir.SetTransmit(false); relErr != nil && err == nil {
			err = fmt.Errorf("bus %d: release direction: %w", p.id, relErr)
		}
	}()

	for written := 0; written < len(data); {
		n, err := p.transport.Write(data[written:])
		if err != nil {
			return fmt.Errorf("bus %d: write: %w", p.id, err)
		}
		if n == 0 {
			return fmt.Errorf("bus %d: write: %w", p.id, io.ErrShortWrite)
		}
		written += n
	}

	if err := p.transport.Drain(); err != nil {
		return fmt.Errorf("bus %d: drain: %w", p.id, err)
	}

	logging.LogBusTraffic(p.id, "tx", data)
	return nil
}

// SetBaud reconfigures the bit rate. Reception in flight may be garbled for
// a few characters.
func (p *Port) SetBaud(rate int) error {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	if err := p.transport.SetBaud(rate); err != nil {
		return fmt.Errorf("bus %d: set baud %d: %w", p.id, rate, err)
	}
	p.baud = rate
	return nil
}

// Run reads the transport until ctx is cancelled or the device is lost,
// feeding each chunk to OnReceive and calling wake after it. It is the only
// producer for the port's queue.
func (p *Port) Run(ctx context.Context, wake func()) error {
	buf := make([]byte, readBufferSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := p.transport.Read(buf)
		if n > 0 {
			p.OnReceive(buf[:n])
			p.reportOverflow()
			if wake != nil {
				wake()
			}
		}
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if IsDisconnect(err) {
			logging.Error("Bus receive stopped",
				zap.Int("bus", p.id),
				zap.Error(err),
			)
			return fmt.Errorf("bus %d: read: %w", p.id, err)
		}

		logging.Warn("Bus read error, retrying",
			zap.Int("bus", p.id),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(transientPause):
		}
	}
}

// reportOverflow logs newly dropped bytes once per chunk.
func (p *Port) reportOverflow() {
	dropped := p.rx.Dropped()
	if dropped == p.reported {
		return
	}
	logging.Warn("Bus receive queue overflow",
		zap.Int("bus", p.id),
		zap.Uint64("dropped", dropped-p.reported),
		zap.Uint64("dropped_total", dropped),
	)
	p.reported = dropped
}

// Close closes the transport, which also unblocks Run.
func (p *Port) Close() error {
	return p.transport.Close()
}

// NoDirection is used for transceivers with automatic direction control.
type NoDirection struct{}

// SetTransmit does nothing.
func (NoDirection) SetTransmit(bool) error { return nil }
