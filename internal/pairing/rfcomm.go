package pairing

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/bus"
	"github.com/muurk/rs485gw/internal/logging"
)

const (
	// DefaultName is the name the gateway pairs under.
	DefaultName = "ESP32-RS485-GW"

	reopenDelay = time.Second
	readSize    = 256
)

// device is an open RFCOMM serial device.
type device interface {
	io.ReadWriteCloser
}

// RFCOMM is a Channel over a Bluetooth serial port device.
type RFCOMM struct {
	path string
	baud int
	name string
	open func(path string, baud int) (device, error)

	mu      sync.Mutex
	dev     device
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRFCOMM returns a channel on path. The device does not have to exist yet.
func NewRFCOMM(path string, baud int, name string) *RFCOMM {
	if name == "" {
		name = DefaultName
	}
	return &RFCOMM{
		path: path,
		baud: baud,
		name: name,
		open: openSerialDevice,
	}
}

func openSerialDevice(path string, baud int) (device, error) {
	tr, err := bus.OpenSerial(path, baud)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func (r *RFCOMM) Start(onData func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.done = make(chan struct{})

	logging.Info("Pairing channel started",
		zap.String("transport", "rfcomm"),
		zap.String("device", r.path),
		zap.String("name", r.name),
	)

	go r.run(onData)
	return nil
}

// run keeps the device open and feeds reads to onData until Close.
func (r *RFCOMM) run(onData func([]byte)) {
	defer close(r.done)

	buf := make([]byte, readSize)
	for r.ctx.Err() == nil {
		dev, err := r.open(r.path, r.baud)
		if err != nil {
			logging.Debug("Pairing device not available",
				zap.String("device", r.path),
				zap.Error(err),
			)
			if !r.pause() {
				return
			}
			continue
		}

		r.setDevice(dev)
		logging.LogConnection("pairing", r.path, "peer_attached")

		for {
			n, err := dev.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				logging.LogRawBytes("Pairing rx", chunk)
				onData(chunk)
			}
			if err != nil {
				if r.ctx.Err() == nil && !bus.IsDisconnect(err) {
					logging.Warn("Pairing read error", zap.Error(err))
				}
				break
			}
			if r.ctx.Err() != nil {
				break
			}
		}

		r.setDevice(nil)
		_ = dev.Close()
		logging.LogConnection("pairing", r.path, "peer_detached")

		if !r.pause() {
			return
		}
	}
}

// pause waits before the next open attempt; false means Close was called.
func (r *RFCOMM) pause() bool {
	select {
	case <-r.ctx.Done():
		return false
	case <-time.After(reopenDelay):
		return true
	}
}

func (r *RFCOMM) setDevice(dev device) {
	r.mu.Lock()
	r.dev = dev
	r.mu.Unlock()
}

// Write sends p to the device. Without a device the write is dropped.
func (r *RFCOMM) Write(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return nil
	}
	for len(p) > 0 {
		n, err := r.dev.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

func (r *RFCOMM) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev != nil
}

// Close stops the reader and closes the device.
func (r *RFCOMM) Close() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel, dev, done := r.cancel, r.dev, r.done
	r.mu.Unlock()

	cancel()
	if dev != nil {
		// Unblocks a pending Read; run closes it again on the way out.
		_ = dev.Close()
	}
	<-done
	return nil
}
