// Package pairing implements the gateway's short-range control channel.
//
// The channel is always on: it is started before the main loop and stays up
// until shutdown, whether or not a peer is currently attached. Received bytes
// are delivered through the callback given to Start, from the transport's own
// goroutine. Writes made while no peer is attached are dropped.
//
// Two transports are provided:
//
//   - RFCOMM reads and writes a Bluetooth serial device such as /dev/rfcomm0
//     (bound with `rfcomm watch`), reopening it whenever a phone reconnects.
//   - WebSocket serves a single text-frame peer over HTTP, for hosts without
//     Bluetooth.
package pairing

import "errors"

// Channel is a wireless pairing transport.
type Channel interface {
	// Start begins delivering received bytes to onData. It must be called
	// once, before any Write.
	Start(onData func([]byte)) error
	// Write sends p to the attached peer, if any.
	Write(p []byte) error
	// Connected reports whether a peer is attached right now.
	Connected() bool
	Close() error
}

// ErrStarted is returned by a second call to Start.
var ErrStarted = errors.New("pairing channel already started")

// Null is a Channel with no transport. Writes are discarded.
type Null struct{}

func (Null) Start(func([]byte)) error { return nil }
func (Null) Write([]byte) error       { return nil }
func (Null) Connected() bool          { return false }
func (Null) Close() error             { return nil }
