package protocol

import (
	"strings"
	"sync"
)

const (
	// DefaultLineCapacity is the line buffer size for each control channel.
	DefaultLineCapacity = 512

	// Terminator ends one message on a control channel.
	Terminator = '\n'
)

// LineAssembler turns a byte stream into terminator-delimited lines.
//
// It is safe for one producer and one consumer running in different
// goroutines: Feed and Take share a mutex, so the snapshot-and-clear in Take
// runs with the producer excluded.
type LineAssembler struct {
	mu    sync.Mutex
	buf   []byte
	n     int
	ready bool
}

// NewLineAssembler creates an assembler holding at most capacity-1 bytes per line.
func NewLineAssembler(capacity int) *LineAssembler {
	if capacity < 2 {
		capacity = DefaultLineCapacity
	}
	return &LineAssembler{buf: make([]byte, capacity)}
}

// Feed appends data to the current line and reports whether a line is ready.
//
// Bytes past capacity-1 are dropped. The terminator marks the line ready even
// when it no longer fits. Bytes arriving while a line is ready are appended to
// the same buffer until Take is called.
func (a *LineAssembler) Feed(data []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range data {
		if a.n < len(a.buf)-1 {
			a.buf[a.n] = b
			a.n++
		}
		if b == Terminator {
			a.ready = true
		}
	}
	return a.ready
}

// Ready reports whether a terminated line is waiting.
func (a *LineAssembler) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Take returns the accumulated line and resets the buffer. It returns false
// without touching the buffer when no line is ready.
func (a *LineAssembler) Take() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ready {
		return "", false
	}
	line := string(a.buf[:a.n])
	a.n = 0
	a.ready = false
	return line, true
}

// Len returns the number of bytes buffered for the current line.
func (a *LineAssembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

// Payload trims surrounding whitespace from a taken line. It returns false for
// lines that are empty after trimming; those are ignored without a response.
func Payload(line string) (string, bool) {
	payload := strings.TrimSpace(line)
	return payload, payload != ""
}
