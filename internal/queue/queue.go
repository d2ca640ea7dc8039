package queue

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the queue size used for each bus.
const DefaultCapacity = 1024

// Queue is a circular byte buffer with a single producer and a single consumer.
type Queue struct {
	buf  []byte
	head int // next write position
	tail int // next read position

	// chunk is set by the producer after a receive event and consumed by the
	// main loop to decide whether the queue needs draining.
	chunk bool

	mu      sync.Mutex
	dropped atomic.Uint64
}

// New creates a queue with the given capacity. Capacities below 2 fall back
// to DefaultCapacity since a 1-slot ring can never hold data.
func New(capacity int) *Queue {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]byte, capacity)}
}

// Push appends one byte. It returns false and drops the byte when the queue
// is full.
func (q *Queue) Push(b byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push(b)
}

// PushMany appends bytes in order until the queue fills and returns how many
// were accepted. The rest are dropped.
func (q *Queue) PushMany(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, b := range p {
		if !q.push(b) {
			break
		}
		n++
	}
	return n
}

func (q *Queue) push(b byte) bool {
	next := (q.head + 1) % len(q.buf)
	if next == q.tail {
		q.dropped.Add(1)
		return false
	}
	q.buf[q.head] = b
	q.head = next
	return true
}

// DrainMany copies up to len(out) bytes into out, advances the read cursor
// and returns the number of bytes copied.
func (q *Queue) DrainMany(out []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for q.tail != q.head && n < len(out) {
		out[n] = q.buf[q.tail]
		q.tail = (q.tail + 1) % len(q.buf)
		n++
	}
	return n
}

// Empty reports whether the queue holds no bytes.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == q.tail
}

// Len returns the number of bytes currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return (q.head - q.tail + len(q.buf)) % len(q.buf)
}

// Cap returns the configured capacity. At most Cap()-1 bytes fit.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// MarkChunk flags that a receive event has delivered data.
func (q *Queue) MarkChunk() {
	q.mu.Lock()
	q.chunk = true
	q.mu.Unlock()
}

// Ready reports whether a chunk has been flagged and bytes are waiting. A
// flag left over on an empty queue is cleared.
func (q *Queue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.chunk {
		return false
	}
	if q.head == q.tail {
		q.chunk = false
		return false
	}
	return true
}

// Settle clears the chunk flag once the queue has been emptied. The main
// loop calls it after each drain; a partial drain leaves the flag set so the
// remainder goes out on the next tick.
func (q *Queue) Settle() {
	q.mu.Lock()
	if q.head == q.tail {
		q.chunk = false
	}
	q.mu.Unlock()
}

// Dropped returns the total number of bytes lost to overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
