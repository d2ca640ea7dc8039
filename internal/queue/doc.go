// Package queue provides the fixed-capacity byte queue that sits between a
// bus receive pump and the gateway main loop.
//
// # Overflow
//
// One slot is always kept empty so a full queue can be told apart from an
// empty one: a queue created with capacity N holds at most N-1 bytes. When
// the queue is full further pushes are dropped. The oldest data is kept and
// the newest byte is lost. Overflow is silent; Dropped reports how many bytes
// were lost so the pump can log it.
//
// # Concurrency
//
// A Queue has exactly one producer (the receive pump goroutine) and one
// consumer (the main loop). Push and DrainMany share a mutex, so the drain
// runs with the producer excluded. The critical section is a bounded copy
// and never blocks on I/O.
//
//	q := queue.New(queue.DefaultCapacity)
//	q.PushMany(chunk)   // producer
//	q.MarkChunk()
//
//	if q.Ready() {      // consumer
//	    n := q.DrainMany(buf)
//	    q.Settle()
//	    ...
//	}
package queue
