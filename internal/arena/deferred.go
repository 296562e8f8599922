package arena

import (
	"errors"

	"github.com/arcbound/rarena/internal/concurrency"
)

// DeferredQueue buffers Descriptors destined for Dealloc so many producer
// goroutines can hand off freed allocations without each one taking the
// free-list's CAS path directly. It is a thin wrapper over
// internal/concurrency's MPMCQueue, the same bounded lock-free ring buffer
// the teacher uses for its runtime scheduler's work queues, repurposed here
// to batch deallocation instead of task dispatch.
//
// A DeferredQueue is independent of any one Arena; the same queue can be
// shared by producers freeing into several arenas, since each Push carries
// its own Descriptor and the caller supplies the arena at Drain time.
type DeferredQueue struct {
	q *concurrency.MPMCQueue[Descriptor]
}

// NewDeferredQueue creates a queue that can hold up to capacity pending
// Descriptors before Push starts reporting false. Capacity is rounded up to
// the next power of two.
func NewDeferredQueue(capacity uint64) *DeferredQueue {
	return &DeferredQueue{q: concurrency.NewMPMCQueue[Descriptor](capacity)}
}

// Push enqueues d for later deallocation. It reports false if the queue is
// full; the caller is then responsible for calling Dealloc directly (or
// retrying Push after a Drain).
func (q *DeferredQueue) Push(d Descriptor) bool {
	return q.q.Enqueue(d)
}

// Drain pops up to max pending Descriptors and deallocates each one into a.
// It returns the number actually processed, stopping early if the queue
// empties or if a already reports ErrReadOnly. Descriptors that fail to
// dealloc for any other reason are still counted as processed; Drain
// returns the first such error after finishing the batch.
func (a *Arena) Drain(q *DeferredQueue, max int) (int, error) {
	var firstErr error
	var n int
	var d Descriptor

	for n < max && q.q.Dequeue(&d) {
		n++
		if err := a.Dealloc(d); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if errors.Is(err, ErrReadOnly) {
				break
			}
		}
	}

	return n, firstErr
}
