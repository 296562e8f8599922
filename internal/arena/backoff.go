package arena

import "runtime"

// spinLimit bounds how many times backoff.spin is called before it starts
// reporting that the caller should consider falling back further. It mirrors
// the yield-instead-of-lock shape used in the teacher's lock-free primitives
// (internal/concurrency's MPMCQueue.Enqueue/Dequeue call runtime.Gosched()
// while another goroutine holds the slot they need, rather than blocking on
// a lock).
const spinLimit = 6

// backoff is an exponential backoff primitive, built from scheduler yields,
// used by the slow allocation path and by Dealloc while they wait out a concurrent
// tombstone-unlink race. It carries no synchronization of its own; it only
// paces retries between CAS attempts.
type backoff struct {
	step int
}

// spin yields the goroutine's processor 2^step times, giving the goroutine
// that owns the in-flight tombstone a chance to finish its unlink. Go has no
// portable userspace busy-wait instruction, so each unit of waiting is a
// scheduler yield; step grows by one per call up to spinLimit, so the wait
// doubles with each consecutive contended attempt, and callers can decide to
// give up after spinLimit.
func (b *backoff) spin() {
	for i := 0; i < 1<<b.step; i++ {
		runtime.Gosched()
	}
	if b.step < spinLimit {
		b.step++
	}
}

// snooze is used specifically when a tombstone (size == 0) is observed: the
// owning goroutine is guaranteed to complete its unlink or roll back
// shortly, so the caller backs off the same way as spin.
func (b *backoff) snooze() {
	b.spin()
}

// exhausted reports whether this backoff has spun past spinLimit without the
// caller resetting it, i.e. contention has been sustained for a while.
func (b *backoff) exhausted() bool {
	return b.step >= spinLimit
}

// reset returns the backoff to its initial state, used when a retry loop
// makes forward progress and the next contention episode should start fresh.
func (b *backoff) reset() {
	b.step = 0
}
