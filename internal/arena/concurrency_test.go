package arena

import (
	"sync"
	"testing"
)

// TestConcurrentAllocNoOverlap exercises the bump-pointer fast path from many
// goroutines at once and checks the core safety invariant: no two successful
// allocations may ever describe overlapping byte ranges.
func TestConcurrentAllocNoOverlap(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200
	const allocSize = 24

	a, err := New(WithCapacity(goroutines * perGoroutine * allocSize * 2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	results := make(chan Descriptor, goroutines*perGoroutine)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				d, err := a.AllocBytes(allocSize)
				if err != nil {
					t.Errorf("AllocBytes: %v", err)
					return
				}
				results <- d
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint32]Descriptor)
	for d := range results {
		for _, other := range seen {
			if rangesOverlap(d, other) {
				t.Fatalf("overlapping allocations: %+v and %+v", d, other)
			}
		}
		seen[d.Offset] = d
	}
	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("expected %d distinct allocations, got %d", goroutines*perGoroutine, len(seen))
	}
}

func rangesOverlap(a, b Descriptor) bool {
	aEnd := a.Offset + a.Cap
	bEnd := b.Offset + b.Cap
	return a.Offset < bEnd && b.Offset < aEnd
}

// TestConcurrentDeallocReuseStaysSafe frees and reallocates the same handful
// of segments from many goroutines simultaneously; it should never panic or
// hand out an overlapping pair, regardless of which goroutine wins each
// race to reclaim a given segment.
func TestConcurrentDeallocReuseStaysSafe(t *testing.T) {
	const goroutines = 8
	const rounds = 500

	a, err := New(WithCapacity(1<<16), WithMinimumSegmentSize(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				d, err := a.AllocBytes(32)
				if err != nil {
					t.Errorf("AllocBytes: %v", err)
					return
				}
				if err := a.Dealloc(d); err != nil {
					t.Errorf("Dealloc: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestDeferredQueueDrain(t *testing.T) {
	a, err := New(WithCapacity(4096), WithMinimumSegmentSize(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	q := NewDeferredQueue(8)
	var pushed []Descriptor
	for i := 0; i < 5; i++ {
		d, err := a.AllocBytes(32)
		if err != nil {
			t.Fatalf("AllocBytes: %v", err)
		}
		if !q.Push(d) {
			t.Fatal("expected Push to succeed within capacity")
		}
		pushed = append(pushed, d)
	}

	n, err := a.Drain(q, 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != len(pushed) {
		t.Fatalf("expected to drain %d descriptors, got %d", len(pushed), n)
	}

	if n2, err := a.Drain(q, 10); err != nil || n2 != 0 {
		t.Fatalf("expected an empty queue, got n=%d err=%v", n2, err)
	}
}
