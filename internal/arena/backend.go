package arena

import (
	"fmt"
	"unsafe"
)

// backend owns one contiguous block of memory and knows how to tear it
// down. It is the "backing region" component: a heap buffer, a writable file
// mapping, a read-only file mapping, or an anonymous mapping all implement
// it identically from the arena's point of view.
type backend interface {
	// base returns the first addressable byte of the region.
	base() unsafe.Pointer
	// capacity returns the total number of usable bytes in the region,
	// including whatever the header occupies.
	capacity() uint32
	// readOnly reports whether mutation is permitted.
	readOnly() bool
	// flush synchronizes any dirty pages to durable storage. It is a no-op
	// for backends with nothing to synchronize (plain heap buffers).
	flush() error
	// flushAsync is the non-blocking counterpart of flush.
	flushAsync() error
	// close tears the backend down: unmaps memory, truncates and unlocks
	// files, and releases any OS resources. It runs exactly once, driven by
	// region's refcount reaching zero.
	close(usedBytes uint32) error
}

// heapBackend is a plain heap-allocated buffer, aligned to at least
// maximumAlignment by over-allocating and adjusting the returned base
// pointer — the same technique as the teacher's
// RegionAllocator.allocateSystemMemory in region_alloc.go, minus the
// simulated page alignment constant (callers choose the alignment).
type heapBackend struct {
	buf   []byte
	b     unsafe.Pointer
	cap   uint32
	align uint32
}

func newHeapBackend(size uint32, align uint32) (*heapBackend, error) {
	if align < headerAlignment {
		align = headerAlignment
	}
	if size == 0 {
		return nil, fmt.Errorf("arena: capacity must be greater than 0")
	}

	total := uintptr(size) + uintptr(align)
	buf := make([]byte, total)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	aligned := (base + uintptr(align) - 1) &^ (uintptr(align) - 1)

	return &heapBackend{
		buf:   buf,
		b:     unsafe.Pointer(aligned),
		cap:   size,
		align: align,
	}, nil
}

func (h *heapBackend) base() unsafe.Pointer { return h.b }
func (h *heapBackend) capacity() uint32     { return h.cap }
func (h *heapBackend) readOnly() bool       { return false }
func (h *heapBackend) flush() error         { return nil }
func (h *heapBackend) flushAsync() error    { return nil }

func (h *heapBackend) close(uint32) error {
	// The garbage collector reclaims buf once the last backend reference
	// (and therefore the last region) is dropped; there is no OS resource to
	// release for a heap-backed arena.
	h.buf = nil
	h.b = nil
	return nil
}
