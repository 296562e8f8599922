// Package arena implements a lock-free, bump-pointer memory arena with an
// auxiliary ordered free-list for reuse of freed segments. See doc.go for
// an overview of the allocator's two-tier design.
package arena

import (
	"fmt"
	"unsafe"
)

// Descriptor identifies one allocation within an Arena: an offset from the
// arena's base and the number of bytes reserved there. A zero Descriptor
// (Offset 0) is what a zero-sized request returns; an allocation of one or
// more bytes never has Offset 0, so callers can use the zero Descriptor as
// their own "no allocation" sentinel.
type Descriptor struct {
	Offset uint32
	Cap    uint32
}

// Stats is a point-in-time snapshot of an arena's bookkeeping counters.
type Stats struct {
	Capacity           uint32
	Allocated          uint32
	Discarded          uint32
	MinimumSegmentSize uint32
	Refs               int64
}

// Arena is a handle to a shared memory region. Multiple Arena values can be
// cloned from one construction; the region they share is torn down exactly
// once, when the last clone is closed.
type Arena struct {
	r *region
}

// New constructs a heap-backed arena. WithCapacity is required.
func New(opts ...Option) (*Arena, error) {
	cfg := buildConfig(opts...)
	if cfg.capacity == 0 {
		return nil, fmt.Errorf("arena: WithCapacity is required")
	}

	total, err := regionTotalSize(cfg)
	if err != nil {
		return nil, err
	}

	be, err := newHeapBackend(total, cfg.maximumAlignment)
	if err != nil {
		return nil, err
	}

	r, err := newRegion(be, cfg, true)
	if err != nil {
		return nil, err
	}

	return &Arena{r: r}, nil
}

// OpenFile constructs a file-backed arena, creating the file (or growing it
// to WithCapacity) if necessary. If the file was empty, a fresh header is
// written; otherwise the existing header and free-list are trusted as-is,
// which lets a process reopen an arena a previous run persisted.
//
// File-backed arenas always unify the header into the region; WithUnify(false)
// is rejected.
func OpenFile(path string, opts ...Option) (*Arena, error) {
	cfg := buildConfig(opts...)
	if !cfg.unify {
		return nil, fmt.Errorf("arena: file-backed regions require WithUnify(true) (the default)")
	}
	if cfg.capacity == 0 {
		return nil, fmt.Errorf("arena: WithCapacity is required")
	}

	total, err := regionTotalSize(cfg)
	if err != nil {
		return nil, err
	}

	be, wasEmpty, err := newFileBackend(path, total, cfg.lock, cfg.shrinkOnDrop)
	if err != nil {
		return nil, err
	}

	r, err := newRegion(be, cfg, wasEmpty)
	if err != nil {
		_ = be.close(0)
		return nil, err
	}

	return &Arena{r: r}, nil
}

// OpenFileReadOnly maps an existing arena file read-only. Capacity is
// derived from the file's size; the mutating methods AllocBytes, Alloc,
// Dealloc and Clear return ErrReadOnly, and PointerMut panics.
func OpenFileReadOnly(path string, opts ...Option) (*Arena, error) {
	cfg := buildConfig(opts...)
	if !cfg.unify {
		return nil, fmt.Errorf("arena: file-backed regions require WithUnify(true) (the default)")
	}

	be, err := newReadOnlyFileBackend(path)
	if err != nil {
		return nil, err
	}

	r, err := newRegion(be, cfg, false)
	if err != nil {
		_ = be.close(0)
		return nil, err
	}

	return &Arena{r: r}, nil
}

// NewAnonymousMapping constructs an arena backed by an anonymous (unlinked)
// memory mapping: no filesystem footprint, but exercises the same mmap code
// path as OpenFile. WithCapacity is required, and like OpenFile it always
// unifies the header into the region; WithUnify(false) is rejected.
func NewAnonymousMapping(opts ...Option) (*Arena, error) {
	cfg := buildConfig(opts...)
	if !cfg.unify {
		return nil, fmt.Errorf("arena: anonymous mappings require WithUnify(true) (the default)")
	}
	if cfg.capacity == 0 {
		return nil, fmt.Errorf("arena: WithCapacity is required")
	}

	total, err := regionTotalSize(cfg)
	if err != nil {
		return nil, err
	}

	be, err := newAnonymousBackend(total)
	if err != nil {
		return nil, err
	}

	r, err := newRegion(be, cfg, true)
	if err != nil {
		_ = be.close(0)
		return nil, err
	}

	return &Arena{r: r}, nil
}

// Clone returns a new handle sharing the same underlying region. The
// region's backend is only torn down once every clone (including the
// original) has been closed.
func (a *Arena) Clone() *Arena {
	return &Arena{r: a.r.clone()}
}

// Close releases this handle's reference to the region. If it was the last
// reference, the backend is flushed and torn down.
func (a *Arena) Close() error {
	return a.r.release()
}

// Refs reports the number of live handles sharing this arena's region.
func (a *Arena) Refs() int64 {
	return a.r.refs.Load()
}

// Capacity returns the total number of bytes in the backing region,
// including whatever the header occupies.
func (a *Arena) Capacity() uint32 {
	return a.r.cap
}

// Size returns the bump pointer's current position: the offset, from the
// start of the region, one past the last byte it has claimed. It therefore
// counts the header area as well as both live and freed-but-still
// bump-allocated bytes. It never decreases except across Clear.
func (a *Arena) Size() uint32 {
	return a.r.header.allocated.Load()
}

// Remaining returns the number of bytes the bump pointer could still claim
// before the region is exhausted. It does not account for free-list space.
func (a *Arena) Remaining() uint32 {
	capacity := a.r.cap
	allocated := a.r.header.allocated.Load()
	if allocated >= capacity {
		return 0
	}
	return capacity - allocated
}

// Discarded returns the total number of bytes freed into segments too small
// to be worth tracking in the free-list (see WithMinimumSegmentSize). This
// memory is gone for the lifetime of the arena.
func (a *Arena) Discarded() uint32 {
	return a.r.header.discarded.Load()
}

// IncreaseDiscarded records n additional bytes as permanently lost. It is
// exposed so callers implementing their own allocation policy on top of
// AllocBytes (for example, a caller-managed sub-allocator) can keep the
// arena's accounting honest for bytes it chooses not to hand back via
// Dealloc.
func (a *Arena) IncreaseDiscarded(n uint32) {
	a.r.header.discarded.Add(n)
}

// MinimumSegmentSize returns the current free-list admission threshold.
func (a *Arena) MinimumSegmentSize() uint32 {
	return a.r.header.minSegmentSize.Load()
}

// SetMinimumSegmentSize changes the free-list admission threshold. It takes
// effect for segments freed after the call; segments already discarded or
// already in the free-list are unaffected.
func (a *Arena) SetMinimumSegmentSize(size uint32) {
	a.r.header.minSegmentSize.Store(size)
}

// ReadOnly reports whether this arena's region rejects mutation.
func (a *Arena) ReadOnly() bool {
	return a.r.readOnly()
}

// Stats returns a snapshot of the arena's bookkeeping counters. The
// snapshot is not atomic across fields: under concurrent allocation it may
// observe a state no single instant produced.
func (a *Arena) Stats() Stats {
	return Stats{
		Capacity:           a.r.cap,
		Allocated:          a.r.header.allocated.Load(),
		Discarded:          a.r.header.discarded.Load(),
		MinimumSegmentSize: a.r.header.minSegmentSize.Load(),
		Refs:               a.r.refs.Load(),
	}
}

// Flush synchronously persists any dirty pages to the backing file. It is a
// no-op for heap-backed and anonymous arenas.
func (a *Arena) Flush() error {
	return a.r.be.flush()
}

// FlushAsync requests the same persistence as Flush without waiting for it
// to complete.
func (a *Arena) FlushAsync() error {
	return a.r.be.flushAsync()
}

// Alloc reserves space for one value of type T and returns its descriptor.
// Go methods cannot be generic, so this is a free function taking the arena
// explicitly, mirroring how the teacher's generics-based helpers in the
// compiler toolchain are always free functions over a receiver argument.
func Alloc[T any](a *Arena) (Descriptor, error) {
	var zero T
	size := uint32(unsafe.Sizeof(zero))
	align := uint32(unsafe.Alignof(zero))
	return a.AllocBytesAligned(size, align)
}

// AlignedPointer returns a typed pointer to the value described by
// Descriptor d, which must have been produced by Alloc[T] (or
// AllocBytesAligned called with matching size/alignment) on this same arena.
// It adds no padding of its own: the pointer is the arena base plus d.Offset.
func AlignedPointer[T any](a *Arena, d Descriptor) *T {
	return (*T)(a.pointer(d.Offset))
}

// AllocBytes reserves size bytes with the arena's default (no particular)
// alignment. It is equivalent to AllocBytesAligned(size, 1).
func (a *Arena) AllocBytes(size uint32) (Descriptor, error) {
	return a.AllocBytesAligned(size, 1)
}

// AllocBytesAligned reserves size bytes whose offset is a multiple of
// align. It tries the bump-pointer fast path first; only once the region is
// too full to satisfy the request does it fall back to the free-list slow
// path (allocSlowPath) to look for a previously freed segment that fits.
// A zero size returns the zero Descriptor and no error. When neither path
// can serve the request, including when the slow path runs out of retries
// (WithMaximumRetries), the error is an *InsufficientSpaceError.
func (a *Arena) AllocBytesAligned(size, align uint32) (Descriptor, error) {
	if a.r.readOnly() {
		return Descriptor{}, ErrReadOnly
	}
	if size == 0 {
		return Descriptor{}, nil
	}
	if align == 0 {
		align = 1
	}

	d, exhausted := a.allocFastPath(size, align)
	if !exhausted {
		return d, nil
	}

	if d, ok, err := a.allocSlowPath(size, align); err != nil && err != errRetriesExhausted {
		return Descriptor{}, err
	} else if ok {
		return d, nil
	}

	available := a.Remaining()
	if largest := a.largestFreeSegment(); largest > 0 {
		available = largest
	}
	return Descriptor{}, &InsufficientSpaceError{Requested: size, Available: available}
}

// allocFastPath bumps the shared watermark with a compare-and-swap retry
// loop. It is wait-free per iteration and lock-free overall: a failed CAS
// only ever means some other goroutine just advanced the watermark, i.e. the
// arena as a whole made progress, so the loop is unbounded and always
// retries rather than giving up — carrying maxRetries here would let
// sustained (but forward-making) contention fail an allocation that still
// had room. Contention is paced with the same
// exponential spin/yield backoff used by the free-list slow path
// (backoff.go), rather than a mutex. It reports exhausted = true with a zero
// Descriptor when the region simply has no room left for the fast path and
// the free-list should be consulted instead.
func (a *Arena) allocFastPath(size, align uint32) (d Descriptor, exhausted bool) {
	var bo backoff

	for {
		cur := a.r.header.allocated.Load()
		start := alignUp32(cur, align)
		next := start + size
		if next < start || next > a.r.cap {
			return Descriptor{}, true
		}

		if a.r.header.allocated.CompareAndSwap(cur, next) {
			return Descriptor{Offset: start, Cap: size}, false
		}

		bo.snooze()
	}
}

// Clear resets the arena to its freshly constructed state: the bump pointer
// returns to the start of the data region, the free-list is emptied, and
// discarded bytes are reset to zero. It is only safe to call once every
// outstanding Descriptor has been abandoned by every goroutine sharing this
// arena — Clear does not itself synchronize with concurrent allocators the
// way AllocBytes and Dealloc do.
func (a *Arena) Clear() error {
	if a.r.readOnly() {
		return ErrReadOnly
	}
	zeroRange(a.r.basePtr, a.r.dataOffset, a.r.cap-a.r.dataOffset)
	a.r.header.resetFresh(a.r.dataOffset, a.r.header.minSegmentSize.Load())
	return nil
}
