package arena

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"
)

// region is the shared, reference-counted state behind every Arena handle
// cloned from the same construction. Teardown of the backend runs exactly
// once, on the handle whose Close call drives the refcount from 1 to 0 —
// the same release-then-acquire-fence shape as a Rust Arc<T>'s drop glue.
type region struct {
	be         backend
	basePtr    unsafe.Pointer
	cap        uint32
	header     *Header
	dataOffset uint32
	unified    bool
	maxRetries uint32
	tags       *tags

	refs atomic.Int64
}

// regionDataOffset returns where the data region begins within the backend,
// for a region configured by cfg: right after the header for a unified
// region, or at the configured alignment (at least headerAlignment) for a
// non-unified one (whose header lives off-region, in process memory), so
// that no allocation ever starts at the reserved offset 0.
func regionDataOffset(cfg *config) uint32 {
	if !cfg.unify {
		if cfg.maximumAlignment < headerAlignment {
			return headerAlignment
		}
		return cfg.maximumAlignment
	}
	return alignUp32(headerSize, cfg.maximumAlignment)
}

// regionTotalSize returns the number of backend bytes a region needs to
// back cfg.capacity usable data bytes. WithCapacity is a data-only count
// (see its doc comment); header placement overhead is added on top for
// unified regions, per §6.3 of the design this package follows.
func regionTotalSize(cfg *config) (uint32, error) {
	dataOffset := regionDataOffset(cfg)
	total := uint64(dataOffset) + uint64(cfg.capacity)
	if total > math.MaxUint32 {
		return 0, fmt.Errorf("arena: capacity %d plus header overhead %d overflows a uint32 region size", cfg.capacity, dataOffset)
	}
	return uint32(total), nil
}

// newRegion wires a backend to a freshly initialized (or reopened) header
// and computes the data offset for the chosen layout mode. The backend is
// expected to already have been sized by regionTotalSize (newRegion trusts
// be.capacity() as the region's total byte count, which matters for a
// reopened file backend whose size was fixed by an earlier run rather than
// by the current call's cfg.capacity).
func newRegion(be backend, cfg *config, fresh bool) (*region, error) {
	base := be.base()
	cap := be.capacity()

	r := &region{
		be:         be,
		basePtr:    base,
		cap:        cap,
		unified:    cfg.unify,
		maxRetries: cfg.maximumRetries,
		tags:       newTags(),
	}
	r.refs.Store(1)

	if cfg.unify {
		if cap < headerSize {
			return nil, fmt.Errorf("arena: region capacity %d too small for header (%d bytes)", cap, headerSize)
		}
		r.header = (*Header)(base)
	} else {
		r.header = new(Header)
	}
	r.dataOffset = regionDataOffset(cfg)

	if r.dataOffset > cap {
		return nil, fmt.Errorf("arena: region capacity %d too small for data offset %d", cap, r.dataOffset)
	}

	if fresh {
		r.header.resetFresh(r.dataOffset, cfg.minimumSegmentSize)
	}

	return r, nil
}

// clone increments the reference count (Release) and returns the same
// shared state for a new Arena handle. Overflow panics, mirroring the Rust
// implementation's process abort on refcount > isize::MAX.
func (r *region) clone() *region {
	n := r.refs.Add(1)
	if n > math.MaxInt64-1 {
		panic("arena: reference count overflow")
	}
	return r
}

// release decrements the reference count (Release); on the transition to
// zero it synchronizes with an Acquire load and tears the backend down
// exactly once.
func (r *region) release() error {
	n := r.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		return fmt.Errorf("arena: region closed more times than it was cloned")
	}

	// Acquire fence: re-read refs to synchronize with every prior release.
	_ = r.refs.Load()

	return r.be.close(r.header.allocated.Load())
}

func (r *region) readOnly() bool {
	return r.be.readOnly()
}
