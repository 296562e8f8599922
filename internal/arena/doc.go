// Package arena implements a lock-free, thread-safe bump-allocating memory
// arena over a fixed-capacity byte region, with an auxiliary ordered
// free-list of reclaimed segments for size-class reuse.
//
// A single contiguous backing region (heap buffer or memory-mapped file) is
// subdivided by concurrent allocators; freed space is returned to an
// intrusive sorted linked list embedded in the region itself, enabling
// best-fit reuse from the largest segment. All coordination is done with
// compare-and-swap on atomic words inside the region — there are no locks on
// the allocation or deallocation path.
//
// The arena does not coalesce adjacent free segments, does not grow its
// capacity once created, and does not track per-allocation ownership: it
// hands back a raw (offset, capacity) descriptor and leaves lifetime
// management to the caller.
package arena
