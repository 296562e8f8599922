package arena

import (
	"fmt"
	"unsafe"

	"github.com/arcbound/rarena/internal/concurrency"
)

// The free-list is a singly-linked chain of freed segments, kept in
// non-increasing order by size and threaded entirely through the freed
// memory itself. Every link — including the header's sentinel, which is the
// list head — is one atomic 64-bit word encoding (offset of the node this
// link points at, that node's size), via encodeNode/decodeNode in
// header.go. Caching the pointed-to node's size in the link that points at
// it, rather than in the node itself, means a single word carries enough
// information to validate an identity and a size in one compare-and-swap,
// with no second dereference.
//
// Sorting by size descending turns "is anything in the free-list big enough
// for this request" into an O(1) check of the head alone: if the head isn't
// big enough, nothing further down the chain is either. allocSlowPath relies
// on exactly that and only ever removes the head, the same shape as a
// Treiber-stack pop. Dealloc walks the chain to find the right place to
// splice a freed segment back in, keeping the order intact.
//
// Every word is read and compare-and-swapped through internal/concurrency's
// raw pointer-based helpers rather than a typed atomic value, since most of
// these words live at addresses computed at runtime inside an arbitrary
// []byte or mmap'd region, not in a fixed Go-declared variable. A link whose
// decoded size is 0 is a tombstone: the node it used to describe is mid
// removal by another goroutine, the same logical-delete-then-physical-unlink
// two-step as internal/concurrency's LockFreeMap.Delete.

// link is a CAS-able (next offset, next size) word: either the header's
// sentinel or the first eight (node-word-aligned) bytes of a freed segment.
type link struct {
	addr *uint64
}

func (l link) load() uint64             { return concurrency.LoadUint64(l.addr) }
func (l link) cas(old, new uint64) bool { return concurrency.CASUint64(l.addr, old, new) }
func (l link) store(v uint64)           { concurrency.StoreUint64(l.addr, v) }

// head returns the free-list's head link: the region header's sentinel
// word.
func (a *Arena) head() link {
	return link{addr: &a.r.header.sentinel}
}

// nodeLink returns the link embedded at the start of the segment beginning
// at offset (after whatever padding its alignment needs).
func (a *Arena) nodeLink(offset uint32) link {
	ptr, _ := a.segmentNodeAddr(offset)
	return link{addr: (*uint64)(ptr)}
}

// validateSegment reports whether a freed span of size bytes starting at
// offset is large enough to host the free-list machinery it would need to
// join the chain: the alignment padding in front of its node word, the node
// word itself (8 bytes), and a 4-byte margin, strictly less than size. A
// span that fails this check is reclaimed as discarded instead of tracked.
func (a *Arena) validateSegment(offset, size uint32) bool {
	if size < a.r.header.minSegmentSize.Load() {
		return false
	}
	_, padding := a.segmentNodeAddr(offset)
	return padding+8+4 < size
}

// findFreeListPosition walks the chain from the head looking for the
// segment whose size a new, size-byte segment should be inserted in front
// of, keeping the chain sorted non-increasing by size: the first node whose
// size is <= size. It returns the link pointing at that node, which is what
// a splice must CAS, together with that node's offset (nullOffset if the
// chain is exhausted, meaning the new segment belongs at the tail) and size.
//
// A tombstoned link encountered mid-walk means some other goroutine is
// between the two steps of removing that node; since the removal is
// guaranteed to complete or roll back quickly, findFreeListPosition simply
// restarts the walk from the head rather than trying to help.
func (a *Arena) findFreeListPosition(size uint32) (before link, offset uint32, nodeSize uint32) {
	var bo backoff

restart:
	before = a.head()
	for {
		v := before.load()
		next, nextSize := decodeNode(v)
		if next == nullOffset {
			return before, nullOffset, 0
		}
		if isTombstone(nextSize) {
			bo.snooze()
			goto restart
		}
		if nextSize <= size {
			return before, next, nextSize
		}
		before = a.nodeLink(next)
	}
}

// allocSlowPath looks for a free-list segment big enough for size bytes
// aligned to align. Because the chain is sorted largest-first, only the
// head is ever a candidate: if it doesn't fit, nothing does. It returns
// ok = false with a nil error when the free-list has nothing usable,
// signaling the caller to treat the region as exhausted, and
// errRetriesExhausted once WithMaximumRetries attempts have been used up.
func (a *Arena) allocSlowPath(size, align uint32) (d Descriptor, ok bool, err error) {
	var bo backoff
	var attempts uint32

	for {
		if a.r.maxRetries > 0 && attempts >= a.r.maxRetries {
			return Descriptor{}, false, errRetriesExhausted
		}
		attempts++

		head := a.head()
		v := head.load()
		headOffset, headSize := decodeNode(v)

		if headOffset == nullOffset {
			return Descriptor{}, false, nil
		}
		if isTombstone(headSize) {
			bo.snooze()
			continue
		}

		start := alignUp32(headOffset, align)
		if headSize < size || start+size > headOffset+headSize {
			// The largest available segment still can't satisfy this
			// request once alignment padding is accounted for; nothing
			// smaller in the chain can do better.
			return Descriptor{}, false, nil
		}

		// Phase 1: tombstone the head so no other goroutine starts
		// removing or inserting in front of it while we splice it out.
		if !head.cas(v, encodeNode(headOffset, 0)) {
			bo.snooze()
			continue
		}

		// Phase 2: read what the claimed node points at and physically
		// unlink by pointing the sentinel straight past it.
		nodeNext, nodeNextSize := decodeNode(a.nodeLink(headOffset).load())
		head.store(encodeNode(nodeNext, nodeNextSize))

		// Any alignment padding in front of the returned descriptor is
		// unaccounted waste; count it as discarded rather than silently
		// dropping it from the arena's bookkeeping.
		if frontPadding := start - headOffset; frontPadding > 0 {
			a.r.header.discarded.Add(frontPadding)
		}

		// The claimed segment may be larger than requested; rather than
		// waste the remainder, hand it straight back through the ordinary
		// deallocation path so it gets re-sorted into the chain at the
		// position its (smaller) size belongs at.
		segmentEnd := headOffset + headSize
		tailOffset := start + size
		if tailSize := segmentEnd - tailOffset; tailSize > 0 {
			_ = a.Dealloc(Descriptor{Offset: tailOffset, Cap: tailSize})
		}

		return Descriptor{Offset: start, Cap: size}, true, nil
	}
}

// largestFreeSegment peeks the free-list head without claiming it, for
// building a more informative InsufficientSpaceError. It returns 0 both when
// the list is empty (offset == nullOffset, whose size field is not a segment
// size) and when the head is mid-removal (a tombstone),
// leaving the caller to fall back to Remaining() in either case.
func (a *Arena) largestFreeSegment() uint32 {
	offset, size := decodeNode(a.head().load())
	if offset == nullOffset || isTombstone(size) {
		return 0
	}
	return size
}

// Dealloc returns the segment described by d to the arena. If it is too
// small to be worth tracking (see WithMinimumSegmentSize), its bytes are
// recorded as discarded instead of being linked into the free-list.
func (a *Arena) Dealloc(d Descriptor) error {
	if a.r.readOnly() {
		return ErrReadOnly
	}
	if d.Offset == 0 {
		return fmt.Errorf("arena: cannot deallocate the zero descriptor")
	}

	if !a.validateSegment(d.Offset, d.Cap) {
		a.r.header.discarded.Add(d.Cap)
		return nil
	}

	zeroRange(a.r.basePtr, d.Offset, d.Cap)

	node := a.nodeLink(d.Offset)
	var bo backoff

	for {
		before, offset, nodeSize := a.findFreeListPosition(d.Cap)
		prevVal := before.load()

		// The walk and this load are separate reads: if before no longer
		// points at the node the walk found (another goroutine inserted or
		// removed there, or tombstoned it), re-walk from the head.
		if next, nextSize := decodeNode(prevVal); next != offset || (next != nullOffset && nextSize != nodeSize) {
			bo.snooze()
			continue
		}

		node.store(encodeNode(offset, nodeSize))

		if before.cas(prevVal, encodeNode(d.Offset, d.Cap)) {
			return nil
		}

		bo.snooze()
	}
}

func zeroRange(base unsafe.Pointer, offset, size uint32) {
	if size == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(base, offset)), size)
	for i := range dst {
		dst[i] = 0
	}
}
