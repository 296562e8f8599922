package arena

import (
	"sync/atomic"

	"github.com/arcbound/rarena/internal/concurrency"
)

// nullOffset marks the terminal node of the free-list and also doubles as
// the "no next segment" sentinel field. It mirrors the Rust implementation's
// use of u32::MAX.
const nullOffset uint32 = 1<<32 - 1

// headerAlignment is the alignment required of the region header. The
// sentinel word is the widest member (an 8-byte atomic word), so 8 bytes
// suffices.
const headerAlignment = 8

// defaultMinimumSegmentSize is the smallest freed segment that is considered
// worth keeping in the free-list: big enough to host its own 8-byte node
// word plus a 4-byte safety margin, rounded up to the node's alignment.
const defaultMinimumSegmentSize = 16

// Header is the fixed-layout metadata block placed at the start of a unified
// region (or kept in process memory for a non-unified, heap-only region). It
// holds every byte of authoritative shared state; everything else about the
// arena is derived from these four words.
//
// allocated/discarded/minSegmentSize are simple counters read and
// compare-and-swapped in place, so they use the typed sync/atomic wrappers.
// sentinel is manipulated with the same encode/decode CAS protocol as every
// other free-list node — most of which live at addresses computed at
// runtime inside the data region, where a typed atomic value cannot be
// constructed in place. So sentinel, like those in-region nodes, is
// operated on through the teacher's raw pointer-based helpers in
// internal/concurrency (CASUint64/LoadUint64/StoreUint64), keeping the
// sentinel and every other node word on one uniform code path.
//
// Field order is intentionally pinned (unlike the upstream design, which
// leaves it implementation-defined) so a file written by one build of this
// package can always be reopened by the same build. See DESIGN.md.
type Header struct {
	allocated      atomic.Uint32
	discarded      atomic.Uint32
	minSegmentSize atomic.Uint32
	_              uint32 // padding, keeps sentinel 8-byte aligned
	sentinel       uint64
}

// headerSize is sizeof(Header): three uint32 words, four bytes of padding,
// and one uint64 word.
const headerSize = 24

// resetFresh initializes a header for a brand-new region. dataOffset is
// where the first allocation will begin.
func (h *Header) resetFresh(dataOffset uint32, minSegmentSize uint32) {
	h.allocated.Store(dataOffset)
	h.discarded.Store(0)
	h.minSegmentSize.Store(minSegmentSize)
	concurrency.StoreUint64(&h.sentinel, encodeNode(nullOffset, nullOffset))
}

// encodeNode packs a free-list node's (next offset, size) pair into the
// single 64-bit atomic word used for both the sentinel and every segment
// node: (next << 32) | size.
func encodeNode(next, size uint32) uint64 {
	return uint64(next)<<32 | uint64(size)
}

// decodeNode is the inverse of encodeNode.
func decodeNode(v uint64) (next, size uint32) {
	return uint32(v >> 32), uint32(v)
}

// isTombstone reports whether a decoded node is mid-removal by another
// goroutine: logically absent, but not yet physically unlinked.
func isTombstone(size uint32) bool {
	return size == 0
}
