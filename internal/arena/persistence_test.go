//go:build unix

package arena

import (
	"path/filepath"
	"testing"
)

// TestOpenFileRoundTripPreservesState writes allocations and a freed segment
// to a file-backed arena, closes it, and reopens the same file writable: the
// bump watermark, a live allocation's bytes, and the free-list must all
// survive the round trip instead of being reinitialized.
func TestOpenFileRoundTripPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.arena")

	// 192 data bytes hold exactly the 64- and 128-byte allocations below, so
	// after the reopen the bump path is full and reuse has to come from the
	// persisted free-list.
	a, err := OpenFile(path, WithCapacity(192), WithMinimumSegmentSize(16))
	if err != nil {
		t.Fatalf("OpenFile (create): %v", err)
	}

	kept, err := a.AllocBytes(64)
	if err != nil {
		t.Fatalf("AllocBytes: %v", err)
	}
	*(*byte)(a.PointerMut(kept.Offset)) = 0xAB

	freed, err := a.AllocBytes(128)
	if err != nil {
		t.Fatalf("AllocBytes: %v", err)
	}
	if err := a.Dealloc(freed); err != nil {
		t.Fatalf("Dealloc: %v", err)
	}

	sizeBeforeClose := a.Size()
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFile(path, WithCapacity(192), WithMinimumSegmentSize(16))
	if err != nil {
		t.Fatalf("OpenFile (reopen): %v", err)
	}
	defer reopened.Close()

	if got := reopened.Size(); got != sizeBeforeClose {
		t.Fatalf("bump watermark not preserved: got %d, want %d", got, sizeBeforeClose)
	}
	if got := *(*byte)(reopened.Pointer(kept.Offset)); got != 0xAB {
		t.Fatalf("live allocation's bytes not preserved: got %#x, want 0xab", got)
	}
	if largest := reopened.largestFreeSegment(); largest != freed.Cap {
		t.Fatalf("free-list not preserved across reopen: largest segment %d, want %d", largest, freed.Cap)
	}

	reused, err := reopened.AllocBytes(freed.Cap)
	if err != nil {
		t.Fatalf("AllocBytes after reopen: %v", err)
	}
	if reused.Offset != freed.Offset {
		t.Fatalf("reopened free-list did not reuse the freed segment: got offset %d, want %d", reused.Offset, freed.Offset)
	}
}
