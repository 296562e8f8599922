package arena

import "testing"

// TestFreeListSortedNonIncreasing walks the free-list after a handful of
// differently-sized deallocations and checks the core ordering invariant:
// sizes never increase moving away from the head, and no live node reports
// size 0 (a tombstone only ever exists mid-operation, never at rest).
func TestFreeListSortedNonIncreasing(t *testing.T) {
	a, err := New(WithCapacity(4096), WithMinimumSegmentSize(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	sizes := []uint32{64, 256, 32, 128, 96}
	descriptors := make([]Descriptor, 0, len(sizes))
	for _, s := range sizes {
		d, err := a.AllocBytes(s)
		if err != nil {
			t.Fatalf("AllocBytes(%d): %v", s, err)
		}
		descriptors = append(descriptors, d)
	}
	for _, d := range descriptors {
		if err := a.Dealloc(d); err != nil {
			t.Fatalf("Dealloc: %v", err)
		}
	}

	var walked []uint32
	offset, size := decodeNode(a.head().load())
	for offset != nullOffset {
		if size == 0 {
			t.Fatal("observed a resting tombstone (size == 0) in the free-list")
		}
		walked = append(walked, size)
		offset, size = decodeNode(a.nodeLink(offset).load())
	}

	for i := 1; i < len(walked); i++ {
		if walked[i] > walked[i-1] {
			t.Fatalf("free-list not sorted non-increasing: %v", walked)
		}
	}
	if len(walked) != len(sizes) {
		t.Fatalf("expected %d free-list nodes, walked %d: %v", len(sizes), len(walked), walked)
	}
}

// TestByteConservation checks that allocated + free-list bytes + discarded
// bytes never exceeds the high-water allocation mark, modulo the alignment
// padding Dealloc/allocSlowPath may account for separately.
func TestByteConservation(t *testing.T) {
	a, err := New(WithCapacity(2048), WithMinimumSegmentSize(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	var live []Descriptor
	for i := 0; i < 10; i++ {
		d, err := a.AllocBytes(40)
		if err != nil {
			t.Fatalf("AllocBytes: %v", err)
		}
		live = append(live, d)
	}
	for i := 0; i < 5; i++ {
		if err := a.Dealloc(live[i]); err != nil {
			t.Fatalf("Dealloc: %v", err)
		}
	}

	var freeListBytes uint32
	offset, size := decodeNode(a.head().load())
	for offset != nullOffset {
		freeListBytes += size
		offset, size = decodeNode(a.nodeLink(offset).load())
	}

	stats := a.Stats()
	liveBytes := uint32(len(live)-5) * 40
	if freeListBytes+liveBytes+a.Discarded() > stats.Allocated-a.r.dataOffset {
		t.Fatalf("byte accounting exceeds high-water mark: free=%d live=%d discarded=%d allocated=%d",
			freeListBytes, liveBytes, a.Discarded(), stats.Allocated-a.r.dataOffset)
	}
}

// TestAlignedAllocationRespectsAlignment covers invariant 4: any offset
// returned for a typed allocation satisfies that type's required alignment.
func TestAlignedAllocationRespectsAlignment(t *testing.T) {
	a, err := New(WithCapacity(512), WithMaximumAlignment(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	type wide struct {
		_ byte
		v [2]uint64
	}

	for i := 0; i < 8; i++ {
		d, err := Alloc[wide](a)
		if err != nil {
			t.Fatalf("Alloc[wide]: %v", err)
		}
		if d.Offset%8 != 0 {
			t.Fatalf("offset %d does not satisfy 8-byte alignment", d.Offset)
		}
	}
}
