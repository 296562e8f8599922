package arena

import "github.com/arcbound/rarena/internal/concurrency"

// tags is an optional, lock-free side table mapping a Descriptor's offset to
// a caller-supplied debug label. It exists purely for diagnostics — nothing
// in the allocation or deallocation path consults it — so it is backed by
// internal/concurrency's general-purpose LockFreeMap rather than anything
// bespoke to the free-list's own node words.
type tags struct {
	m *concurrency.LockFreeMap[uint32, string]
}

func newTags() *tags {
	return &tags{m: concurrency.NewLockFreeMap[uint32, string](64, func(k uint32) uint64 { return uint64(k) })}
}

// Tag attaches a debug label to the allocation at offset, overwriting any
// label already there. Labels are not persisted and do not survive Close.
func (a *Arena) Tag(offset uint32, label string) {
	a.r.tags.m.Store(offset, label)
}

// TagOf returns the label previously attached to offset, if any.
func (a *Arena) TagOf(offset uint32) (string, bool) {
	return a.r.tags.m.Load(offset)
}

// Untag removes a debug label. It reports whether one was present.
func (a *Arena) Untag(offset uint32) bool {
	return a.r.tags.m.Delete(offset)
}
