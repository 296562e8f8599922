package arena

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned by every mutating operation on an arena opened for
// read-only access (a read-only mmap, or the reopened half of a persisted
// region). Callers should compare with errors.Is.
var ErrReadOnly = errors.New("arena: region is read-only")

// InsufficientSpaceError is returned when the bump path has exhausted
// capacity and the free-list either has no segment large enough, or is
// empty. Available reports Remaining() when the list is empty (or its head
// is mid-removal), or the size of the largest free segment otherwise. A
// slow path that runs out of retries (WithMaximumRetries) is reported with
// this error too.
type InsufficientSpaceError struct {
	Requested uint32
	Available uint32
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("arena: insufficient space: requested %d, available %d", e.Requested, e.Available)
}

// errRetriesExhausted signals that a CAS retry loop hit its configured
// maximum attempts (WithMaximumRetries) without making progress.
var errRetriesExhausted = errors.New("arena: slow path exceeded maximum retries")
