//go:build !unix

package arena

import (
	"fmt"
	"unsafe"
)

// mmapBackend does not exist on non-Unix build targets; file-backed and
// anonymous-mapping constructors fail with a descriptive error instead.
// Heap-backed arenas (New) are unaffected and work on every platform. The
// stub still implements the backend interface so arena.go can reference it
// uniformly across build targets.
type mmapBackend struct{}

func newFileBackend(path string, size uint32, lock, shrinkOnDrop bool) (*mmapBackend, bool, error) {
	return nil, false, fmt.Errorf("arena: file-backed regions require a unix build target")
}

func newReadOnlyFileBackend(path string) (*mmapBackend, error) {
	return nil, fmt.Errorf("arena: file-backed regions require a unix build target")
}

func newAnonymousBackend(size uint32) (*mmapBackend, error) {
	return nil, fmt.Errorf("arena: anonymous mappings require a unix build target")
}

func (m *mmapBackend) base() unsafe.Pointer { return nil }
func (m *mmapBackend) capacity() uint32     { return 0 }
func (m *mmapBackend) readOnly() bool       { return true }
func (m *mmapBackend) flush() error         { return nil }
func (m *mmapBackend) flushAsync() error    { return nil }
func (m *mmapBackend) close(uint32) error   { return nil }
