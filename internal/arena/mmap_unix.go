//go:build unix

package arena

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapBackend is a file- or anonymously-backed memory mapping. The call
// sequence (Mmap with PROT_READ|PROT_WRITE and MAP_SHARED, Msync to flush,
// Munmap to tear down, Flock for the advisory lock option) is grounded in
// the retrieved marmos91-dittofs mmap-backed WAL persister, which wires the
// same golang.org/x/sys/unix primitives for an append-only log file.
type mmapBackend struct {
	data         []byte
	file         *os.File // nil for anonymous mappings
	locked       bool
	shrinkOnDrop bool
	ro           bool
}

// newFileBackend creates (or reuses) a writable file at path, sized to at
// least size bytes, and maps it MAP_SHARED so writes are visible to other
// processes mapping the same file and are eventually flushed back by the OS.
// newFileBackend also reports whether the file was empty before it was
// sized up, so the caller knows whether to initialize a fresh header or
// trust one already on disk.
func newFileBackend(path string, size uint32, lock, shrinkOnDrop bool) (be *mmapBackend, wasEmpty bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("arena: open backing file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("arena: stat backing file: %w", err)
	}
	wasEmpty = info.Size() == 0

	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("arena: truncate backing file: %w", err)
		}
	}

	if lock {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("arena: lock backing file: %w", err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		if lock {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		}
		f.Close()
		return nil, false, fmt.Errorf("arena: mmap backing file: %w", err)
	}

	return &mmapBackend{
		data:         data,
		file:         f,
		locked:       lock,
		shrinkOnDrop: shrinkOnDrop,
	}, wasEmpty, nil
}

// newReadOnlyFileBackend maps an existing file read-only. The region's
// capacity is the file's current size; the caller is expected to have
// written a valid header and data with a writable arena first.
func newReadOnlyFileBackend(path string) (*mmapBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("arena: open backing file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: stat backing file: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: mmap backing file: %w", err)
	}

	return &mmapBackend{
		data: data,
		file: f,
		ro:   true,
	}, nil
}

// newAnonymousBackend creates a volatile mapping with no backing file,
// useful for exercising the same page-backed code path as a file mapping
// without touching the filesystem.
func newAnonymousBackend(size uint32) (*mmapBackend, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena: anonymous mmap: %w", err)
	}

	return &mmapBackend{data: data}, nil
}

func (m *mmapBackend) base() unsafe.Pointer {
	if len(m.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(m.data))
}

func (m *mmapBackend) capacity() uint32 { return uint32(len(m.data)) }
func (m *mmapBackend) readOnly() bool   { return m.ro }

func (m *mmapBackend) flush() error {
	if m.ro || len(m.data) == 0 {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mmapBackend) flushAsync() error {
	if m.ro || len(m.data) == 0 {
		return nil
	}
	return unix.Msync(m.data, unix.MS_ASYNC)
}

func (m *mmapBackend) close(usedBytes uint32) error {
	if len(m.data) == 0 {
		return nil
	}

	if !m.ro {
		_ = unix.Msync(m.data, unix.MS_SYNC)
	}

	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("arena: munmap: %w", err)
	}
	m.data = nil

	if m.file == nil {
		return nil
	}
	defer m.file.Close()

	if m.shrinkOnDrop && !m.ro {
		if err := m.file.Truncate(int64(usedBytes)); err != nil {
			return fmt.Errorf("arena: truncate on close: %w", err)
		}
	}

	if !m.ro {
		if err := m.file.Sync(); err != nil {
			return fmt.Errorf("arena: sync on close: %w", err)
		}
	}

	if m.locked {
		if err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN); err != nil {
			return fmt.Errorf("arena: unlock backing file: %w", err)
		}
	}

	return nil
}
