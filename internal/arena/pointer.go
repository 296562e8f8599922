package arena

import "unsafe"

// alignUp32 rounds size up to the next multiple of align (align must be a
// power of two). It is the fixed-width counterpart of the teacher's
// allocator.alignUp(uintptr, uintptr) helper in the now-removed
// internal/allocator/allocator.go, narrowed to uint32 since every on-region
// offset and size in this package fits in 32 bits.
func alignUp32(size, align uint32) uint32 {
	if align == 0 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

// pointer translates a data offset into a raw address within the region.
// Offset 0 is reserved as the "null" descriptor and always yields nil,
// regardless of whether the region would otherwise have bytes there.
func (a *Arena) pointer(offset uint32) unsafe.Pointer {
	if offset == 0 {
		return nil
	}
	return unsafe.Add(a.r.basePtr, offset)
}

// Pointer returns the address of the byte at offset within the arena's data
// region. Offset 0 returns nil. The returned pointer must not be retained
// past the arena's Close.
func (a *Arena) Pointer(offset uint32) unsafe.Pointer {
	return a.pointer(offset)
}

// PointerMut is identical to Pointer but panics if the arena is read-only,
// since callers asking for a mutable pointer intend to write through it.
func (a *Arena) PointerMut(offset uint32) unsafe.Pointer {
	if a.r.readOnly() {
		panic("arena: PointerMut called on a read-only region")
	}
	return a.pointer(offset)
}

// Offset computes the offset of ptr relative to the arena's base address.
// The caller must guarantee ptr was derived from Pointer/PointerMut (or a
// descriptor) returned by this same arena; otherwise the result is
// meaningless.
func (a *Arena) Offset(ptr unsafe.Pointer) uint32 {
	return uint32(uintptr(ptr) - uintptr(a.r.basePtr))
}

// segmentNodeAddr returns the address of the AtomicU64-aligned free-list
// node word that would live at the start of a segment beginning at offset,
// after any padding needed to satisfy 8-byte alignment, along with the total
// padding consumed.
func (a *Arena) segmentNodeAddr(offset uint32) (ptr unsafe.Pointer, padding uint32) {
	raw := uintptr(a.r.basePtr) + uintptr(offset)
	aligned := (raw + 7) &^ 7
	padding = uint32(aligned - raw)
	return unsafe.Pointer(aligned), padding
}
