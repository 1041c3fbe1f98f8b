package storage

import "unsafe"

// CacheLineSize is a common cache line size, typically 64 bytes.
const CacheLineSize = 64

// AlignedSize rounds size up to the nearest cache line multiple.
func AlignedSize(size int) int {
	return (size + CacheLineSize - 1) &^ (CacheLineSize - 1)
}

// AlignedBytes allocates a byte slice whose underlying array starts on a
// cache line boundary.
func AlignedBytes(size int) []byte {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size+CacheLineSize-1)
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	offset := uintptr(0)
	if mod := ptr % CacheLineSize; mod != 0 {
		offset = CacheLineSize - mod
	}
	return buf[offset : offset+uintptr(size)]
}
