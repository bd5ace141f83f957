package kernel

import "unsafe"

// Memset fills size bytes starting at addr with value. The bulk of the
// region is written as 8-byte words; the unaligned head and tail are filled
// byte by byte so addr and size carry no alignment requirement even though
// the usual caller is scrubbing a freshly allocated page frame.
func Memset(addr uintptr, value byte, size uintptr) {
	pattern := uint64(value) * 0x0101010101010101

	for ; size > 0 && addr&7 != 0; addr, size = addr+1, size-1 {
		*(*byte)(unsafe.Pointer(addr)) = value
	}

	for ; size >= 8; addr, size = addr+8, size-8 {
		*(*uint64)(unsafe.Pointer(addr)) = pattern
	}

	for ; size > 0; addr, size = addr+1, size-1 {
		*(*byte)(unsafe.Pointer(addr)) = value
	}
}
