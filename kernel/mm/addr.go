package mm

import "ruelos/kernel"

var (
	// ErrOutOfMemory is returned by all memory allocation operations in
	// this tree when no more physical memory is available. Callers must
	// propagate it; promoting it to a fatal condition is the
	// responsibility of the top-level boot sequence.
	ErrOutOfMemory = &kernel.Error{Module: "mm", Message: "out of memory"}
)

// PhysAddr describes a byte offset into physical RAM. Frame-granular values
// are always aligned to PageSize.
type PhysAddr uint64

// AlignDown rounds this address down to the previous multiple of align.
// align must be a power of two.
func (addr PhysAddr) AlignDown(align Size) PhysAddr {
	return addr & ^PhysAddr(align-1)
}

// AlignUp rounds this address up to the next multiple of align. align must
// be a power of two.
func (addr PhysAddr) AlignUp(align Size) PhysAddr {
	return (addr + PhysAddr(align-1)) & ^PhysAddr(align-1)
}

// IsAligned returns true if this address is a multiple of align.
func (addr PhysAddr) IsAligned(align Size) bool {
	return addr&PhysAddr(align-1) == 0
}

// VirtAddr describes a byte offset into a virtual address space.
type VirtAddr uintptr

// AlignDown rounds this address down to the previous multiple of align.
// align must be a power of two.
func (addr VirtAddr) AlignDown(align Size) VirtAddr {
	return addr & ^VirtAddr(align-1)
}

// AlignUp rounds this address up to the next multiple of align. align must
// be a power of two.
func (addr VirtAddr) AlignUp(align Size) VirtAddr {
	return (addr + VirtAddr(align-1)) & ^VirtAddr(align-1)
}

// IsAligned returns true if this address is a multiple of align.
func (addr VirtAddr) IsAligned(align Size) bool {
	return addr&VirtAddr(align-1) == 0
}
