package pmm

import (
	"ruelos/kernel"
	"ruelos/kernel/mm"
)

var errBumpBaseAboveTop = &kernel.Error{Module: "pmm", Message: "bump allocator base is above its top"}

// BumpAllocator implements the bootstrap physical frame source which is used
// before the frame pool comes up.
//
// The allocator owns one contiguous physical region and carves blocks off
// its top, moving the top downward with every allocation:
//
//	+----------------------------------+
//	| |              |                 |
//	+----------------------------------+
//	  ^              ^
//	  base           top
//
// Allocating from the top keeps low physical memory, which legacy structures
// tend to require, available for longer. Allocated blocks can never be freed
// individually; they either become permanent kernel structures or seed data
// for the frame pool. Once the pool is up the remaining region [base, top)
// is handed over to it and the allocator is retired.
type BumpAllocator struct {
	base mm.PhysAddr
	top  mm.PhysAddr

	// originalTop records the region top at Init time so the boot code
	// can tell which frames the allocator consumed.
	originalTop mm.PhysAddr
}

// Init sets up the bump allocator so it owns the physical region [base, top).
// The caller must guarantee that nothing else uses this region.
func (alloc *BumpAllocator) Init(base, top mm.PhysAddr) *kernel.Error {
	if base > top {
		return errBumpBaseAboveTop
	}

	alloc.base = base
	alloc.top = top
	alloc.originalTop = top
	return nil
}

// Allocate carves size bytes aligned to align off the top of the region.
// align must be a power of two. If the aligned block would fall below the
// region base, Allocate returns mm.ErrOutOfMemory and leaves the allocator
// state untouched so further (smaller) allocations may still succeed.
func (alloc *BumpAllocator) Allocate(size uint64, align mm.Size) (mm.PhysAddr, *kernel.Error) {
	if mm.PhysAddr(size) > alloc.top {
		return 0, mm.ErrOutOfMemory
	}

	ret := (alloc.top - mm.PhysAddr(size)).AlignDown(align)
	if ret < alloc.base {
		return 0, mm.ErrOutOfMemory
	}

	alloc.top = ret
	return ret, nil
}

// AllocFrame reserves a single page-aligned frame.
func (alloc *BumpAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	addr, err := alloc.Allocate(uint64(mm.PageSize), mm.PageSize)
	if err != nil {
		return mm.InvalidFrame, err
	}

	return mm.FrameFromAddress(addr), nil
}

// Retire shuts the allocator down once ownership of its remaining free
// region has passed to the frame pool. Every allocation attempted after
// Retire fails with mm.ErrOutOfMemory: a frame handed out at that point
// would also be sitting in the pool.
func (alloc *BumpAllocator) Retire() {
	alloc.base = alloc.top
}

// Base returns the first byte of the region owned by this allocator.
func (alloc *BumpAllocator) Base() mm.PhysAddr { return alloc.base }

// Top returns the next free byte in the owned region. The top only ever
// moves downward.
func (alloc *BumpAllocator) Top() mm.PhysAddr { return alloc.top }

// OriginalTop returns the region top as it was when Init was called.
func (alloc *BumpAllocator) OriginalTop() mm.PhysAddr { return alloc.originalTop }
