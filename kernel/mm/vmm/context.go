package vmm

import (
	"ruelos/kernel"
	"ruelos/kernel/mm"
	"ruelos/kernel/mm/pmm"
)

// Context abstracts the physical-frame provider and the phys-to-virt
// translation that the page-table walker relies on. Keeping the policy out
// of the walker lets the same code manage any address space regardless of
// where its frames come from or how the walker reaches them.
type Context interface {
	// AllocatePage returns a page-aligned physical frame for use as a
	// page-table directory or a mapped data page.
	AllocatePage() (mm.PhysAddr, *kernel.Error)

	// DeallocatePage returns a frame previously obtained via AllocatePage.
	DeallocatePage(addr mm.PhysAddr)

	// PhysToVirt translates a physical address into a virtual address
	// through which the walker can access the underlying memory.
	PhysToVirt(addr mm.PhysAddr) mm.VirtAddr
}

// DirectMapContext implements Context on top of the frame pool, translating
// physical addresses through the kernel direct map. This is the context used
// for all address spaces once pmm.Init has handed memory over to the pool.
type DirectMapContext struct {
	Pool *pmm.FramePool
}

// AllocatePage pops a frame off the pool.
func (ctx *DirectMapContext) AllocatePage() (mm.PhysAddr, *kernel.Error) {
	return ctx.Pool.Allocate()
}

// DeallocatePage pushes a frame back into the pool.
func (ctx *DirectMapContext) DeallocatePage(addr mm.PhysAddr) {
	ctx.Pool.Deallocate(addr)
}

// PhysToVirt translates addr through the direct map.
func (ctx *DirectMapContext) PhysToVirt(addr mm.PhysAddr) mm.VirtAddr {
	return mm.DirectMapAddress(addr)
}
