// Package pmm implements the kernel's physical memory allocators: the
// bootstrap bump allocator that serves early fixed allocations and the
// steady-state frame pool that every other allocation goes through.
package pmm

import (
	"ruelos/kernel"
	"ruelos/kernel/kfmt"
	"ruelos/kernel/mm"
)

// Init sets up the physical memory allocation sub-system. It hands ownership
// of the bootstrap region described by bootInfo to the bump allocator,
// prints the system memory map, sizes the frame pool so it can track every
// usable frame and finally seeds the pool with all usable frames that were
// not consumed by the bump allocator or the kernel image.
//
// Init consumes the bump allocator: seeding transfers ownership of its
// remaining region to the pool, so the allocator is retired before Init
// returns and any further allocation through it fails. From this point on
// the frame pool serves all requests.
func Init(bootInfo *mm.BootInfo, bump *BumpAllocator, pool *FramePool) *kernel.Error {
	region := bootInfo.BootstrapRegion
	base := region.Start.AlignUp(mm.PageSize)
	top := (region.Start + mm.PhysAddr(region.Length)).AlignDown(mm.PageSize)
	if err := bump.Init(base, top); err != nil {
		return err
	}

	printMemoryMap(bootInfo)

	var capacity int
	for _, region := range bootInfo.UsableRegions {
		capacity += int(region.Length / uint64(mm.PageSize))
	}

	if err := pool.Init(bump, capacity); err != nil {
		return err
	}

	seedFramePool(bootInfo, bump, pool)
	bump.Retire()
	return nil
}

// seedFramePool pushes every page-aligned usable frame to the pool, skipping
// the frames consumed by the bump allocator (its backing array included) and
// the frames occupied by the kernel image.
func seedFramePool(bootInfo *mm.BootInfo, bump *BumpAllocator, pool *FramePool) {
	var (
		usedStart   = bump.Top().AlignDown(mm.PageSize)
		usedStop    = bump.OriginalTop()
		kernelStart = bootInfo.KernelPhysAddr.AlignDown(mm.PageSize)
		kernelStop  = (bootInfo.KernelPhysAddr + mm.PhysAddr(bootInfo.KernelLength)).AlignUp(mm.PageSize)
	)

	for _, region := range bootInfo.UsableRegions {
		addr := region.Start.AlignUp(mm.PageSize)
		regionEnd := (region.Start + mm.PhysAddr(region.Length)).AlignDown(mm.PageSize)

		for ; addr < regionEnd; addr += mm.PhysAddr(mm.PageSize) {
			if addr >= usedStart && addr < usedStop {
				continue
			}
			if addr >= kernelStart && addr < kernelStop {
				continue
			}

			pool.AssumeAvailable(addr)
		}
	}
}

// printMemoryMap logs the memory regions reported by the bootloader together
// with the location of the kernel image and the bootstrap region.
func printMemoryMap(bootInfo *mm.BootInfo) {
	kfmt.Printf("[pmm] system memory map:\n")

	var totalFree mm.Size
	for _, region := range bootInfo.UsableRegions {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d\n",
			uint64(region.Start),
			uint64(region.Start)+region.Length,
			region.Length,
		)
		totalFree += mm.Size(region.Length)
	}

	kfmt.Printf("[pmm] available memory: %dKb\n", uint64(totalFree/mm.Kb))
	kfmt.Printf("[pmm] kernel loaded at 0x%x (virt 0x%x), size: %d bytes\n",
		uint64(bootInfo.KernelPhysAddr),
		uintptr(bootInfo.KernelVirtAddr),
		bootInfo.KernelLength,
	)
	kfmt.Printf("[pmm] bootstrap allocator owns [0x%x - 0x%x]\n",
		uint64(bootInfo.BootstrapRegion.Start),
		uint64(bootInfo.BootstrapRegion.Start)+bootInfo.BootstrapRegion.Length,
	)
}
