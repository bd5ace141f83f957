// Package vmm implements the virtual memory manager: the 4-level page table
// walker, the mapping primitives for 4KiB, 2MiB and 1GiB leaves and the
// address-space type built on top of them. Physical frames and the virtual
// addresses to reach them come from a pluggable Context so the same walker
// serves both the bootstrap phase and regular runtime allocation.
package vmm

import (
	"ruelos/kernel"
	"ruelos/kernel/kfmt"
	"ruelos/kernel/mm"
	"ruelos/kernel/mm/pmm"
)

// newAddressSpaceFn is overridden by tests so the kernel space can be built
// on top of a test context instead of the frame pool.
var newAddressSpaceFn = NewAddressSpace

// Init constructs the kernel address space. It maps the kernel image at its
// bootloader-assigned virtual address and establishes the higher-half direct
// map covering every usable physical region, then tags the root entries of
// the space so process address spaces can splice the kernel sub-trees into
// their own roots.
//
// The returned space is not yet active; the boot sequence activates it and
// then leaks it, as the kernel space is never torn down.
func Init(bootInfo *mm.BootInfo, pool *pmm.FramePool) (*AddressSpace, *kernel.Error) {
	space, err := newAddressSpaceFn(&DirectMapContext{Pool: pool})
	if err != nil {
		return nil, err
	}

	kernelLen := mm.Size(mm.PhysAddr(bootInfo.KernelLength).AlignUp(mm.PageSize))
	err = space.MapRange(
		bootInfo.KernelVirtAddr,
		bootInfo.KernelPhysAddr,
		kernelLen,
		FlagRW|FlagGlobal|FlagNotOwned,
	)
	if err != nil {
		return nil, err
	}

	directMapLen := directMapLength(bootInfo)
	err = space.MapRange(
		mm.DirectMapOffset,
		0,
		directMapLen,
		FlagRW|FlagGlobal|FlagNotOwned|FlagNoExecute,
	)
	if err != nil {
		return nil, err
	}

	space.TagKernelEntries()

	kfmt.Printf("[vmm] kernel image mapped at 0x%x, size: %d bytes\n",
		uint64(bootInfo.KernelVirtAddr), uint64(kernelLen))
	kfmt.Printf("[vmm] direct map established at 0x%x, covering %dMb\n",
		uint64(mm.DirectMapOffset), uint64(directMapLen/mm.Mb))

	return space, nil
}

// directMapLength returns the page-aligned length of physical memory the
// direct map must cover: everything from address zero up to the end of the
// highest usable region.
func directMapLength(bootInfo *mm.BootInfo) mm.Size {
	var maxEnd mm.PhysAddr
	for _, region := range bootInfo.UsableRegions {
		if end := region.Start + mm.PhysAddr(region.Length); end > maxEnd {
			maxEnd = end
		}
	}

	return mm.Size(maxEnd.AlignUp(mm.PageSize))
}

// TagKernelEntries marks every present root entry with FlagKernelOwned.
// Kernel mappings all live in the higher half so at this point in the boot
// sequence the present root entries are exactly the kernel sub-trees; the
// tag is what InheritKernelMappings selects on when building process spaces.
func (space *AddressSpace) TagKernelEntries() {
	state := lockFn(&space.lock)
	defer unlockFn(&space.lock, state)

	table := space.rootTable()
	for i := 0; i < tableEntryCount; i++ {
		if table[i].HasFlags(FlagPresent) {
			table[i].SetFlags(FlagKernelOwned)
		}
	}
}
