package mm

// MemoryRegion describes one contiguous region of usable physical memory as
// reported by the bootloader. Reported bounds are not necessarily
// page-aligned.
type MemoryRegion struct {
	// Start is the physical address of the first byte in the region.
	Start PhysAddr

	// Length is the region size in bytes.
	Length uint64
}

// BootInfo carries the parts of the bootloader hand-off that the memory
// managers care about. The boot sequence fills it in from the platform
// memory map before initializing the allocators; parsing the memory map
// itself happens outside this tree.
type BootInfo struct {
	// BootstrapRegion is the largest usable region reported by the
	// bootloader. Its ownership is transferred to the bootstrap frame
	// allocator.
	BootstrapRegion MemoryRegion

	// UsableRegions lists every usable region, including the bootstrap
	// one. The frames in these regions that are not consumed by the
	// bootstrap allocator seed the frame pool.
	UsableRegions []MemoryRegion

	// KernelPhysAddr and KernelVirtAddr describe where the bootloader
	// loaded the kernel image.
	KernelPhysAddr PhysAddr
	KernelVirtAddr VirtAddr

	// KernelLength is the size of the loaded kernel image in bytes.
	KernelLength uint64
}
