package mm

// DirectMapOffset is the fixed virtual address where the higher-half direct
// map (HHDM) of all physical memory begins. The boot sequence installs this
// mapping before the memory managers come up; its value is part of the
// paging contract and must not change.
const DirectMapOffset = VirtAddr(0xFFFF800000000000)

// DirectMapAddress translates a physical address to the permanently-valid
// virtual address through which the kernel can access it without setting up
// a dedicated mapping.
func DirectMapAddress(addr PhysAddr) VirtAddr {
	return DirectMapOffset + VirtAddr(addr)
}
