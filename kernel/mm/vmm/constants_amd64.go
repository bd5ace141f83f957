// +build amd64

package vmm

const (
	// pageLevels indicates the number of page table levels supported by
	// the amd64 architecture when 4-level paging is active.
	pageLevels = 4

	// tableEntryCount is the number of entries in a page table at every
	// level. Each table occupies exactly one 4KiB frame.
	tableEntryCount = 512

	// ptePhysPageMask is a mask that allows us to extract the physical
	// memory address pointed to by a page table entry. For this
	// particular architecture, bits 12-51 contain the physical memory
	// address.
	ptePhysPageMask = uint64(0x000ffffffffff000)

	// indexBits is the number of virtual address bits that select an
	// entry within one table level. 9 bits amount to the 512 entries of
	// each level.
	indexBits = 9

	// indexMask extracts a level index from a shifted virtual address.
	indexMask = (1 << indexBits) - 1

	// userlandTop is the first virtual address past the canonical lower
	// half. Userland mappings and the free-range scan never cross it.
	userlandTop = uintptr(1) << 47
)

// pageLevelShifts defines the shift required to extract each page table
// index from a virtual address, ordered from the lowest level (L1) upwards.
// The fifth entry is reserved for 5-level paging which is not enabled.
var pageLevelShifts = [pageLevels + 1]uint8{
	12,
	21,
	30,
	39,
	48,
}
