package vmm

import (
	"unsafe"

	"ruelos/kernel"
	"ruelos/kernel/mm"
)

// PageTable describes one level of the 4-level page table radix tree. A
// table holds 512 entries and occupies exactly one, naturally aligned,
// physical frame.
type PageTable [tableEntryCount]PageTableEntry

// PageTableIndex is a 9-bit slice of a virtual address selecting one entry
// within a PageTable. Valid values are in [0, 512).
type PageTableIndex uint16

// SplitVirtAddr breaks a virtual address into the five table indices defined
// by the architecture, ordered from the lowest level (L1) upwards. The fifth
// index is only consumed by 5-level paging and is ignored by the walker.
func SplitVirtAddr(virt mm.VirtAddr) [pageLevels + 1]PageTableIndex {
	var indices [pageLevels + 1]PageTableIndex
	for level := 0; level <= pageLevels; level++ {
		indices[level] = PageTableIndex((virt >> pageLevelShifts[level]) & indexMask)
	}
	return indices
}

// JoinIndices reconstructs the low 48 bits of the virtual address that the
// supplied table indices were derived from. The returned address is always
// 4KiB aligned since the page-offset bits are not part of any index.
func JoinIndices(indices [pageLevels + 1]PageTableIndex) mm.VirtAddr {
	var virt mm.VirtAddr
	for level := 0; level < pageLevels; level++ {
		virt |= mm.VirtAddr(indices[level]) << pageLevelShifts[level]
	}
	return virt
}

// tableAt reinterprets the memory mapped at virtAddr as a page table. This
// is the only spot where raw memory gets reinterpreted; the caller must own
// the backing frame through the context that produced virtAddr.
func tableAt(virtAddr mm.VirtAddr) *PageTable {
	return (*PageTable)(unsafe.Pointer(uintptr(virtAddr)))
}

// getDirectory returns the next-level page table reachable through the entry
// at index, allocating and zeroing a fresh directory frame via the supplied
// context if the entry is empty. For entries that already point to a
// directory the requested flags are OR-ed into the entry: flags accumulate
// permissively across sub-trees shared by multiple mappings. Walking through
// a huge-page leaf is refused with ErrAlreadyMapped.
func (pt *PageTable) getDirectory(index PageTableIndex, flags PageTableEntryFlag, ctx Context) (*PageTable, *kernel.Error) {
	entry := &pt[index]

	switch {
	case !entry.HasFlags(FlagPresent):
		addr, err := ctx.AllocatePage()
		if err != nil {
			return nil, mm.ErrOutOfMemory
		}

		table := tableAt(ctx.PhysToVirt(addr))
		kernel.Memset(uintptr(unsafe.Pointer(table)), 0, uintptr(mm.PageSize))

		*entry = 0
		entry.SetAddress(addr)
		entry.SetFlags(flags | FlagPresent)
		return table, nil
	case entry.HasFlags(FlagHugePage):
		return nil, ErrAlreadyMapped
	default:
		entry.SetFlags(flags)
		return tableAt(ctx.PhysToVirt(entry.Address())), nil
	}
}
