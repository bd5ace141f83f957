package vmm

import "ruelos/kernel/mm"

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

const (
	// FlagPresent is set when the entry maps a frame or points to a
	// lower-level directory.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this
	// page. If not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and
	// write-back caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage marks a leaf mapping installed above the lowest table
	// level (a 2MiB or 1GiB page). It has no meaning on L1 entries.
	FlagHugePage

	// FlagGlobal if set, prevents the TLB from flushing the cached memory
	// address for this page when swapping page tables by updating the CR3
	// register.
	FlagGlobal

	// FlagKernelOwned marks a root-level entry as part of the kernel
	// mappings that get spliced into every process address space. This is
	// one of the OS-reserved entry bits.
	FlagKernelOwned

	// FlagNotOwned marks an entry whose target frame is not owned by the
	// address space it appears in; address space teardown skips such
	// entries instead of releasing their frames. This is one of the
	// OS-reserved entry bits.
	FlagNotOwned

	// FlagNoExecute if set, indicates that a page contains non-executable
	// code.
	FlagNoExecute PageTableEntryFlag = 1 << 63
)

// PageTableEntry describes one slot of a page table. An entry encodes a
// physical frame address and a set of flags; the address bits are only
// meaningful while FlagPresent is set.
type PageTableEntry uint64

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry(uint64(*pte) &^ uint64(flags))
}

// Flags returns the page table entry flags with the address bits masked out.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint64(pte) &^ ptePhysPageMask)
}

// Address returns the physical address that this page table entry points to.
func (pte PageTableEntry) Address() mm.PhysAddr {
	return mm.PhysAddr(uint64(pte) & ptePhysPageMask)
}

// SetAddress updates the page table entry to point to the given physical
// address. The address must be aligned to the entry's mapping granularity.
func (pte *PageTableEntry) SetAddress(addr mm.PhysAddr) {
	*pte = PageTableEntry((uint64(*pte) &^ ptePhysPageMask) | (uint64(addr) & ptePhysPageMask))
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() mm.Frame {
	return mm.FrameFromAddress(pte.Address())
}

// SetFrame updates the page table entry to point to the given physical frame.
func (pte *PageTableEntry) SetFrame(frame mm.Frame) {
	pte.SetAddress(frame.Address())
}
