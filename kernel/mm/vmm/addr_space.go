package vmm

import (
	"unsafe"

	"ruelos/kernel"
	"ruelos/kernel/cpu"
	"ruelos/kernel/mm"
	"ruelos/kernel/sync"
)

var (
	// ErrAlreadyMapped is returned when a mapping request targets a
	// virtual address that is already backed by a leaf of any size. The
	// existing mapping is never silently replaced or merged.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual address is already mapped"}

	// ErrNotMapped is returned by translations and unmap requests for
	// virtual addresses without a live 4KiB mapping.
	ErrNotMapped = &kernel.Error{Module: "vmm", Message: "virtual address is not mapped"}

	// The following functions are mocked by tests; the real ones operate
	// on privileged CPU state.
	flushTLBEntryFn = cpu.FlushTLBEntry
	switchPDTFn     = cpu.SwitchPDT
	lockFn          = (*sync.IRQLock).Acquire
	unlockFn        = (*sync.IRQLock).Release
)

// directoryFlagMask selects the control bits that may propagate into
// directory entries while walking towards a leaf. Leaf-only bits such as
// FlagHugePage or FlagGlobal must never be set on a directory.
const directoryFlagMask = FlagRW | FlagUserAccessible | FlagWriteThroughCaching | FlagDoNotCache

// AddressSpace manages one 4-level page table tree. Page-table and data
// frames are obtained through the context supplied at construction time;
// all map and unmap operations are serialized by an IRQ-masking lock.
type AddressSpace struct {
	lock sync.IRQLock
	root mm.PhysAddr
	ctx  Context
}

// NewAddressSpace allocates a zeroed root table through ctx and returns an
// address space rooted at it. Allocation failures surface as
// mm.ErrOutOfMemory.
func NewAddressSpace(ctx Context) (*AddressSpace, *kernel.Error) {
	root, err := ctx.AllocatePage()
	if err != nil {
		return nil, mm.ErrOutOfMemory
	}

	table := tableAt(ctx.PhysToVirt(root))
	kernel.Memset(uintptr(unsafe.Pointer(table)), 0, uintptr(mm.PageSize))

	return &AddressSpace{root: root, ctx: ctx}, nil
}

// Root returns the physical address of the root page table. This is the
// value that gets loaded into the CR3 register when the space is activated.
func (space *AddressSpace) Root() mm.PhysAddr {
	return space.root
}

func (space *AddressSpace) rootTable() *PageTable {
	return tableAt(space.ctx.PhysToVirt(space.root))
}

// entryForLevel walks the tree from the root down to leafLevel, allocating
// any missing directories, and returns a pointer to the entry at leafLevel
// that covers virt. The supplied flags accumulate into every directory entry
// traversed so that sub-trees shared by multiple mappings keep the most
// permissive settings.
func (space *AddressSpace) entryForLevel(virt mm.VirtAddr, flags PageTableEntryFlag, leafLevel int) (*PageTableEntry, *kernel.Error) {
	indices := SplitVirtAddr(virt)
	table := space.rootTable()

	var err *kernel.Error
	for level := pageLevels - 1; level > leafLevel; level-- {
		if table, err = table.getDirectory(indices[level], flags&directoryFlagMask, space.ctx); err != nil {
			return nil, err
		}
	}

	return &table[indices[leafLevel]], nil
}

func (space *AddressSpace) entry4KiB(virt mm.VirtAddr, flags PageTableEntryFlag) (*PageTableEntry, *kernel.Error) {
	return space.entryForLevel(virt, flags, 0)
}

func (space *AddressSpace) entry2MiB(virt mm.VirtAddr, flags PageTableEntryFlag) (*PageTableEntry, *kernel.Error) {
	return space.entryForLevel(virt, flags, 1)
}

func (space *AddressSpace) entry1GiB(virt mm.VirtAddr, flags PageTableEntryFlag) (*PageTableEntry, *kernel.Error) {
	return space.entryForLevel(virt, flags, 2)
}

// installLeaf writes a leaf mapping into entry. The entry must be empty;
// mapping over any present leaf fails with ErrAlreadyMapped and leaves the
// original entry untouched.
func installLeaf(entry *PageTableEntry, virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	if entry.HasFlags(FlagPresent) {
		return ErrAlreadyMapped
	}

	*entry = 0
	entry.SetAddress(phys)
	entry.SetFlags(flags | FlagPresent)
	flushTLBEntryFn(uintptr(virt))

	return nil
}

func (space *AddressSpace) map4KiB(virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	entry, err := space.entry4KiB(virt, flags)
	if err != nil {
		return err
	}

	return installLeaf(entry, virt, phys, flags)
}

func (space *AddressSpace) map2MiB(virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	entry, err := space.entry2MiB(virt, flags)
	if err != nil {
		return err
	}

	return installLeaf(entry, virt, phys, flags|FlagHugePage)
}

func (space *AddressSpace) map1GiB(virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	entry, err := space.entry1GiB(virt, flags)
	if err != nil {
		return err
	}

	return installLeaf(entry, virt, phys, flags|FlagHugePage)
}

// Map4KiB establishes a 4KiB mapping of phys at virt. Both addresses must be
// page-aligned.
func (space *AddressSpace) Map4KiB(virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	state := lockFn(&space.lock)
	err := space.map4KiB(virt, phys, flags)
	unlockFn(&space.lock, state)
	return err
}

// Map2MiB establishes a 2MiB mapping of phys at virt. Both addresses must be
// 2MiB-aligned.
func (space *AddressSpace) Map2MiB(virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	state := lockFn(&space.lock)
	err := space.map2MiB(virt, phys, flags)
	unlockFn(&space.lock, state)
	return err
}

// Map1GiB establishes a 1GiB mapping of phys at virt. Both addresses must be
// 1GiB-aligned.
func (space *AddressSpace) Map1GiB(virt mm.VirtAddr, phys mm.PhysAddr, flags PageTableEntryFlag) *kernel.Error {
	state := lockFn(&space.lock)
	err := space.map1GiB(virt, phys, flags)
	unlockFn(&space.lock, state)
	return err
}

// MapRange maps the physical region [phys, phys+length) at virt using the
// largest leaf size each step allows: a 1GiB or 2MiB leaf is emitted when
// the remaining length covers it and both cursors are suitably aligned,
// otherwise a 4KiB leaf. virt, phys and length must be page-aligned.
func (space *AddressSpace) MapRange(virt mm.VirtAddr, phys mm.PhysAddr, length mm.Size, flags PageTableEntryFlag) *kernel.Error {
	state := lockFn(&space.lock)
	defer unlockFn(&space.lock, state)

	for length > 0 {
		var (
			step mm.Size
			err  *kernel.Error
		)

		switch {
		case length >= mm.Size1GiB && virt.IsAligned(mm.Size1GiB) && phys.IsAligned(mm.Size1GiB):
			step, err = mm.Size1GiB, space.map1GiB(virt, phys, flags)
		case length >= mm.Size2MiB && virt.IsAligned(mm.Size2MiB) && phys.IsAligned(mm.Size2MiB):
			step, err = mm.Size2MiB, space.map2MiB(virt, phys, flags)
		default:
			step, err = mm.PageSize, space.map4KiB(virt, phys, flags)
		}

		if err != nil {
			return err
		}

		virt += mm.VirtAddr(step)
		phys += mm.PhysAddr(step)
		length -= step
	}

	return nil
}

// AllocateRange backs the virtual region [virt, virt+length) with freshly
// allocated frames, one 4KiB page at a time. After each page is mapped the
// populate callback, if non-nil, receives the page's virtual start address
// together with a writable view of its frame so the caller can fill in the
// contents before anything else observes the page. virt and length must be
// page-aligned.
func (space *AddressSpace) AllocateRange(virt mm.VirtAddr, length mm.Size, flags PageTableEntryFlag, populate func(mm.VirtAddr, *[mm.PageSize]byte)) *kernel.Error {
	for offset := mm.Size(0); offset < length; offset += mm.PageSize {
		pageVirt := virt + mm.VirtAddr(offset)

		frame, err := space.ctx.AllocatePage()
		if err != nil {
			return mm.ErrOutOfMemory
		}

		state := lockFn(&space.lock)
		err = space.map4KiB(pageVirt, frame, flags)
		unlockFn(&space.lock, state)
		if err != nil {
			space.ctx.DeallocatePage(frame)
			return err
		}

		if populate != nil {
			populate(pageVirt, (*[mm.PageSize]byte)(unsafe.Pointer(uintptr(space.ctx.PhysToVirt(frame)))))
		}
	}

	return nil
}

// Translate resolves virt to the physical address it is mapped to. The walk
// terminates at leaves of any size, applying the size-appropriate offset;
// hitting a non-present entry at any level yields ErrNotMapped.
func (space *AddressSpace) Translate(virt mm.VirtAddr) (mm.PhysAddr, *kernel.Error) {
	state := lockFn(&space.lock)
	phys, err := space.translate(virt)
	unlockFn(&space.lock, state)
	return phys, err
}

func (space *AddressSpace) translate(virt mm.VirtAddr) (mm.PhysAddr, *kernel.Error) {
	indices := SplitVirtAddr(virt)
	table := space.rootTable()

	for level := pageLevels - 1; level > 0; level-- {
		entry := table[indices[level]]
		if !entry.HasFlags(FlagPresent) {
			return 0, ErrNotMapped
		}

		if entry.HasFlags(FlagHugePage) {
			offsetMask := (mm.PhysAddr(1) << pageLevelShifts[level]) - 1
			return entry.Address() + (mm.PhysAddr(virt) & offsetMask), nil
		}

		table = tableAt(space.ctx.PhysToVirt(entry.Address()))
	}

	entry := table[indices[0]]
	if !entry.HasFlags(FlagPresent) {
		return 0, ErrNotMapped
	}

	return entry.Address() + (mm.PhysAddr(virt) & (mm.PhysAddr(mm.PageSize) - 1)), nil
}

// Unmap4KiB removes the 4KiB mapping at virt. Addresses that are unmapped
// or covered by a huge page yield ErrNotMapped; huge leaves must be torn
// down through Release.
func (space *AddressSpace) Unmap4KiB(virt mm.VirtAddr) *kernel.Error {
	state := lockFn(&space.lock)
	err := space.unmap4KiB(virt)
	unlockFn(&space.lock, state)
	return err
}

func (space *AddressSpace) unmap4KiB(virt mm.VirtAddr) *kernel.Error {
	indices := SplitVirtAddr(virt)
	table := space.rootTable()

	for level := pageLevels - 1; level > 0; level-- {
		entry := table[indices[level]]
		if !entry.HasFlags(FlagPresent) || entry.HasFlags(FlagHugePage) {
			return ErrNotMapped
		}

		table = tableAt(space.ctx.PhysToVirt(entry.Address()))
	}

	entry := &table[indices[0]]
	if !entry.HasFlags(FlagPresent) {
		return ErrNotMapped
	}

	*entry = 0
	flushTLBEntryFn(uintptr(virt))

	return nil
}

// UnmapRange removes the 4KiB mappings covering [virt, virt+length). The
// first miss aborts the operation with ErrNotMapped; pages removed up to
// that point stay removed.
func (space *AddressSpace) UnmapRange(virt mm.VirtAddr, length mm.Size) *kernel.Error {
	state := lockFn(&space.lock)
	defer unlockFn(&space.lock, state)

	for offset := mm.Size(0); offset < length; offset += mm.PageSize {
		if err := space.unmap4KiB(virt + mm.VirtAddr(offset)); err != nil {
			return err
		}
	}

	return nil
}

// FindUnmappedRange scans the userland half of the address space for a
// contiguous run of at least count unmapped pages and returns its start.
// Page 0 is never considered so that nil dereferences keep faulting. The
// boolean return reports whether a suitable run was found.
func (space *AddressSpace) FindUnmappedRange(count int) (mm.VirtAddr, bool) {
	state := lockFn(&space.lock)
	defer unlockFn(&space.lock, state)

	needed := mm.Size(count) << mm.PageShift
	start := mm.VirtAddr(mm.PageSize)
	cursor := start

	for uintptr(cursor) < userlandTop {
		next, mapped := space.nextBoundary(cursor)
		if mapped {
			start = next
		} else if mm.Size(next-start) >= needed {
			return start, true
		}
		cursor = next
	}

	return 0, false
}

// nextBoundary reports whether virt is currently mapped and returns the
// first address past the region that shares virt's fate: the end of the
// covering leaf for mapped addresses, the end of the empty sub-tree span
// for unmapped ones. Crediting whole sub-tree spans is what keeps the
// free-range scan from visiting every page of an empty gigabyte.
func (space *AddressSpace) nextBoundary(virt mm.VirtAddr) (mm.VirtAddr, bool) {
	indices := SplitVirtAddr(virt)
	table := space.rootTable()

	for level := pageLevels - 1; level > 0; level-- {
		entry := table[indices[level]]
		if !entry.HasFlags(FlagPresent) {
			return levelBoundary(virt, level), false
		}

		if entry.HasFlags(FlagHugePage) {
			return levelBoundary(virt, level), true
		}

		table = tableAt(space.ctx.PhysToVirt(entry.Address()))
	}

	return levelBoundary(virt, 0), table[indices[0]].HasFlags(FlagPresent)
}

// levelBoundary returns the first address past the region that a single
// entry at the given level covers.
func levelBoundary(virt mm.VirtAddr, level int) mm.VirtAddr {
	stride := mm.VirtAddr(1) << pageLevelShifts[level]
	return (virt &^ (stride - 1)) + stride
}

// InheritKernelMappings copies every root entry of from that is tagged
// FlagKernelOwned into this space, marking the copies FlagNotOwned so that
// Release leaves the shared sub-trees alone. The target slots must be empty.
func (space *AddressSpace) InheritKernelMappings(from *AddressSpace) *kernel.Error {
	state := lockFn(&space.lock)
	defer unlockFn(&space.lock, state)

	src := from.rootTable()
	dst := space.rootTable()
	for i := 0; i < tableEntryCount; i++ {
		if !src[i].HasFlags(FlagPresent | FlagKernelOwned) {
			continue
		}

		if dst[i].HasFlags(FlagPresent) {
			return ErrAlreadyMapped
		}

		dst[i] = src[i]
		dst[i].SetFlags(FlagNotOwned)
	}

	return nil
}

// Activate loads the space's root table into the MMU, making its mappings
// live on the current CPU.
func (space *AddressSpace) Activate() {
	switchPDTFn(uintptr(space.root))
}

// Leak hands ownership of the page-table tree over to the hardware: the
// space forgets its root and its frames will never be returned to the
// allocator. This is how the kernel space, which must outlive any Go value
// describing it, is finalized after activation.
func (space *AddressSpace) Leak() mm.PhysAddr {
	root := space.root
	space.root = 0
	return root
}

// Release tears the page-table tree down, returning every owned frame to
// the allocator. Entries tagged FlagNotOwned or FlagKernelOwned are skipped
// together with the sub-trees behind them, as are huge-page leaves whose
// frames never come from the frame pool. The space must not be active on
// any CPU.
func (space *AddressSpace) Release() {
	state := lockFn(&space.lock)
	root := space.root
	space.root = 0
	unlockFn(&space.lock, state)

	if root == 0 {
		return
	}

	space.releaseTable(tableAt(space.ctx.PhysToVirt(root)), pageLevels-1)
	space.ctx.DeallocatePage(root)
}

func (space *AddressSpace) releaseTable(table *PageTable, level int) {
	for i := 0; i < tableEntryCount; i++ {
		entry := table[i]
		switch {
		case !entry.HasFlags(FlagPresent), entry.HasAnyFlag(FlagKernelOwned | FlagNotOwned):
		case entry.HasFlags(FlagHugePage):
		case level == 0:
			space.ctx.DeallocatePage(entry.Address())
		default:
			space.releaseTable(tableAt(space.ctx.PhysToVirt(entry.Address())), level-1)
			space.ctx.DeallocatePage(entry.Address())
		}
	}
}
