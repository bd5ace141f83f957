package vmm

import (
	"testing"

	"ruelos/kernel/mm"
)

func TestSplitVirtAddr(t *testing.T) {
	specs := []struct {
		virt       mm.VirtAddr
		expIndices [pageLevels + 1]PageTableIndex
	}{
		{
			0,
			[pageLevels + 1]PageTableIndex{0, 0, 0, 0, 0},
		},
		{
			0x1000,
			[pageLevels + 1]PageTableIndex{1, 0, 0, 0, 0},
		},
		{
			mm.VirtAddr(mm.Size2MiB),
			[pageLevels + 1]PageTableIndex{0, 1, 0, 0, 0},
		},
		{
			mm.VirtAddr(mm.Size1GiB),
			[pageLevels + 1]PageTableIndex{0, 0, 1, 0, 0},
		},
		{
			mm.DirectMapOffset,
			[pageLevels + 1]PageTableIndex{0, 0, 0, 256, 511},
		},
		{
			mm.VirtAddr(5)<<39 | mm.VirtAddr(6)<<30 | mm.VirtAddr(7)<<21 | mm.VirtAddr(8)<<12,
			[pageLevels + 1]PageTableIndex{8, 7, 6, 5, 0},
		},
	}

	for specIndex, spec := range specs {
		if got := SplitVirtAddr(spec.virt); got != spec.expIndices {
			t.Errorf("[spec %d] expected indices for 0x%x to be %v; got %v", specIndex, uintptr(spec.virt), spec.expIndices, got)
		}
	}
}

func TestJoinIndicesRoundTrip(t *testing.T) {
	specs := []mm.VirtAddr{
		0,
		0x1000,
		0x00007ffffffff000,
		0x0000123456789000,
		mm.VirtAddr(3 * mm.Size1GiB),
		mm.DirectMapOffset,
	}

	low48Mask := (mm.VirtAddr(1) << 48) - 1
	for specIndex, virt := range specs {
		if got := JoinIndices(SplitVirtAddr(virt)); got != virt&low48Mask {
			t.Errorf("[spec %d] expected join(split(0x%x)) to be 0x%x; got 0x%x", specIndex, uintptr(virt), uintptr(virt&low48Mask), uintptr(got))
		}
	}
}

func TestGetDirectoryAllocatesAndZeroes(t *testing.T) {
	ctx := newTestContext()
	rootAddr, _ := ctx.AllocatePage()
	root := tableAt(ctx.PhysToVirt(rootAddr))

	table, err := root.getDirectory(42, FlagRW, ctx)
	if err != nil {
		t.Fatalf("expected getDirectory to succeed; got %v", err)
	}

	for i := 0; i < tableEntryCount; i++ {
		if table[i] != 0 {
			t.Fatalf("expected freshly allocated directory to be zeroed; entry %d is 0x%x", i, uint64(table[i]))
		}
	}

	entry := root[42]
	if !entry.HasFlags(FlagPresent | FlagRW) {
		t.Fatalf("expected the directory entry to have FlagPresent and FlagRW set; got 0x%x", uint64(entry))
	}

	if got := tableAt(ctx.PhysToVirt(entry.Address())); got != table {
		t.Fatalf("expected the directory entry to point to the returned table")
	}
}

func TestGetDirectoryReusesExisting(t *testing.T) {
	ctx := newTestContext()
	rootAddr, _ := ctx.AllocatePage()
	root := tableAt(ctx.PhysToVirt(rootAddr))

	first, err := root.getDirectory(7, 0, ctx)
	if err != nil {
		t.Fatalf("expected getDirectory to succeed; got %v", err)
	}

	second, err := root.getDirectory(7, FlagRW|FlagUserAccessible, ctx)
	if err != nil {
		t.Fatalf("expected getDirectory to succeed; got %v", err)
	}

	if first != second {
		t.Fatalf("expected getDirectory to return the existing directory")
	}

	if exp := 2; ctx.allocated != exp {
		t.Fatalf("expected %d frame allocations; got %d", exp, ctx.allocated)
	}

	// Flags requested by later walks accumulate into the entry.
	if !root[7].HasFlags(FlagPresent | FlagRW | FlagUserAccessible) {
		t.Fatalf("expected directory entry flags to accumulate; got 0x%x", uint64(root[7]))
	}
}

func TestGetDirectoryHugePage(t *testing.T) {
	ctx := newTestContext()
	rootAddr, _ := ctx.AllocatePage()
	root := tableAt(ctx.PhysToVirt(rootAddr))

	root[3].SetAddress(mm.PhysAddr(mm.Size2MiB))
	root[3].SetFlags(FlagPresent | FlagHugePage)

	if _, err := root.getDirectory(3, FlagRW, ctx); err != ErrAlreadyMapped {
		t.Fatalf("expected to get ErrAlreadyMapped; got %v", err)
	}
}

func TestGetDirectoryAllocationError(t *testing.T) {
	ctx := newTestContext()
	rootAddr, _ := ctx.AllocatePage()
	root := tableAt(ctx.PhysToVirt(rootAddr))

	ctx.failAfter = ctx.allocated
	if _, err := root.getDirectory(9, FlagRW, ctx); err != mm.ErrOutOfMemory {
		t.Fatalf("expected to get mm.ErrOutOfMemory; got %v", err)
	}

	// A failed allocation must leave the entry empty.
	if root[9] != 0 {
		t.Fatalf("expected entry to remain empty; got 0x%x", uint64(root[9]))
	}
}
