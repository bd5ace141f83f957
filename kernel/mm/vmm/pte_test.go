package vmm

import (
	"testing"

	"ruelos/kernel/mm"
)

func TestPageTableEntryFlags(t *testing.T) {
	var pte PageTableEntry

	pte.SetFlags(FlagPresent | FlagRW)
	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatalf("expected pte to have FlagPresent and FlagRW set")
	}

	if pte.HasAnyFlag(FlagUserAccessible | FlagHugePage) {
		t.Fatalf("expected HasAnyFlag to return false")
	}

	pte.SetFlags(FlagNoExecute)
	if !pte.HasAnyFlag(FlagRW | FlagHugePage) {
		t.Fatalf("expected HasAnyFlag to return true")
	}

	pte.ClearFlags(FlagRW)
	if got := pte.Flags(); got != FlagPresent|FlagNoExecute {
		t.Fatalf("expected flags 0x%x; got 0x%x", FlagPresent|FlagNoExecute, got)
	}
}

func TestPageTableEntryAddress(t *testing.T) {
	var pte PageTableEntry
	pte.SetFlags(FlagPresent | FlagRW | FlagNoExecute)

	expAddr := mm.PhysAddr(0x123456789000)
	pte.SetAddress(expAddr)

	if got := pte.Address(); got != expAddr {
		t.Fatalf("expected pte address 0x%x; got 0x%x", expAddr, got)
	}

	// Setting the address must not disturb flags at either end of the entry.
	if got := pte.Flags(); got != FlagPresent|FlagRW|FlagNoExecute {
		t.Fatalf("expected flags to be preserved; got 0x%x", got)
	}

	if got := pte.Frame(); got != mm.FrameFromAddress(expAddr) {
		t.Fatalf("expected frame %d; got %d", mm.FrameFromAddress(expAddr), got)
	}

	pte.SetFrame(mm.Frame(0x42))
	if got := pte.Address(); got != mm.PhysAddr(0x42)<<mm.PageShift {
		t.Fatalf("expected pte address 0x%x; got 0x%x", mm.PhysAddr(0x42)<<mm.PageShift, got)
	}
}
