package mm

import "testing"

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := PhysAddr(frameIndex<<PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    PhysAddr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		input   VirtAddr
		expPage Page
	}{
		{0, Page(0)},
		{4095, Page(0)},
		{4096, Page(1)},
		{4123, Page(1)},
	}

	for specIndex, spec := range specs {
		if got := PageFromAddress(spec.input); got != spec.expPage {
			t.Errorf("[spec %d] expected returned page to be %v; got %v", specIndex, spec.expPage, got)
		}
	}
}

func TestAddrAlignment(t *testing.T) {
	specs := []struct {
		input        PhysAddr
		align        Size
		expDown      PhysAddr
		expUp        PhysAddr
		expIsAligned bool
	}{
		{0, PageSize, 0, 0, true},
		{123, PageSize, 0, 4096, false},
		{4096, PageSize, 4096, 4096, true},
		{4097, PageSize, 4096, 8192, false},
		{0x200000, Size2MiB, 0x200000, 0x200000, true},
		{0x200001, Size2MiB, 0x200000, 0x400000, false},
		{0x40000000, Size1GiB, 0x40000000, 0x40000000, true},
	}

	for specIndex, spec := range specs {
		if got := spec.input.AlignDown(spec.align); got != spec.expDown {
			t.Errorf("[spec %d] expected AlignDown to return %x; got %x", specIndex, spec.expDown, got)
		}
		if got := spec.input.AlignUp(spec.align); got != spec.expUp {
			t.Errorf("[spec %d] expected AlignUp to return %x; got %x", specIndex, spec.expUp, got)
		}
		if got := spec.input.IsAligned(spec.align); got != spec.expIsAligned {
			t.Errorf("[spec %d] expected IsAligned to return %t; got %t", specIndex, spec.expIsAligned, got)
		}

		virt := VirtAddr(spec.input)
		if got := virt.AlignDown(spec.align); got != VirtAddr(spec.expDown) {
			t.Errorf("[spec %d] expected VirtAddr.AlignDown to return %x; got %x", specIndex, spec.expDown, got)
		}
		if got := virt.AlignUp(spec.align); got != VirtAddr(spec.expUp) {
			t.Errorf("[spec %d] expected VirtAddr.AlignUp to return %x; got %x", specIndex, spec.expUp, got)
		}
	}
}
