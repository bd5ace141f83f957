package kernel

import (
	"testing"
	"unsafe"
)

func TestMemset(t *testing.T) {
	specs := []struct {
		offset, size uintptr
		value        byte
	}{
		{0, 0, 0x00},
		{0, 4096, 0x00},
		{0, 1000, 0xfe},
		{3, 333, 0x42},
		{7, 8, 0xff},
		{1, 7, 0x13},
	}

	for specIndex, spec := range specs {
		// Guard bytes surround the target region so out-of-bounds
		// writes are detected.
		buf := make([]byte, spec.offset+spec.size+8)
		for i := range buf {
			buf[i] = 0xaa
		}

		Memset(uintptr(unsafe.Pointer(&buf[spec.offset])), spec.value, spec.size)

		for i, got := range buf {
			exp := byte(0xaa)
			if uintptr(i) >= spec.offset && uintptr(i) < spec.offset+spec.size {
				exp = spec.value
			}

			if got != exp {
				t.Errorf("[spec %d] expected buf[%d] to be 0x%x; got 0x%x", specIndex, i, exp, got)
				break
			}
		}
	}
}
