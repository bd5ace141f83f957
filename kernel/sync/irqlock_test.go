package sync

import (
	"testing"

	"ruelos/kernel/cpu"
)

func TestIRQLockRestoresInterruptState(t *testing.T) {
	defer func(origFlags func() uint64, origDisable, origEnable func()) {
		flagsRegisterFn = origFlags
		disableInterruptsFn = origDisable
		enableInterruptsFn = origEnable
	}(flagsRegisterFn, disableInterruptsFn, enableInterruptsFn)

	specs := []struct {
		flags         uint64
		expEnableCall bool
	}{
		// interrupts were enabled before Acquire; Release must re-enable them
		{cpu.FlagIF, true},
		// interrupts were already disabled; Release must leave them disabled
		{0, false},
	}

	for specIndex, spec := range specs {
		var (
			l            IRQLock
			disableCalls int
			enableCalls  int
		)

		flagsRegisterFn = func() uint64 { return spec.flags }
		disableInterruptsFn = func() { disableCalls++ }
		enableInterruptsFn = func() { enableCalls++ }

		state := l.Acquire()
		if disableCalls != 1 {
			t.Errorf("[spec %d] expected DisableInterrupts to be called once; got %d", specIndex, disableCalls)
		}

		if l.lock.TryToAcquire() {
			t.Errorf("[spec %d] expected inner spinlock to be held after Acquire", specIndex)
		}

		l.Release(state)
		if exp := 0; !spec.expEnableCall && enableCalls != exp {
			t.Errorf("[spec %d] expected EnableInterrupts not to be called; got %d calls", specIndex, enableCalls)
		}
		if exp := 1; spec.expEnableCall && enableCalls != exp {
			t.Errorf("[spec %d] expected EnableInterrupts to be called %d time(s); got %d", specIndex, exp, enableCalls)
		}

		if !l.lock.TryToAcquire() {
			t.Errorf("[spec %d] expected inner spinlock to be free after Release", specIndex)
		}
		l.lock.Release()
	}
}

func TestIRQLockNestedAcquire(t *testing.T) {
	defer func(origFlags func() uint64, origDisable, origEnable func()) {
		flagsRegisterFn = origFlags
		disableInterruptsFn = origDisable
		enableInterruptsFn = origEnable
	}(flagsRegisterFn, disableInterruptsFn, enableInterruptsFn)

	// Emulate the interrupt-enable flag so that nesting two different
	// IRQ locks only re-enables interrupts when the outer lock is
	// released.
	intsEnabled := true
	flagsRegisterFn = func() uint64 {
		if intsEnabled {
			return cpu.FlagIF
		}
		return 0
	}
	disableInterruptsFn = func() { intsEnabled = false }
	enableInterruptsFn = func() { intsEnabled = true }

	var outer, inner IRQLock

	outerState := outer.Acquire()
	innerState := inner.Acquire()

	inner.Release(innerState)
	if intsEnabled {
		t.Error("expected interrupts to remain disabled after releasing the inner lock")
	}

	outer.Release(outerState)
	if !intsEnabled {
		t.Error("expected interrupts to be re-enabled after releasing the outer lock")
	}
}
