package sync

import "ruelos/kernel/cpu"

var (
	// The following functions are mocked by tests; calling the real
	// ones in user-mode would trigger a #GP fault.
	flagsRegisterFn     = cpu.FlagsRegister
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// IRQState captures the interrupt-enable state at the time a lock was
// acquired so that Release can restore it.
type IRQState uint64

// IRQLock implements a spinlock that also masks maskable interrupts for the
// duration of the critical section. An interrupt handler that preempts the
// lock holder and tries to acquire the same lock would otherwise spin
// forever on a single CPU.
//
// Acquire returns the previous interrupt-enable state; the caller must hand
// it back to Release on every exit path:
//
//	state := lock.Acquire()
//	defer lock.Release(state)
type IRQLock struct {
	lock Spinlock
}

// Acquire disables interrupts and blocks until the lock can be acquired. It
// returns the interrupt-enable state prior to the call.
func (l *IRQLock) Acquire() IRQState {
	state := IRQState(flagsRegisterFn() & cpu.FlagIF)
	disableInterruptsFn()
	l.lock.Acquire()
	return state
}

// Release relinquishes a held lock and restores the interrupt-enable state
// that was captured by the matching Acquire call.
func (l *IRQLock) Release(state IRQState) {
	l.lock.Release()
	if state != 0 {
		enableInterruptsFn()
	}
}
