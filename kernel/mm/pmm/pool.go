package pmm

import (
	"reflect"
	"unsafe"

	"ruelos/kernel"
	"ruelos/kernel/mm"
	"ruelos/kernel/sync"
)

var (
	// directMapFn is used by tests to override the direct map translation
	// which is only valid when running in kernel mode.
	directMapFn = mm.DirectMapAddress

	// lockFn/unlockFn wrap the pool's IRQ lock acquisition. They are
	// overridden by tests because masking interrupts in user-mode
	// triggers a #GP fault.
	lockFn = func(l *sync.IRQLock) sync.IRQState {
		return l.Acquire()
	}
	unlockFn = func(l *sync.IRQLock, state sync.IRQState) {
		l.Release(state)
	}
)

// FramePool implements the steady-state physical frame allocator. Free
// frames are tracked in a capacity-bounded LIFO stack of physical addresses
// whose backing array is carved out of the bootstrap allocator and accessed
// through the direct map.
//
// The pool is protected by an interrupt-masking lock: an IRQ handler that
// needs a frame must never be able to re-enter a lock held by the code it
// preempted.
type FramePool struct {
	lock sync.IRQLock

	// count tracks the number of live entries in frames. Frames are
	// pushed and popped at frames[count-1].
	count int

	frames    []mm.PhysAddr
	framesHdr reflect.SliceHeader
}

// Init allocates the pool's backing array for capacity frame addresses using
// the bootstrap allocator. The pool starts out empty; the boot sequence
// seeds it with the usable frames via AssumeAvailable.
func (pool *FramePool) Init(bump *BumpAllocator, capacity int) *kernel.Error {
	entrySize := unsafe.Sizeof(mm.PhysAddr(0))

	addr, err := bump.Allocate(uint64(capacity)*uint64(entrySize), mm.Size(entrySize))
	if err != nil {
		return err
	}

	pool.framesHdr = reflect.SliceHeader{
		Data: uintptr(directMapFn(addr)),
		Len:  capacity,
		Cap:  capacity,
	}
	pool.frames = *(*[]mm.PhysAddr)(unsafe.Pointer(&pool.framesHdr))
	pool.count = 0
	return nil
}

// Allocate pops one free frame address off the pool. It returns
// mm.ErrOutOfMemory when the pool is empty; callers must propagate the error
// rather than assume success.
func (pool *FramePool) Allocate() (mm.PhysAddr, *kernel.Error) {
	state := lockFn(&pool.lock)
	defer unlockFn(&pool.lock, state)

	if pool.count == 0 {
		return 0, mm.ErrOutOfMemory
	}

	pool.count--
	return pool.frames[pool.count], nil
}

// Deallocate pushes a frame address back onto the pool. The caller must
// guarantee that the frame was previously obtained from this pool and that
// no live mapping still references it.
func (pool *FramePool) Deallocate(addr mm.PhysAddr) {
	pool.push(addr)
}

// AssumeAvailable seeds the pool with a frame that was discovered to be free
// at boot but never explicitly allocated. The pool takes logical ownership
// of the frame.
func (pool *FramePool) AssumeAvailable(addr mm.PhysAddr) {
	pool.push(addr)
}

func (pool *FramePool) push(addr mm.PhysAddr) {
	state := lockFn(&pool.lock)
	defer unlockFn(&pool.lock, state)

	// The pool is sized at boot to hold every usable frame; running out
	// of slots would mean a frame got pushed twice.
	if pool.count == len(pool.frames) {
		return
	}

	pool.frames[pool.count] = addr
	pool.count++
}

// FreeCount returns the number of frames currently available in the pool.
func (pool *FramePool) FreeCount() int {
	state := lockFn(&pool.lock)
	defer unlockFn(&pool.lock, state)

	return pool.count
}
