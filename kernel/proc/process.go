// Package proc implements process address-space management. A process owns a
// private page table tree that shares the kernel sub-trees of the kernel
// address space; everything below UserlandTop is private to the process.
package proc

import (
	"ruelos/kernel"
	"ruelos/kernel/mm"
	"ruelos/kernel/mm/vmm"
)

var (
	// The following functions are mocked by tests.
	newAddressSpaceFn       = vmm.NewAddressSpace
	inheritKernelMappingsFn = (*vmm.AddressSpace).InheritKernelMappings
	activateFn              = (*vmm.AddressSpace).Activate
	releaseFn               = (*vmm.AddressSpace).Release
)

// UserlandTop is the first virtual address past the region a process is
// allowed to map: the upper bound of the canonical lower half.
const UserlandTop = mm.VirtAddr(1) << 47

// Process describes a single process. For the memory managers a process is
// its address space; scheduling state is layered on top by other sub-systems.
type Process struct {
	space *vmm.AddressSpace
}

// NewProcess builds the address space for a fresh process: a new root table
// allocated through ctx with the kernel mappings of kernelSpace spliced into
// it so that kernel code remains reachable after a context switch. The
// spliced entries are tagged as not owned; tearing the process down leaves
// the kernel sub-trees untouched.
func NewProcess(kernelSpace *vmm.AddressSpace, ctx vmm.Context) (*Process, *kernel.Error) {
	space, err := newAddressSpaceFn(ctx)
	if err != nil {
		return nil, err
	}

	if err = inheritKernelMappingsFn(space, kernelSpace); err != nil {
		releaseFn(space)
		return nil, err
	}

	return &Process{space: space}, nil
}

// AddressSpace returns the process address space.
func (proc *Process) AddressSpace() *vmm.AddressSpace {
	return proc.space
}

// Activate switches the MMU over to the process address space.
func (proc *Process) Activate() {
	activateFn(proc.space)
}

// Destroy tears the process address space down, returning every frame the
// process owned to the allocator. The process must not be active on any CPU.
func (proc *Process) Destroy() {
	releaseFn(proc.space)
}
