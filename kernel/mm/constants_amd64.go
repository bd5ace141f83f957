// +build amd64

package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a frame number (shift right
	// by PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes. This is also the
	// size of a single physical memory frame, the minimum allocation and
	// mapping granularity.
	PageSize = Size(1 << PageShift)

	// Size2MiB and Size1GiB are the two large-page sizes supported by the
	// MMU page mapping code. Their values are part of the paging contract
	// and must not change.
	Size2MiB = 2 * Mb
	Size1GiB = 1 * Gb
)
