// Package region provides backing-memory constructors for Internal-mode
// tlsf.Allocator instances: a plain Go-heap slice, and (on platforms
// with golang.org/x/sys/unix support) a real mmap-backed virtual memory
// range. See SPEC_FULL.md §3 for why x/sys is wired in here.
package region

// New allocates a GC-owned byte slice of the requested size for use as
// an Internal-mode tlsf region. This is the default, portable backing:
// the returned slice is ordinary Go memory, so the allocator's inline
// headers and free-list pointers are fully GC-safe.
func New(size int) []byte {
	return make([]byte, size)
}
