//go:build linux || darwin || freebsd || netbsd || openbsd

package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapRegion is a real page-backed, anonymous virtual-memory range
// obtained via mmap(2), for Internal-mode tlsf.Allocator instances that
// want genuine addressable memory rather than a Go-GC-owned slice.
//
// Because this memory is outside the Go runtime's allocator, the
// pointer-typed fields the tlsf package writes into its headers (free-
// list links, physical back-pointers) are never scanned by the garbage
// collector; that is safe here only because every pointer an Internal-
// mode header stores addresses another header within this same mapped
// range, never a Go-heap object, so there is nothing for the GC to keep
// alive on this region's behalf.
type MmapRegion struct {
	bytes []byte
}

// NewMmapRegion maps size bytes of anonymous, read-write memory.
func NewMmapRegion(size int) (*MmapRegion, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("tlsf/region: mmap %d bytes: %w", size, err)
	}

	return &MmapRegion{bytes: b}, nil
}

// Bytes returns the mapped range for use as a tlsf.New region.
func (r *MmapRegion) Bytes() []byte {
	return r.bytes
}

// Close unmaps the region. The tlsf.Allocator built over it must not be
// used afterward.
func (r *MmapRegion) Close() error {
	if r.bytes == nil {
		return nil
	}

	err := unix.Munmap(r.bytes)
	r.bytes = nil

	return err
}
