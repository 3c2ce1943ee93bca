// Package tlsf implements a Two-Level Segregated Fit allocator: a
// constant-time, bounded-fragmentation dynamic allocator for real-time
// systems (M. Masmano, I. Ripoll, A. Crespo, J. Real, "TLSF: a new
// dynamic memory allocator for real-time systems", ECRTS 2004).
//
// The allocator partitions a contiguous, integer-addressable region into
// variable-sized blocks and services allocation/deallocation in
// worst-case O(1) time, regardless of fragmentation.
//
// Two header-placement modes are supported, chosen at construction:
//
//   - Internal (New): block headers live inside the managed region,
//     which must be directly addressable Go memory. Alloc/Free operate
//     on unsafe.Pointer.
//   - External (NewExt): the managed region is opaque (e.g. a virtual
//     address range this package never touches); headers are held in
//     ordinary Go-heap memory and carry the managed address explicitly.
//     ExtAlloc/ExtFree operate on an opaque *Block handle.
//
// The package is not goroutine-safe: callers needing concurrent access
// must serialize it externally.
package tlsf

import "unsafe"

// Mode identifies which header-placement strategy an Allocator uses.
type Mode int

const (
	// Internal indicates block headers are placed inline in the
	// managed byte region (New).
	Internal Mode = iota
	// External indicates block headers are held externally, addressing
	// an opaque managed range (NewExt).
	External
)

// Allocator is a TLSF instance managing one contiguous region in one of
// the two header-placement modes (spec §3.2 "Allocator state").
//
// Not goroutine-safe; see the package doc comment.
type Allocator struct {
	mode Mode
	impl chainMode
	idx  freeListIndex
	free uint64
	size uint64

	// region keeps an INT-mode backing byte slice alive for as long as
	// this Allocator exists; nil in External mode.
	region []byte

	// extHead is the permanent leftmost block of the EXT-mode physical
	// chain, used by Destroy to walk and release every header. Always
	// nil in Internal mode.
	extHead *extBlock
}

// New constructs an Internal-mode Allocator managing region in place:
// block headers are written directly into region's bytes, so region
// must not be modified by the caller once passed in (spec §3.4). The
// usable size is region's length, rounded down to a multiple of mbs
// (spec §4.5 create's "round size down" rule); len(region) must be at
// least 2*mbs plus one header.
func New(region []byte) (*Allocator, error) {
	size := roundDownToMBS(uint64(len(region)))
	if size < 2*mbs+intHeaderLen {
		return nil, errInvalidRegion(uint64(len(region)))
	}

	base := uintptr(unsafe.Pointer(&region[0]))
	m := &intMode{base: base, end: base + uintptr(size)}

	a := &Allocator{
		mode:   Internal,
		impl:   m,
		size:   size,
		region: region,
	}

	first := intBlockAt(base)
	*first = intBlock{}
	first.setLength(size - intHeaderLen)
	a.insertFree(first)

	return a, nil
}

// NewExt constructs an External-mode Allocator managing the opaque
// range [base, base+size): this package never reads or writes bytes in
// that range, only the addresses describing it. size is rounded down
// to a multiple of mbs as in New; it must be at least mbs.
func NewExt(base uintptr, size uint64) (*Allocator, error) {
	size = roundDownToMBS(size)
	if size < mbs {
		return nil, errInvalidRegion(size)
	}

	m := newExtMode()

	first, err := m.newHeader()
	if err != nil {
		return nil, errHeaderAlloc(size)
	}

	first.addr = uint64(base)
	first.setLength(size)

	a := &Allocator{
		mode:    External,
		impl:    m,
		size:    size,
		extHead: first,
	}
	a.insertFree(first)

	return a, nil
}

// roundDownToMBS implements spec §4.5's "round size down to a multiple
// of MBS" rule, expressed as a round-up that stays well-defined at
// size == 0: roundup(size+1, MBS) - MBS.
func roundDownToMBS(size uint64) uint64 {
	return roundupPow2(size+1, mbs) - mbs
}

// Destroy releases resources held by a. In External mode this walks the
// physical chain releasing every header (they become ordinary garbage
// once unreferenced); in Internal mode the managed region's contents
// are left untouched and simply abandoned to the caller (spec §4.5).
func (a *Allocator) Destroy() {
	for cur := a.extHead; cur != nil; {
		next := cur.chainNext
		cur.chainPrev, cur.chainNext = nil, nil
		cur = next
	}

	a.extHead = nil
	a.region = nil
	a.idx = freeListIndex{}
	a.free = 0
	a.size = 0
}

// insertFree inserts b into the free-list index and grows the free-byte
// total (spec §4.3 insert).
func (a *Allocator) insertFree(b blk) {
	a.idx.insert(b)
	a.free += b.length()
}

// removeFree removes b from the free-list index and shrinks the
// free-byte total (spec §4.3 remove).
func (a *Allocator) removeFree(b blk) {
	a.idx.removeBlock(b)
	a.free -= b.length()
}

// allocCore implements spec §4.5's ext_alloc: round the request,
// locate a free block of sufficient class via the two-level bitmap
// index, remove it, and split off any sizeable remainder. Shared by
// both Alloc and ExtAlloc, and mode-agnostic but for the type of blk
// it hands back (intBlock under Internal, extBlock under External).
func (a *Allocator) allocCore(rawSize uint64) (blk, error) {
	if rawSize == 0 {
		rawSize = 1
	}

	size := roundSize(rawSize)
	fli, sli := classifyTarget(size)

	fli, sli, ok := a.idx.find(fli, sli)
	if !ok {
		return nil, errExhausted(rawSize)
	}

	b := a.idx.removeHead(fli, sli)
	a.free -= b.length()

	headerLen := a.impl.headerLen()
	if b.length()-size >= mbs+headerLen {
		if rem := splitBlock(a.impl, b, size); rem != nil {
			a.insertFree(rem)
			a.validateBlock(rem)
		}
	}

	a.validateBlock(b)

	return b, nil
}

// Alloc allocates size bytes from an Internal-mode Allocator, returning
// a pointer to usable bytes immediately following the block header. A
// request of 0 is treated as 1 (spec §4.5). Returns ErrExhausted if no
// class can satisfy the request.
//
// Alloc panics if a is not in Internal mode: that is out-of-contract
// use (spec §6).
func (a *Allocator) Alloc(size uint64) (unsafe.Pointer, error) {
	b, err := a.allocCore(size)
	if err != nil {
		return nil, err
	}

	return b.(*intBlock).payload(), nil
}

// Free releases a pointer previously returned by Alloc. Double-freeing
// ptr, or freeing a pointer Alloc never returned, is out-of-contract use
// (spec §3.4); the free-bit check below detects the double-free case on
// a best-effort basis.
//
// Free panics if a is not in Internal mode.
func (a *Allocator) Free(ptr unsafe.Pointer) error {
	return a.freeCore(intBlockFromPayload(ptr))
}

// ExtAlloc allocates size bytes from an External-mode Allocator,
// returning an opaque handle. A request of 0 is treated as 1. Returns
// ErrExhausted if no class can satisfy the request. If the header for a
// split remainder cannot be obtained, the whole unsplit block is
// returned instead of an error.
//
// ExtAlloc panics if a is not in External mode.
func (a *Allocator) ExtAlloc(size uint64) (*Block, error) {
	b, err := a.allocCore(size)
	if err != nil {
		return nil, err
	}

	return &Block{b: b.(*extBlock)}, nil
}

// ExtFree releases a handle previously returned by ExtAlloc.
//
// ExtFree panics if a is not in External mode.
func (a *Allocator) ExtFree(b *Block) error {
	return a.freeCore(b.b)
}

// freeCore implements spec §4.5's ext_free: guard against double-free,
// merge with free physical neighbors, then reinsert into the index.
// Shared by Free and ExtFree.
func (a *Allocator) freeCore(b blk) error {
	if b.isFree() {
		return errDoubleFree()
	}

	a.validateBlock(b)

	if prev := a.impl.prevPhysical(b); prev != nil && prev.isFree() {
		a.free -= prev.length()
		b = mergeBlocks(a.impl, &a.idx, prev, b)
	}

	if next := a.impl.nextPhysical(b); next != nil && next.isFree() {
		a.free -= next.length()
		b = mergeBlocks(a.impl, &a.idx, b, next)
	}

	a.insertFree(b)
	a.validateBlock(b)

	return nil
}

// ExtGetAddr returns the managed address and payload length of an
// External-mode block handle (spec §4.5 ext_getaddr).
func (a *Allocator) ExtGetAddr(b *Block) (addr uintptr, length uint64) {
	return uintptr(b.b.addr), b.b.length()
}

// UnusedSpace returns the sum of the lengths of all currently free
// blocks (spec §4.5 unused_space). Not all of this is necessarily
// allocatable in one request due to fragmentation; see AvailSpace.
func (a *Allocator) UnusedSpace() uint64 {
	return a.free
}

// AvailSpace returns the largest size r such that Alloc(r)/ExtAlloc(r)
// is guaranteed to succeed on the current state, or 0 if there are no
// free blocks (spec §4.5 avail_space).
func (a *Allocator) AvailSpace() uint64 {
	fli, sli, ok := a.idx.largest()
	if !ok {
		return 0
	}

	length := a.idx.classes[fli][sli].length()

	// Reduce to the previous SLI boundary so the returned size is one
	// that roundSize/classifyTarget will actually map back into this
	// same class (spec §4.5's avail_space derivation).
	reduced := roundDownToMBS(length)
	bucketWidth := uint64(1) << uint(ilog2(reduced)-sliShift)

	return (reduced + 1) - bucketWidth
}
