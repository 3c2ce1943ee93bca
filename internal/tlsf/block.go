package tlsf

import "unsafe"

// flagFree is the FREE_FLAG bit packed into the low bit of a block's
// stored length (spec §3.1/§3.2). Lengths are always multiples of mbs,
// so this bit is otherwise unused.
const flagFree = 0x1

// flLinks is the free-list doubly-linked entry embedded in every block
// header, meaningful only while the block is free (spec §3.2). It is
// mode-agnostic: both intBlock and extBlock embed one.
type flLinks struct {
	prev, next blk
}

// blk is the mode-agnostic view of a block header that the free-list
// index (freelist.go) and split/merge logic (chain.go) operate against.
// The two concrete implementations, intBlock and extBlock, differ only
// in how they represent the physical-chain neighbor (design note §9).
type blk interface {
	length() uint64
	setLength(n uint64)
	isFree() bool
	setFree(v bool)
	links() *flLinks
}

// intBlock is the INT-mode header: it is placed directly at the start of
// each block inside the managed byte region via unsafe.Pointer
// arithmetic (spec §3.2 "Internal" mode). Its physical-chain back
// pointer is an explicit field; the forward neighbor is derived by
// address arithmetic on length (chain.go's intMode.nextPhysical).
type intBlock struct {
	lengthAndFlag uint64
	prevPhys      *intBlock
	fl            flLinks
}

// intHeaderLen is sizeof(intBlock) padded up to a multiple of mbs, the
// INT-mode header length (spec's mode_hdr_len discriminant when
// non-zero). The padding keeps every block length a multiple of mbs.
const intHeaderLen = (uint64(unsafe.Sizeof(intBlock{})) + mbs - 1) &^ (mbs - 1)

func (b *intBlock) length() uint64     { return b.lengthAndFlag &^ flagFree }
func (b *intBlock) isFree() bool       { return b.lengthAndFlag&flagFree != 0 }
func (b *intBlock) links() *flLinks    { return &b.fl }

func (b *intBlock) setLength(n uint64) {
	b.lengthAndFlag = n | (b.lengthAndFlag & flagFree)
}

func (b *intBlock) setFree(v bool) {
	if v {
		b.lengthAndFlag |= flagFree
	} else {
		b.lengthAndFlag &^= flagFree
	}
}

// intBlockAt reinterprets the byte at the given address within a managed
// region as an *intBlock header.
func intBlockAt(addr uintptr) *intBlock {
	return (*intBlock)(unsafe.Pointer(addr)) //nolint:govet
}

func (b *intBlock) addr() uintptr { return uintptr(unsafe.Pointer(b)) }

// payload returns the usable-bytes pointer immediately following the
// header, returned to callers of Alloc.
func (b *intBlock) payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(b), intHeaderLen)
}

// intBlockFromPayload recovers the header given a pointer previously
// returned by payload (spec §4.5 free: "Recover the block header by
// subtracting header_len from ptr").
func intBlockFromPayload(ptr unsafe.Pointer) *intBlock {
	return (*intBlock)(unsafe.Pointer(uintptr(ptr) - uintptr(intHeaderLen))) //nolint:govet
}

// extBlock is the EXT-mode header: independently heap-allocated, holding
// the managed-region address explicitly and taking part in a doubly
// linked physical chain (spec §3.2 "External" mode).
type extBlock struct {
	lengthAndFlag uint64
	addr          uint64
	chainPrev     *extBlock
	chainNext     *extBlock
	fl            flLinks
}

func (b *extBlock) length() uint64  { return b.lengthAndFlag &^ flagFree }
func (b *extBlock) isFree() bool    { return b.lengthAndFlag&flagFree != 0 }
func (b *extBlock) links() *flLinks { return &b.fl }

func (b *extBlock) setLength(n uint64) {
	b.lengthAndFlag = n | (b.lengthAndFlag & flagFree)
}

func (b *extBlock) setFree(v bool) {
	if v {
		b.lengthAndFlag |= flagFree
	} else {
		b.lengthAndFlag &^= flagFree
	}
}

// Block is the opaque EXT-mode handle returned by ExtAlloc. Callers pass
// it back to ExtFree and ExtGetAddr; they must not inspect its fields.
type Block struct {
	b *extBlock
}
