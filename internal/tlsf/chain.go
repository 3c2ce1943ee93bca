package tlsf

// chainMode captures the five operations that differ between INT and EXT
// header placement (design note §9): previous/next physical neighbor,
// header acquisition for a split, header release after a merge, and the
// per-block header length. Everything else — size-class mapping, the bitmap
// index, and split/merge policy — is mode-agnostic and lives in
// freelist.go and the functions below.
type chainMode interface {
	prevPhysical(b blk) blk
	nextPhysical(b blk) blk
	acquireHeader(parent blk, size uint64) (blk, error)
	releaseHeader(b blk)
	// headerLen is the per-block header overhead this mode consumes out
	// of the managed region (mode_hdr_len in spec §3.2): sizeof(header)
	// for INT, 0 for EXT.
	headerLen() uint64
}

// intMode implements chainMode for internal (inline) header placement:
// headers live inside the managed byte region, the chain's forward
// neighbor is derived by address arithmetic, and the backward neighbor
// is an explicit back pointer.
type intMode struct {
	base uintptr
	end  uintptr // base + size, the end-of-region sentinel
}

func (m *intMode) headerLen() uint64 { return intHeaderLen }

func (m *intMode) prevPhysical(b blk) blk {
	ib := b.(*intBlock)
	if ib.prevPhys == nil {
		return nil
	}

	return ib.prevPhys
}

func (m *intMode) nextPhysical(b blk) blk {
	ib := b.(*intBlock)
	next := ib.addr() + uintptr(intHeaderLen) + uintptr(ib.length())

	if next >= m.end {
		return nil
	}

	return intBlockAt(next)
}

func (m *intMode) acquireHeader(parent blk, size uint64) (blk, error) {
	ip := parent.(*intBlock)
	nb := intBlockAt(ip.addr() + uintptr(intHeaderLen) + uintptr(ip.length()))
	*nb = intBlock{prevPhys: ip}
	nb.setLength(size)

	if succ := m.nextPhysical(nb); succ != nil {
		succ.(*intBlock).prevPhys = nb
	}

	return nb, nil
}

func (m *intMode) releaseHeader(b blk) {
	ib := b.(*intBlock)
	if succ := m.nextPhysical(ib); succ != nil {
		succ.(*intBlock).prevPhys = ib.prevPhys
	}
}

// extMode implements chainMode for externalised header placement:
// headers are independently obtained heap memory, explicitly doubly
// linked in physical-address order (ext_chain in spec §3.2).
type extMode struct {
	// newHeader obtains a fresh *extBlock, modeling the "separately
	// obtained memory" of spec §3.4. Overridable (tests only) to
	// exercise the split-failure fallback of spec §4.4.
	newHeader func() (*extBlock, error)
}

func newExtMode() *extMode {
	return &extMode{newHeader: func() (*extBlock, error) { return &extBlock{}, nil }}
}

func (m *extMode) headerLen() uint64 { return 0 }

func (m *extMode) prevPhysical(b blk) blk {
	eb := b.(*extBlock)
	if eb.chainPrev == nil {
		return nil
	}

	return eb.chainPrev
}

func (m *extMode) nextPhysical(b blk) blk {
	eb := b.(*extBlock)
	if eb.chainNext == nil {
		return nil
	}

	return eb.chainNext
}

func (m *extMode) acquireHeader(parent blk, size uint64) (blk, error) {
	ep := parent.(*extBlock)

	nb, err := m.newHeader()
	if err != nil {
		return nil, err
	}

	nb.addr = ep.addr + ep.length()
	nb.setLength(size)

	nb.chainPrev = ep
	nb.chainNext = ep.chainNext

	if ep.chainNext != nil {
		ep.chainNext.chainPrev = nb
	}

	ep.chainNext = nb

	return nb, nil
}

func (m *extMode) releaseHeader(b blk) {
	eb := b.(*extBlock)

	if eb.chainPrev != nil {
		eb.chainPrev.chainNext = eb.chainNext
	}

	if eb.chainNext != nil {
		eb.chainNext.chainPrev = eb.chainPrev
	}

	eb.chainPrev, eb.chainNext = nil, nil
}

// splitBlock carves a remainder off a free block being allocated for
// size bytes (spec §4.4). parent must already be known to have enough
// slack (allocCore in tlsf.go checks length()-size >= mbs+headerLen
// before calling). On header-acquisition failure (EXT mode only) it restores
// parent's original length and returns nil: the whole block is handed
// to the caller unsplit.
func splitBlock(mode chainMode, parent blk, size uint64) blk {
	headerLen := mode.headerLen()
	remSize := parent.length() - headerLen - size

	parent.setLength(size)

	rem, err := mode.acquireHeader(parent, remSize)
	if err != nil {
		parent.setLength(size + remSize)

		return nil
	}

	return rem
}

// mergeBlocks joins two physically adjacent blocks, a followed by a2,
// removing either from the free-list index first if already free (spec
// §4.4). a survives, grown by headerLen+a2's length; a2's header is
// released via the mode's releaseHeader. The caller adjusts the running
// free-byte total for any block removed from the index here.
func mergeBlocks(mode chainMode, idx *freeListIndex, a, a2 blk) blk {
	if a.isFree() {
		idx.removeBlock(a)
	}

	if a2.isFree() {
		idx.removeBlock(a2)
	}

	a.setLength(a.length() + mode.headerLen() + a2.length())
	mode.releaseHeader(a2)

	return a
}
