package tlsf

// freeListIndex is the two-level bitmap index of free blocks (spec §3.2,
// §4.3): one l1 word whose bit f is set iff some sli list under fli f is
// non-empty, one l2 word per fli tracking which sli lists are non-empty,
// and the fli*sli table of list heads itself.
type freeListIndex struct {
	l1      uint64
	l2      [fliMax]uint64
	classes [fliMax][sliMax]blk
}

// insert links b at the head of its size class, sets its free flag, and
// keeps the bitmaps consistent with list occupancy (invariant I1). The
// caller is responsible for the running free-byte total (spec §4.3).
func (f *freeListIndex) insert(b blk) {
	fli, sli := sizeClass(b.length())
	head := f.classes[fli][sli]
	links := b.links()
	links.prev = nil
	links.next = head

	if head != nil {
		head.links().prev = b
	}

	f.classes[fli][sli] = b
	b.setFree(true)

	f.l1 |= 1 << uint(fli)
	f.l2[fli] |= 1 << uint(sli)
}

// removeBlock unlinks a specific free block from its class list,
// clearing bitmap bits that become empty (spec §4.3).
func (f *freeListIndex) removeBlock(b blk) {
	fli, sli := sizeClass(b.length())
	links := b.links()

	if links.next != nil {
		links.next.links().prev = links.prev
	}

	if links.prev != nil {
		links.prev.links().next = links.next
	}

	if f.classes[fli][sli] == b {
		f.classes[fli][sli] = links.next
	}

	b.setFree(false)
	links.prev, links.next = nil, nil

	if f.classes[fli][sli] == nil {
		f.l2[fli] &^= 1 << uint(sli)
		if f.l2[fli] == 0 {
			f.l1 &^= 1 << uint(fli)
		}
	}
}

// removeHead pops and returns the head of class (fli, sli). The caller
// must already know the class has a non-nil head (e.g. via find).
func (f *freeListIndex) removeHead(fli, sli int) blk {
	b := f.classes[fli][sli]
	f.removeBlock(b)

	return b
}

// find locates the lowest free class at or above (fli, sli): first it
// tries the current fli at or above sli (fast path), then the lowest
// fli strictly above the requested one (slow path). Mirrors the
// two-step ffs lookup in the original tlsf_ext_alloc.
func (f *freeListIndex) find(fli, sli int) (foundFli, foundSli int, ok bool) {
	mask := ^uint64(0) << uint(sli)
	if bitmap := f.l2[fli] & mask; bitmap != 0 {
		return fli, ffs(bitmap) - 1, true
	}

	mask = ^uint64(0) << uint(fli+1)

	bitmap := f.l1 & mask
	if bitmap == 0 {
		return 0, 0, false
	}

	fli = ffs(bitmap) - 1
	sli = ffs(f.l2[fli]) - 1

	return fli, sli, true
}

// largest returns the class of the largest free block, or ok=false if
// no free blocks exist (used by AvailSpace).
func (f *freeListIndex) largest() (fli, sli int, ok bool) {
	fli = fls(f.l1)
	if fli == 0 {
		return 0, 0, false
	}

	fli--

	sli = fls(f.l2[fli])
	if sli == 0 {
		return 0, 0, false
	}

	sli--

	return fli, sli, true
}
