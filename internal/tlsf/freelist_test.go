package tlsf

import "testing"

// testBlk is a minimal standalone blk implementation for exercising the
// free-list index in isolation, without needing a real region or chain.
type testBlk struct {
	len  uint64
	free bool
	fl   flLinks
}

func (b *testBlk) length() uint64     { return b.len }
func (b *testBlk) setLength(n uint64) { b.len = n }
func (b *testBlk) isFree() bool       { return b.free }
func (b *testBlk) setFree(v bool)     { b.free = v }
func (b *testBlk) links() *flLinks    { return &b.fl }

func newTestBlk(length uint64) *testBlk { return &testBlk{len: length} }

func TestFreeListInsertFind(t *testing.T) {
	var idx freeListIndex

	a := newTestBlk(64)
	idx.insert(a)

	if !a.isFree() {
		t.Fatal("insert did not set the free flag")
	}

	fli, sli := sizeClass(64)

	foundFli, foundSli, ok := idx.find(fli, sli)
	if !ok || foundFli != fli || foundSli != sli {
		t.Fatalf("find(%d,%d) = (%d,%d,%v), want exact class match", fli, sli, foundFli, foundSli, ok)
	}
}

func TestFreeListFindEscalatesToHigherClass(t *testing.T) {
	var idx freeListIndex

	big := newTestBlk(4096)
	idx.insert(big)

	fli, sli := sizeClass(64)

	foundFli, foundSli, ok := idx.find(fli, sli)
	if !ok {
		t.Fatal("find should escalate to the only non-empty higher class")
	}

	wantFli, wantSli := sizeClass(4096)
	if foundFli != wantFli || foundSli != wantSli {
		t.Fatalf("find escalated to (%d,%d), want (%d,%d)", foundFli, foundSli, wantFli, wantSli)
	}
}

func TestFreeListFindEmpty(t *testing.T) {
	var idx freeListIndex

	if _, _, ok := idx.find(5, 0); ok {
		t.Fatal("find on an empty index should report not-found")
	}
}

func TestFreeListRemoveHeadLIFO(t *testing.T) {
	var idx freeListIndex

	a := newTestBlk(64)
	b := newTestBlk(64)
	idx.insert(a)
	idx.insert(b)

	fli, sli := sizeClass(64)

	if got := idx.removeHead(fli, sli); got != blk(b) {
		t.Fatal("removeHead did not return the most recently inserted block")
	}

	if got := idx.removeHead(fli, sli); got != blk(a) {
		t.Fatal("removeHead did not return the remaining block")
	}

	if _, _, ok := idx.find(fli, sli); ok {
		t.Fatal("class should be empty and bitmap bits cleared after removing both blocks")
	}

	if idx.l1 != 0 {
		t.Fatalf("l1 bitmap not cleared: %#x", idx.l1)
	}
}

func TestFreeListRemoveBlockMiddleOfList(t *testing.T) {
	var idx freeListIndex

	a := newTestBlk(64)
	b := newTestBlk(64)
	c := newTestBlk(64)
	idx.insert(a)
	idx.insert(b)
	idx.insert(c)

	idx.removeBlock(b)

	if b.isFree() {
		t.Fatal("removed block should no longer be marked free")
	}

	fli, sli := sizeClass(64)

	seen := map[blk]bool{}
	for cur := idx.classes[fli][sli]; cur != nil; cur = cur.links().next {
		seen[cur] = true
	}

	if seen[b] {
		t.Fatal("removed block still reachable from the class list")
	}

	if !seen[a] || !seen[c] {
		t.Fatal("removing the middle block should not disturb its neighbors")
	}
}

func TestFreeListLargest(t *testing.T) {
	var idx freeListIndex

	if _, _, ok := idx.largest(); ok {
		t.Fatal("largest on an empty index should report not-found")
	}

	idx.insert(newTestBlk(64))
	idx.insert(newTestBlk(4096))
	idx.insert(newTestBlk(128))

	fli, sli, ok := idx.largest()
	if !ok {
		t.Fatal("largest should find a class once blocks are present")
	}

	wantFli, wantSli := sizeClass(4096)
	if fli != wantFli || sli != wantSli {
		t.Fatalf("largest() = (%d,%d), want (%d,%d)", fli, sli, wantFli, wantSli)
	}
}
