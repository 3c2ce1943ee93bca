package tlsf

import (
	"testing"
	"unsafe"
)

// firstIntBlock returns the first physical block of an Internal-mode
// Allocator's region, for harnesses that need to walk the chain.
func firstIntBlock(a *Allocator) *intBlock {
	return intBlockAt(uintptr(unsafe.Pointer(&a.region[0])))
}

// checkInvariants walks the full physical chain and free-list index of an
// Internal-mode Allocator, verifying the properties that must hold after
// every Alloc/Free:
//
//   - P1: the sum of free blocks' lengths, found by walking the physical
//     chain, equals UnusedSpace().
//   - P2: no two physically adjacent blocks are both free (complete
//     coalescing).
//   - P3: every free block is reachable from the bitmap index via its own
//     size class.
//   - P4: AvailSpace() never exceeds UnusedSpace().
//
// That an allocation of exactly AvailSpace() bytes succeeds (P5) is not
// checked here, since it would mutate the allocator; see
// TestAvailSpaceAllocSucceeds.
func checkInvariants(t *testing.T, a *Allocator) {
	t.Helper()

	var freeSum uint64

	prevFree := false
	for cur := firstIntBlock(a); cur != nil; {
		if cur.isFree() {
			freeSum += cur.length()

			if prevFree {
				t.Errorf("P2 violated: two adjacent free blocks at %#x", cur.addr())
			}

			fli, sli := sizeClass(cur.length())

			found := false
			for b := a.idx.classes[fli][sli]; b != nil; b = b.links().next {
				if b == blk(cur) {
					found = true
					break
				}
			}

			if !found {
				t.Errorf("P3 violated: free block at %#x of length %d not reachable via class (%d,%d)", cur.addr(), cur.length(), fli, sli)
			}

			prevFree = true
		} else {
			prevFree = false
		}

		next := a.impl.nextPhysical(cur)
		if next == nil {
			break
		}

		cur = next.(*intBlock)
	}

	if freeSum != a.free {
		t.Errorf("P1 violated: chain-walk free sum %d != UnusedSpace() %d", freeSum, a.free)
	}

	if a.AvailSpace() > a.UnusedSpace() {
		t.Errorf("P4 violated: AvailSpace() %d > UnusedSpace() %d", a.AvailSpace(), a.UnusedSpace())
	}
}

func TestInvariantsHoldAcrossAllocFreeChurn(t *testing.T) {
	region := make([]byte, 8192)

	a, err := New(region)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	checkInvariants(t, a)

	var ptrs []unsafe.Pointer

	sizes := []uint64{1, 8, 32, 33, 64, 200, 1, 500, 17, 2}
	for _, sz := range sizes {
		p, err := a.Alloc(sz)
		if err != nil {
			continue
		}

		ptrs = append(ptrs, p)
		checkInvariants(t, a)
	}

	// Free every other allocation, then the rest, checking invariants
	// after every mutation.
	for i := 0; i < len(ptrs); i += 2 {
		if err := a.Free(ptrs[i]); err != nil {
			t.Fatalf("Free: %v", err)
		}

		checkInvariants(t, a)
	}

	for i := 1; i < len(ptrs); i += 2 {
		if err := a.Free(ptrs[i]); err != nil {
			t.Fatalf("Free: %v", err)
		}

		checkInvariants(t, a)
	}

	if a.UnusedSpace() == 0 {
		t.Fatal("expected all space reclaimed after freeing every allocation")
	}
}

func TestAvailSpaceAllocSucceeds(t *testing.T) {
	region := make([]byte, 4096)

	a, err := New(region)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Fragment the pool so AvailSpace() is exercised against a non-trivial
	// free-block layout.
	p1, err := a.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if _, err := a.Alloc(128); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if err := a.Free(p1); err != nil {
		t.Fatalf("Free: %v", err)
	}

	avail := a.AvailSpace()
	if avail == 0 {
		t.Fatal("expected non-zero AvailSpace() with free blocks present")
	}

	p, err := a.Alloc(avail)
	if err != nil {
		t.Fatalf("Alloc(AvailSpace()) = %v, want success (P5)", err)
	}

	if err := a.Free(p); err != nil {
		t.Fatalf("Free: %v", err)
	}
}
