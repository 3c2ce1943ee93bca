package tlsf

import (
	"math/rand"
	"testing"
	"unsafe"
)

// TestRandomizedAllocFreeChurn drives a large, seeded sequence of random
// alloc/free operations against an Internal-mode Allocator, checking
// invariants after every step. The seed is fixed so failures reproduce
// deterministically under `go test`, unlike the original implementation's
// random_test driver (seeded from wall-clock time and pid), which this
// package intentionally does not carry over as-is (spec.md §1 marks the
// randomized stress driver itself out of scope; this test keeps only the
// idea of randomized churn as a property check).
func TestRandomizedAllocFreeChurn(t *testing.T) {
	const seed = 20260731

	rng := rand.New(rand.NewSource(seed))

	region := make([]byte, 64*1024)

	a, err := New(region)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var live []unsafe.Pointer

	for i := 0; i < 5000; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			size := uint64(rng.Intn(512) + 1)

			p, err := a.Alloc(size)
			if err != nil {
				continue
			}

			live = append(live, p)
		} else {
			idx := rng.Intn(len(live))

			if err := a.Free(live[idx]); err != nil {
				t.Fatalf("Free at step %d: %v", i, err)
			}

			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		checkInvariants(t, a)
	}

	for _, p := range live {
		if err := a.Free(p); err != nil {
			t.Fatalf("final Free: %v", err)
		}
	}

	checkInvariants(t, a)

	if want := a.size - intHeaderLen; a.UnusedSpace() != want {
		t.Fatalf("UnusedSpace() after draining all live allocations = %d, want %d", a.UnusedSpace(), want)
	}
}
