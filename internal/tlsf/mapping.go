package tlsf

// Constants from spec §3.1. MBS is the minimum block size and the
// size-alignment granularity; SLIShift/SLIMax define the second-level
// fan-out; FLIMax is bounded by the width of the bitmap word used to
// track first-level occupancy.
const (
	mbs      = 32
	sliShift = 5
	sliMax   = 1 << sliShift // 32
	fliMax   = 64            // bits in the uint64 l1 bitmap word
)

// sizeClass maps a block length (already a multiple of mbs, >= mbs) to
// its (fli, sli) size-class pair, per spec §4.2.
func sizeClass(size uint64) (fli, sli int) {
	fli = ilog2(size)
	sli = int((size ^ (1 << uint(fli))) >> uint(fli-sliShift))

	return fli, sli
}

// roundSize rounds a raw requested size up to the mbs granularity (spec
// §4.5 ext_alloc: "round size up to MBS"). The caller is responsible for
// mapping a zero request to 1 first (spec §4.5 alloc's "size 0 treated
// as 1" rule, applied uniformly in allocCore).
func roundSize(size uint64) uint64 {
	return roundupPow2(size, mbs)
}

// classifyTarget computes the size-class (fli, sli) that is guaranteed to
// hold a block of at least size bytes, per spec §4.2's allocation-rounding
// rule. size must already be mbs-rounded and non-zero.
func classifyTarget(size uint64) (fli, sli int) {
	bucketWidth := uint64(1) << uint(ilog2(size)-sliShift)
	target := size + bucketWidth - 1

	return sizeClass(target)
}
