package tlsf

import (
	"fmt"
	"log"
	"os"
)

// Debug enables the corruption-detection invariant checks of spec §7.
// Off by default, matching the teacher's Config.EnableDebug convention
// (internal/allocator.Config): a runtime toggle rather than a build
// tag, so a single binary can turn it on for diagnosis without a
// separate debug build.
var Debug = false

// DebugLog receives invariant-violation reports when Debug is true.
var DebugLog = log.New(os.Stderr, "tlsf: ", log.LstdFlags)

// validateBlock re-checks a mutated block and its physical neighbors
// against the chain invariants of spec §3.3 (I3, I6): length bounds,
// and that each neighbor's own neighbor pointer resolves back to b.
// This mirrors the original implementation's validate_blkhdr, which
// runs after every header mutation in debug builds and aborts the
// process on failure; the Go equivalent of "abort the process" is a
// panic, since this indicates a bug in the allocator itself rather
// than a recoverable runtime condition.
func (a *Allocator) validateBlock(b blk) {
	if !Debug {
		return
	}

	length := b.length()
	if length < mbs {
		a.corrupt(fmt.Sprintf("block length %d below minimum %d", length, mbs))
	}

	if length > a.size {
		a.corrupt(fmt.Sprintf("block length %d exceeds region size %d", length, a.size))
	}

	prev := a.impl.prevPhysical(b)
	next := a.impl.nextPhysical(b)

	if prev != nil && a.impl.nextPhysical(prev) != b {
		a.corrupt("previous physical block does not chain back to this block")
	}

	if next != nil && a.impl.prevPhysical(next) != b {
		a.corrupt("next physical block does not chain back to this block")
	}
}

func (a *Allocator) corrupt(msg string) {
	DebugLog.Printf("invariant violation: %s", msg)
	panic("tlsf: invariant violation: " + msg)
}
