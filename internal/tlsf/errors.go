package tlsf

import (
	"errors"
	"fmt"

	orizonerrors "github.com/orizon-lang/orizon/internal/errors"
)

// Sentinel errors for errors.Is callers. The wrapped StandardError (from
// the shared internal/errors package, see DESIGN.md) carries the
// category/code/context for logging; these sentinels carry identity.
var (
	// ErrExhausted is returned when no free block of sufficient size
	// exists (spec §7 "Exhaustion").
	ErrExhausted = errors.New("tlsf: allocation exhausted")

	// ErrHeaderAlloc is returned by NewExt when the header for the
	// initial block cannot be obtained. A header failure during a split
	// is not reported: ExtAlloc hands back the whole block unsplit.
	ErrHeaderAlloc = errors.New("tlsf: external header allocation failed")

	// ErrInvalidRegion is returned by New and NewExt when the rounded
	// region size is below the mode's minimum: 2*mbs plus one header for
	// Internal mode, mbs for External mode (spec §6 preconditions).
	ErrInvalidRegion = errors.New("tlsf: region too small")

	// ErrDoubleFree is the best-effort use-after-free/double-free guard
	// of spec §3.4 and §7: the free flag was already set on entry to
	// Free/ExtFree.
	ErrDoubleFree = errors.New("tlsf: double free or corrupted block")
)

func errExhausted(requested uint64) error {
	return fmt.Errorf("%w: %v", ErrExhausted, orizonerrors.AllocatorExhausted(uintptr(requested)))
}

func errHeaderAlloc(requested uint64) error {
	return fmt.Errorf("%w: %v", ErrHeaderAlloc, orizonerrors.AllocatorHeaderAlloc(uintptr(requested)))
}

func errInvalidRegion(size uint64) error {
	return fmt.Errorf("%w: %v", ErrInvalidRegion, orizonerrors.AllocatorInvalidRegion(uintptr(size)))
}

func errDoubleFree() error {
	return fmt.Errorf("%w", ErrDoubleFree)
}
