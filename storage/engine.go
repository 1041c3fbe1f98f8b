// Package storage defines the narrow contract between lattice fields and the
// engine that owns their raw per-site memory, and provides a host-memory
// reference engine.
//
// The container layer adds no logic around these calls beyond sequencing:
// every operation on a field applies to each of its sub-object handles in
// order. Numeric kernels operating on the memory behind a handle live outside
// this module entirely.
package storage

import (
	"errors"

	"github.com/sbl8/gridfield/grid"
)

// Handle identifies one engine-managed allocation holding the raw memory of
// a single field sub-object. Handles are exclusively owned by one field for
// their lifetime.
type Handle uint64

// Hint tags an expected access pattern for Advise and Prefetch. The engine
// is free to ignore hints; they never change observable contents.
type Hint string

const (
	HintHost        Hint = "host"
	HintAccelerator Hint = "accelerator"
)

// ErrUnknownHandle is returned when an operation addresses a handle the
// engine does not hold, including handles already freed.
var ErrUnknownHandle = errors.New("storage: unknown handle")

// Engine is the storage contract. Allocate sizes the allocation from the
// grid's stored per-rank site count, the element count of the sub-object,
// and the precision width.
type Engine interface {
	// Allocate creates a zero-initialized allocation for one sub-object of
	// elems complex elements per site.
	Allocate(g *grid.Grid, tag string, elems int, prec grid.Precision) (Handle, error)
	// Free releases an allocation. Freeing an unknown or already-freed
	// handle is an error.
	Free(h Handle) error
	// Advise passes an access-pattern hint for the allocation.
	Advise(h Handle, hint Hint) error
	// Prefetch requests the allocation be staged for the hinted access
	// pattern.
	Prefetch(h Handle, hint Hint) error
	// Checkerboard returns the parity tag currently attached to the
	// allocation.
	Checkerboard(h Handle) (grid.Checkerboard, error)
	// SetCheckerboard reinterprets the allocation's parity tag. No data
	// moves.
	SetCheckerboard(h Handle, cb grid.Checkerboard) error
	// Zero sets every byte of the allocation to zero.
	Zero(h Handle) error
	// Memory returns the raw backing bytes of the allocation. The slice
	// aliases engine memory and stays valid until Free.
	Memory(h Handle) ([]byte, error)
	// String renders the allocation's contents for display.
	String(h Handle) (string, error)
}
