package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sbl8/gridfield/grid"
)

// slab is one host allocation: a cache-aligned byte buffer plus the metadata
// needed to interpret and display it.
type slab struct {
	buf   []byte
	grid  *grid.Grid
	tag   string
	elems int
	prec  grid.Precision
	cb    grid.Checkerboard
}

// Host is the reference storage engine backed by process memory. Allocations
// are cache-aligned byte slabs sized for the grid's stored per-rank sites.
// It tracks frees so that the container layer's exactly-once release
// guarantee is observable in tests.
type Host struct {
	mu    sync.Mutex
	next  Handle
	slabs map[Handle]*slab

	allocs int
	frees  int
}

// NewHost creates an empty host engine.
func NewHost() *Host {
	return &Host{next: 1, slabs: make(map[Handle]*slab)}
}

// Allocate creates a zeroed slab of stored-sites * elems complex elements.
func (e *Host) Allocate(g *grid.Grid, tag string, elems int, prec grid.Precision) (Handle, error) {
	if g == nil {
		return 0, fmt.Errorf("storage: allocate with nil grid")
	}
	if elems <= 0 {
		return 0, fmt.Errorf("storage: allocate %q with %d elements, want positive", tag, elems)
	}
	size := g.StoredSites() * elems * prec.ComplexBytes()
	buf := AlignedBytes(size)
	if buf == nil && size > 0 {
		return 0, fmt.Errorf("storage: failed to allocate %d bytes for %q", size, tag)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.next
	e.next++
	e.slabs[h] = &slab{buf: buf, grid: g, tag: tag, elems: elems, prec: prec, cb: grid.None}
	e.allocs++
	return h, nil
}

func (e *Host) get(h Handle) (*slab, error) {
	s, ok := e.slabs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return s, nil
}

// Free releases a slab. The handle becomes invalid immediately.
func (e *Host) Free(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.slabs[h]; !ok {
		return fmt.Errorf("%w: free of %d", ErrUnknownHandle, h)
	}
	delete(e.slabs, h)
	e.frees++
	return nil
}

// Advise records an access-pattern hint. The host engine has a single memory
// space, so hints are accepted and ignored.
func (e *Host) Advise(h Handle, hint Hint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.get(h)
	return err
}

// Prefetch is accepted and ignored, like Advise.
func (e *Host) Prefetch(h Handle, hint Hint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.get(h)
	return err
}

// Checkerboard returns the slab's parity tag.
func (e *Host) Checkerboard(h Handle) (grid.Checkerboard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.get(h)
	if err != nil {
		return grid.None, err
	}
	return s.cb, nil
}

// SetCheckerboard retags the slab's parity. Contents are untouched.
func (e *Host) SetCheckerboard(h Handle, cb grid.Checkerboard) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.get(h)
	if err != nil {
		return err
	}
	s.cb = cb
	return nil
}

// Zero clears the slab.
func (e *Host) Zero(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.get(h)
	if err != nil {
		return err
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	return nil
}

// Memory returns the slab's backing bytes. The slice aliases engine memory.
func (e *Host) Memory(h Handle) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.get(h)
	if err != nil {
		return nil, err
	}
	return s.buf, nil
}

// String renders the slab's local sites, one line per site.
func (e *Host) String(h Handle) (string, error) {
	e.mu.Lock()
	s, err := e.get(h)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	vals, err := BytesToComplex(s.buf, s.prec)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for site := 0; site*s.elems < len(vals); site++ {
		fmt.Fprintf(&b, "site %d: %v\n", site, vals[site*s.elems:(site+1)*s.elems])
	}
	return b.String(), nil
}

// Live returns the number of slabs currently held.
func (e *Host) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.slabs)
}

// Counts returns total allocations and frees since creation.
func (e *Host) Counts() (allocs, frees int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocs, e.frees
}
