// Package grid describes the global shape of a distributed lattice and its
// partition across processor ranks.
//
// A Grid is immutable after construction. It fixes the global dimensions,
// the floating-point precision of field storage, the communicator that
// defines rank and processor count, and the checkerboard arity (1 for
// unsplit grids, 2 for even/odd parity splitting). Every field built on a
// grid borrows it for its whole lifetime; nothing mutates a grid after New.
//
// Sites are ordered lexicographically with the first dimension running
// fastest, and are partitioned into contiguous blocks of equal size, one
// block per rank. Both choices are part of the contract: every rank derives
// the same owner for the same coordinate, which is what makes collectively
// compiled copy plans agree across ranks.
package grid

import (
	"fmt"

	"github.com/sbl8/gridfield/comms"
)

// Grid is the immutable description of a distributed lattice.
type Grid struct {
	dims    []int
	prec    Precision
	comm    comms.Communicator
	cbArity int

	gsites     int
	localSites int

	// cbIndex maps a rank-local site index to its index among same-parity
	// sites of the local block. Built only for arity-2 grids.
	cbIndex []int32
}

// New creates a serial, non-checkerboarded grid over the single-rank
// communicator.
func New(dims []int, prec Precision) (*Grid, error) {
	return NewSplit(dims, prec, comms.Single{}, 1)
}

// NewSplit creates a grid partitioned across the ranks of comm. cbArity must
// be 1 (no parity splitting) or 2 (even/odd splitting). For arity 2, each
// rank's block must contain equally many even and odd sites; this holds for
// the usual even-dimensioned lattices partitioned on row boundaries and is
// verified at construction.
func NewSplit(dims []int, prec Precision, comm comms.Communicator, cbArity int) (*Grid, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("grid: no dimensions given")
	}
	gsites := 1
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("grid: dimension %d is %d, want positive", i, d)
		}
		gsites *= d
	}
	if comm == nil {
		return nil, fmt.Errorf("grid: nil communicator")
	}
	np := comm.Size()
	if gsites%np != 0 {
		return nil, fmt.Errorf("grid: %d sites do not divide evenly over %d ranks", gsites, np)
	}
	if cbArity != 1 && cbArity != 2 {
		return nil, fmt.Errorf("grid: checkerboard arity must be 1 or 2, got %d", cbArity)
	}

	g := &Grid{
		dims:       append([]int(nil), dims...),
		prec:       prec,
		comm:       comm,
		cbArity:    cbArity,
		gsites:     gsites,
		localSites: gsites / np,
	}
	if cbArity == 2 {
		if err := g.buildParityIndex(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// buildParityIndex precomputes, for this rank's block, the index of each site
// among the sites of its parity. The even and odd counts must balance so
// that both parities of a field occupy the same storage size.
func (g *Grid) buildParityIndex() error {
	if g.localSites%2 != 0 {
		return fmt.Errorf("grid: %d local sites cannot split into two parities", g.localSites)
	}
	g.cbIndex = make([]int32, g.localSites)
	start := g.comm.Rank() * g.localSites
	counts := [2]int32{}
	pos := make([]int, len(g.dims))
	for i := 0; i < g.localSites; i++ {
		g.coordinateOf(start+i, pos)
		p := parityOf(pos)
		g.cbIndex[i] = counts[p]
		counts[p]++
	}
	if counts[0] != counts[1] {
		return fmt.Errorf("grid: rank %d block has %d even and %d odd sites, want equal halves",
			g.comm.Rank(), counts[0], counts[1])
	}
	return nil
}

// Dims returns a copy of the global dimensions.
func (g *Grid) Dims() []int {
	return append([]int(nil), g.dims...)
}

// Precision returns the storage precision.
func (g *Grid) Precision() Precision { return g.prec }

// Comm returns the communicator the grid is partitioned over.
func (g *Grid) Comm() comms.Communicator { return g.comm }

// Processors returns the number of ranks.
func (g *Grid) Processors() int { return g.comm.Size() }

// Rank returns this process's rank.
func (g *Grid) Rank() int { return g.comm.Rank() }

// CheckerboardArity returns 1 for unsplit grids and 2 for even/odd grids.
func (g *Grid) CheckerboardArity() int { return g.cbArity }

// GlobalSites returns the product of the global dimensions.
func (g *Grid) GlobalSites() int { return g.gsites }

// LocalSites returns the number of sites in this rank's block.
func (g *Grid) LocalSites() int { return g.localSites }

// StoredSites returns the number of sites a field on this grid stores per
// rank: the full block for arity-1 grids, half of it for parity-split grids.
func (g *Grid) StoredSites() int { return g.localSites / g.cbArity }

// SiteIndex returns the lexicographic global index of a coordinate, with the
// first dimension running fastest. An out-of-range coordinate is an error.
func (g *Grid) SiteIndex(pos []int) (int, error) {
	if len(pos) != len(g.dims) {
		return 0, fmt.Errorf("grid: coordinate has %d dimensions, grid has %d", len(pos), len(g.dims))
	}
	idx := 0
	for d := len(g.dims) - 1; d >= 0; d-- {
		if pos[d] < 0 || pos[d] >= g.dims[d] {
			return 0, fmt.Errorf("grid: coordinate %v out of range in dimension %d (size %d)", pos, d, g.dims[d])
		}
		idx = idx*g.dims[d] + pos[d]
	}
	return idx, nil
}

// coordinateOf writes the coordinate of a global site index into pos.
func (g *Grid) coordinateOf(idx int, pos []int) {
	for d := 0; d < len(g.dims); d++ {
		pos[d] = idx % g.dims[d]
		idx /= g.dims[d]
	}
}

// Coordinate returns the coordinate of a global site index.
func (g *Grid) Coordinate(idx int) []int {
	pos := make([]int, len(g.dims))
	g.coordinateOf(idx, pos)
	return pos
}

// Owner returns the rank owning a coordinate under the contiguous block
// partition.
func (g *Grid) Owner(pos []int) (int, error) {
	idx, err := g.SiteIndex(pos)
	if err != nil {
		return 0, err
	}
	return idx / g.localSites, nil
}

// Parity returns Even or Odd for a coordinate, from the sum of its
// components.
func (g *Grid) Parity(pos []int) Checkerboard {
	if parityOf(pos) == 0 {
		return Even
	}
	return Odd
}

func parityOf(pos []int) int {
	s := 0
	for _, x := range pos {
		s += x
	}
	return s & 1
}

// StoredIndex resolves a coordinate to (owner rank, storage site index within
// the owner's block) for a field holding the given checkerboard. On arity-2
// grids a coordinate whose parity differs from the field's is out of range.
func (g *Grid) StoredIndex(pos []int, cb Checkerboard) (rank, index int, err error) {
	idx, err := g.SiteIndex(pos)
	if err != nil {
		return 0, 0, err
	}
	rank = idx / g.localSites
	local := idx % g.localSites
	if g.cbArity == 1 {
		return rank, local, nil
	}
	if g.Parity(pos) != cb {
		return 0, 0, fmt.Errorf("grid: coordinate %v has parity %s, field stores %s", pos, g.Parity(pos), cb)
	}
	if rank == g.comm.Rank() {
		return rank, int(g.cbIndex[local]), nil
	}
	// Remote block: recompute the parity index without a table. Only the
	// byte length of remote access points matters for schedule agreement,
	// but the index is still derived deterministically.
	return rank, g.remoteParityIndex(idx), nil
}

// remoteParityIndex counts same-parity sites preceding idx within its block.
func (g *Grid) remoteParityIndex(idx int) int {
	start := (idx / g.localSites) * g.localSites
	pos := make([]int, len(g.dims))
	g.coordinateOf(idx, pos)
	p := parityOf(pos)
	n := 0
	for i := start; i < idx; i++ {
		g.coordinateOf(i, pos)
		if parityOf(pos) == p {
			n++
		}
	}
	return n
}

// Describe returns a canonical whitespace-free encoding of the grid shape,
// precision, and checkerboard arity.
func (g *Grid) Describe() string {
	s := "["
	for i, d := range g.dims {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s];%s;cb%d", s, g.prec.Name, g.cbArity)
}

func (g *Grid) String() string {
	return fmt.Sprintf("grid(%v,%s,ranks=%d)", g.dims, g.prec.Name, g.Processors())
}
