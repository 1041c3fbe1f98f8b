// Package field implements the distributed lattice field container: typed
// multi-dimensional arrays bound to a grid, addressed through coordinate and
// tensor-index keys, and moved through the view/plan machinery.
package field

import (
	"fmt"

	"github.com/sbl8/gridfield/grid"
	"github.com/sbl8/gridfield/otype"
)

// Any is the wildcard selector for one dimension of a Slice key or one axis
// of a partial tensor index.
const Any = -1

// Key selects a coordinate subset of a field, optionally narrowed to a
// tensor sub-index subset. Each variant has its own resolver; all resolvers
// produce the same canonical triple of positions, flat tensor offsets, and
// per-element shape.
type Key interface {
	isKey()
}

// All selects every stored site with the full per-site tensor.
type All struct{}

// Coord selects a single site by its full coordinate.
type Coord []int

// Coords selects an explicit ordered list of sites.
type Coords [][]int

// Slice selects sites by fixing a subset of dimensions; entries are either a
// coordinate value or Any. Sites enumerate in lexicographic order with the
// first dimension fastest.
type Slice []int

// Elem narrows a site selection to one tensor index path. Entries may use
// Any to leave tensor axes free, e.g. fixing only the spin indices of a
// spin-color matrix.
type Elem struct {
	Site  Key
	Index []int
}

// ElemList narrows a site selection to an explicit combination of tensor
// index tuples, e.g. several matrix entries written from one vector.
type ElemList struct {
	Site    Key
	Indices [][]int
}

// ElemRange narrows a site selection to a contiguous range of flat tensor
// elements [From, To).
type ElemRange struct {
	Site Key
	From int
	To   int
}

func (All) isKey()       {}
func (Coord) isKey()     {}
func (Coords) isKey()    {}
func (Slice) isKey()     {}
func (Elem) isKey()      {}
func (ElemList) isKey()  {}
func (ElemRange) isKey() {}

// resolved is the canonical output of key resolution: site positions in
// enumeration order, the flat tensor offsets shared by every position, and
// the per-element shape.
type resolved struct {
	pos   [][]int
	tidx  []int
	shape []int
}

// elements returns the per-position element count.
func (r *resolved) elements() int {
	return len(r.tidx)
}

// resolveKey translates any key variant into the canonical triple for a
// field with the given grid, object type, and checkerboard. Out-of-range
// coordinates and tensor indices are hard errors.
func resolveKey(g *grid.Grid, ot *otype.ObjectType, cb grid.Checkerboard, k Key) (*resolved, error) {
	switch key := k.(type) {
	case All:
		pos, err := resolveSites(g, cb, nil)
		if err != nil {
			return nil, err
		}
		return fullTensor(ot, pos), nil
	case Coord:
		if err := checkCoord(g, key); err != nil {
			return nil, err
		}
		return fullTensor(ot, [][]int{key}), nil
	case Coords:
		for _, c := range key {
			if err := checkCoord(g, c); err != nil {
				return nil, err
			}
		}
		return fullTensor(ot, [][]int(key)), nil
	case Slice:
		pos, err := resolveSites(g, cb, key)
		if err != nil {
			return nil, err
		}
		return fullTensor(ot, pos), nil
	case Elem:
		r, err := resolveKey(g, ot, cb, key.Site)
		if err != nil {
			return nil, err
		}
		return narrowIndex(ot, r, key.Index)
	case ElemList:
		r, err := resolveKey(g, ot, cb, key.Site)
		if err != nil {
			return nil, err
		}
		return narrowList(ot, r, key.Indices)
	case ElemRange:
		r, err := resolveKey(g, ot, cb, key.Site)
		if err != nil {
			return nil, err
		}
		return narrowRange(ot, r, key.From, key.To)
	}
	return nil, fmt.Errorf("field: unsupported key %T", k)
}

func checkCoord(g *grid.Grid, c []int) error {
	_, err := g.SiteIndex(c)
	return err
}

// resolveSites enumerates sites lexicographically, honoring fixed dimensions
// of a slice selector and, on parity-split grids, the field's checkerboard.
func resolveSites(g *grid.Grid, cb grid.Checkerboard, sel Slice) ([][]int, error) {
	dims := g.Dims()
	if sel != nil && len(sel) != len(dims) {
		return nil, fmt.Errorf("field: slice selector has %d dimensions, grid has %d", len(sel), len(dims))
	}
	for d, s := range sel {
		if s != Any && (s < 0 || s >= dims[d]) {
			return nil, fmt.Errorf("field: slice value %d out of range in dimension %d (size %d)", s, d, dims[d])
		}
	}
	var out [][]int
	total := g.GlobalSites()
	for i := 0; i < total; i++ {
		pos := g.Coordinate(i)
		if cb != grid.None && g.Parity(pos) != cb {
			continue
		}
		match := true
		for d, s := range sel {
			if s != Any && pos[d] != s {
				match = false
				break
			}
		}
		if match {
			out = append(out, pos)
		}
	}
	return out, nil
}

func fullTensor(ot *otype.ObjectType, pos [][]int) *resolved {
	tidx := make([]int, ot.Elems())
	for i := range tidx {
		tidx[i] = i
	}
	return &resolved{pos: pos, tidx: tidx, shape: append([]int(nil), ot.Shape...)}
}

// narrowIndex restricts the tensor selection to one index path, where Any
// entries leave an axis free. A fully fixed path yields a scalar element.
func narrowIndex(ot *otype.ObjectType, r *resolved, index []int) (*resolved, error) {
	if len(index) != len(ot.Shape) {
		return nil, fmt.Errorf("field: tensor index %v has %d axes, %s has %d", index, len(index), ot.Name, len(ot.Shape))
	}
	var freeShape []int
	for d, i := range index {
		if i == Any {
			freeShape = append(freeShape, ot.Shape[d])
		} else if i < 0 || i >= ot.Shape[d] {
			return nil, fmt.Errorf("field: tensor index %v out of range in axis %d (size %d)", index, d, ot.Shape[d])
		}
	}
	var tidx []int
	cur := make([]int, len(index))
	var walk func(d int) error
	walk = func(d int) error {
		if d == len(index) {
			flat, err := ot.FlatIndex(cur)
			if err != nil {
				return err
			}
			tidx = append(tidx, flat)
			return nil
		}
		if index[d] != Any {
			cur[d] = index[d]
			return walk(d + 1)
		}
		for i := 0; i < ot.Shape[d]; i++ {
			cur[d] = i
			if err := walk(d + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return &resolved{pos: r.pos, tidx: tidx, shape: freeShape}, nil
}

// narrowList restricts the tensor selection to an explicit tuple
// combination; the element shape is the tuple count.
func narrowList(ot *otype.ObjectType, r *resolved, indices [][]int) (*resolved, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("field: empty tensor index combination")
	}
	tidx := make([]int, len(indices))
	for i, tuple := range indices {
		flat, err := ot.FlatIndex(tuple)
		if err != nil {
			return nil, err
		}
		tidx[i] = flat
	}
	return &resolved{pos: r.pos, tidx: tidx, shape: []int{len(indices)}}, nil
}

// narrowRange restricts the tensor selection to flat elements [from, to).
func narrowRange(ot *otype.ObjectType, r *resolved, from, to int) (*resolved, error) {
	if from < 0 || to > ot.Elems() || from >= to {
		return nil, fmt.Errorf("field: tensor range [%d,%d) invalid for %s (%d elements)", from, to, ot.Name, ot.Elems())
	}
	tidx := make([]int, to-from)
	for i := range tidx {
		tidx[i] = from + i
	}
	return &resolved{pos: r.pos, tidx: tidx, shape: []int{to - from}}, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func shapeElems(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
