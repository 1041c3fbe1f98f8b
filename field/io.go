package field

import (
	"fmt"

	"github.com/sbl8/gridfield/grid"
	"github.com/sbl8/gridfield/otype"
	"github.com/sbl8/gridfield/plan"
	"github.com/sbl8/gridfield/storage"
	"github.com/sbl8/gridfield/view"
)

// latticeView enumerates one access point per (position, tensor element) in
// key order, each repeated `replicate` times consecutively. Points owned by
// this rank carry the sub-object buffer; remote points carry only rank,
// offset, and length, which is all schedule agreement needs.
func (l *Lattice) latticeView(r *resolved, cb grid.Checkerboard, replicate int) (view.View, error) {
	eb := l.grid.Precision().ComplexBytes()
	me := l.grid.Rank()

	// Resolve local sub-object buffers once.
	bufs := make([][]byte, len(l.handles))
	for i := range l.handles {
		m, err := l.engine.Memory(l.handles[i])
		if err != nil {
			return view.View{}, err
		}
		bufs[i] = m
	}

	points := make([]view.AccessPoint, 0, len(r.pos)*len(r.tidx)*replicate)
	for _, pos := range r.pos {
		rank, sidx, err := l.grid.StoredIndex(pos, cb)
		if err != nil {
			return view.View{}, err
		}
		for _, t := range r.tidx {
			sub, off, err := l.ot.SubIndex(t)
			if err != nil {
				return view.View{}, err
			}
			p := view.AccessPoint{
				Rank:   rank,
				Offset: (sidx*l.ot.SubElems[sub] + off) * eb,
				Length: eb,
			}
			if rank == me {
				p.Buf = bufs[sub]
			}
			for k := 0; k < replicate; k++ {
				points = append(points, p)
			}
		}
	}
	v, err := view.Blocks(points)
	if err != nil {
		return view.View{}, err
	}
	return v, nil
}

// ownerAlignedMemoryView enumerates the replicated host buffer in element
// order, tagging each block with the rank that owns the corresponding
// lattice element. Every rank holds the full buffer, so pairing this against
// a lattice view yields purely rank-local copies.
func (l *Lattice) ownerAlignedMemoryView(r *resolved, cb grid.Checkerboard, buf []byte) (view.View, error) {
	eb := l.grid.Precision().ComplexBytes()
	points := make([]view.AccessPoint, 0, len(r.pos)*len(r.tidx))
	off := 0
	for _, pos := range r.pos {
		rank, _, err := l.grid.StoredIndex(pos, cb)
		if err != nil {
			return view.View{}, err
		}
		for range r.tidx {
			points = append(points, view.AccessPoint{Rank: rank, Buf: buf, Offset: off, Length: eb})
			off += eb
		}
	}
	return view.Blocks(points)
}

// broadcastMemoryView enumerates, for every element, one block per rank into
// that rank's replicated result buffer. Paired with a lattice view that
// repeats each element once per rank, it compiles into an owner-to-all
// broadcast with an identical schedule on every rank.
func (l *Lattice) broadcastMemoryView(elements int, buf []byte) (view.View, error) {
	eb := l.grid.Precision().ComplexBytes()
	np := l.grid.Processors()
	me := l.grid.Rank()
	points := make([]view.AccessPoint, 0, elements*np)
	for j := 0; j < elements; j++ {
		for rank := 0; rank < np; rank++ {
			p := view.AccessPoint{Rank: rank, Offset: j * eb, Length: eb}
			if rank == me {
				p.Buf = buf
			}
			points = append(points, p)
		}
	}
	return view.Blocks(points)
}

// Write assigns a value to the coordinate/tensor subset selected by the key.
// The value is normalized to precision-width complex bytes and cyclically
// upscaled when shorter than the subset requires (broadcast assignment); a
// value longer than required is a contract violation. Writing the literal
// scalar zero to All bypasses the view/plan machinery entirely and issues a
// bulk zero to the engine.
func (l *Lattice) Write(k Key, value any) error {
	if l.closed {
		return fmt.Errorf("field: write on closed lattice")
	}
	if _, all := k.(All); all && isLiteralZero(value) {
		return l.Zero()
	}

	cb, err := l.Checkerboard()
	if err != nil {
		return err
	}
	r, err := resolveKey(l.grid, l.ot, cb, k)
	if err != nil {
		return err
	}

	vals, err := normalizeValue(value)
	if err != nil {
		return err
	}
	raw := storage.ComplexToBytes(vals, l.grid.Precision())
	needed := len(r.pos) * r.elements() * l.grid.Precision().ComplexBytes()
	raw, err = storage.CopyCyclicUpscale(raw, needed)
	if err != nil {
		return err
	}
	if len(raw) != needed {
		return fmt.Errorf("field: value is %d bytes, subset requires %d", len(raw), needed)
	}

	dst, err := l.latticeView(r, cb, 1)
	if err != nil {
		return err
	}
	src, err := l.ownerAlignedMemoryView(r, cb, raw)
	if err != nil {
		return err
	}
	x, err := plan.New(dst, src).Compile(l.grid.Rank())
	if err != nil {
		return err
	}
	return x.Execute(l.grid.Comm())
}

// ReadSlice reads the subset selected by the key into a freshly allocated
// host slice, position-major, replicated on every rank. The returned shape
// is the per-element tensor shape.
func (l *Lattice) ReadSlice(k Key) ([]complex128, []int, error) {
	if l.closed {
		return nil, nil, fmt.Errorf("field: read on closed lattice")
	}
	cb, err := l.Checkerboard()
	if err != nil {
		return nil, nil, err
	}
	r, err := resolveKey(l.grid, l.ot, cb, k)
	if err != nil {
		return nil, nil, err
	}

	elements := len(r.pos) * r.elements()
	raw := make([]byte, elements*l.grid.Precision().ComplexBytes())

	dst, err := l.broadcastMemoryView(elements, raw)
	if err != nil {
		return nil, nil, err
	}
	src, err := l.latticeView(r, cb, l.grid.Processors())
	if err != nil {
		return nil, nil, err
	}
	x, err := plan.New(dst, src).Compile(l.grid.Rank())
	if err != nil {
		return nil, nil, err
	}
	if err := x.Execute(l.grid.Comm()); err != nil {
		return nil, nil, err
	}

	vals, err := storage.BytesToComplex(raw, l.grid.Precision())
	if err != nil {
		return nil, nil, err
	}
	return vals, r.shape, nil
}

// Read reads the subset selected by the key. When exactly one element is
// selected and its shape is the field's full per-site shape, the result is
// unwrapped into a *otype.Tensor; otherwise it is the position-major
// []complex128 that ReadSlice returns.
func (l *Lattice) Read(k Key) (any, error) {
	vals, shape, err := l.ReadSlice(k)
	if err != nil {
		return nil, err
	}
	if len(vals) == shapeElems(shape) && shapeEqual(shape, l.ot.Shape) {
		t, err := otype.TensorOf(l.ot, vals)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return vals, nil
}

// ReadTensor reads a single full-shape element as a tensor. It fails when
// the key selects anything else.
func (l *Lattice) ReadTensor(k Key) (*otype.Tensor, error) {
	v, err := l.Read(k)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*otype.Tensor)
	if !ok {
		return nil, fmt.Errorf("field: key does not select a single full-shape element")
	}
	return t, nil
}

// Copy moves the full contents of src into dst through a whole-slab copy
// plan. Both lattices must share grid, object type, and checkerboard.
func Copy(dst, src *Lattice) error {
	if dst.grid != src.grid {
		return fmt.Errorf("field: copy between different grids")
	}
	if dst.ot.Name != src.ot.Name {
		return fmt.Errorf("field: copy between %s and %s", dst.ot.Name, src.ot.Name)
	}
	dcb, err := dst.Checkerboard()
	if err != nil {
		return err
	}
	scb, err := src.Checkerboard()
	if err != nil {
		return err
	}
	if dcb != scb {
		return fmt.Errorf("field: copy between %s and %s checkerboards", dcb, scb)
	}

	me := dst.grid.Rank()
	var dv, sv view.View
	for i := range dst.handles {
		dm, err := dst.Memory(i)
		if err != nil {
			return err
		}
		sm, err := src.Memory(i)
		if err != nil {
			return err
		}
		d, err := view.Memory(me, dm, 0, len(dm))
		if err != nil {
			return err
		}
		s, err := view.Memory(me, sm, 0, len(sm))
		if err != nil {
			return err
		}
		dv.Append(d)
		sv.Append(s)
	}
	x, err := plan.New(dv, sv).Compile(me)
	if err != nil {
		return err
	}
	return x.Execute(dst.grid.Comm())
}

func isLiteralZero(value any) bool {
	switch v := value.(type) {
	case int:
		return v == 0
	case float64:
		return v == 0
	case complex128:
		return v == 0
	}
	return false
}
