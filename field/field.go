package field

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sbl8/gridfield/book"
	"github.com/sbl8/gridfield/grid"
	"github.com/sbl8/gridfield/otype"
	"github.com/sbl8/gridfield/storage"
)

// Lattice is a distributed field container: one storage handle per
// object-type sub-object, bound to a grid, with a shared checkerboard state
// across all handles. The lattice exclusively owns its handles; Close
// releases them exactly once and deregisters the container.
type Lattice struct {
	grid    *grid.Grid
	ot      *otype.ObjectType
	engine  storage.Engine
	book    *book.Book
	handles []storage.Handle
	closed  bool

	// primary is handles[0], kept after release so the registry key stays
	// inspectable once the lattice is closed.
	primary storage.Handle

	// cb mirrors the parity tag held by the engine. Only SetCheckerboard
	// mutates either, so the two never diverge.
	cb grid.Checkerboard
}

// New allocates a lattice for the given grid and object type. On an unsplit
// grid the checkerboard is None; on a parity-split grid it defaults to Even.
func New(g *grid.Grid, ot *otype.ObjectType, eng storage.Engine) (*Lattice, error) {
	cb := grid.None
	if g.CheckerboardArity() == 2 {
		cb = grid.Even
	}
	return NewWithCheckerboard(g, ot, eng, cb)
}

// NewWithCheckerboard allocates a lattice with an explicit checkerboard.
// Requesting a real parity on an unsplit grid is a contract violation.
func NewWithCheckerboard(g *grid.Grid, ot *otype.ObjectType, eng storage.Engine, cb grid.Checkerboard) (*Lattice, error) {
	return construct(g, ot, eng, book.Default, cb)
}

// NewInBook is the general constructor, registering the container in an
// explicit bookkeeping registry instead of the process-wide default.
func NewInBook(g *grid.Grid, ot *otype.ObjectType, eng storage.Engine, b *book.Book, cb grid.Checkerboard) (*Lattice, error) {
	return construct(g, ot, eng, b, cb)
}

func construct(g *grid.Grid, ot *otype.ObjectType, eng storage.Engine, b *book.Book, cb grid.Checkerboard) (*Lattice, error) {
	if g == nil || ot == nil || eng == nil || b == nil {
		return nil, errors.New("field: nil grid, otype, engine, or book")
	}
	if g.CheckerboardArity() == 1 && cb != grid.None {
		return nil, fmt.Errorf("field: grid has no parity split, cannot create %s lattice", cb)
	}
	if g.CheckerboardArity() == 2 && cb == grid.None {
		return nil, errors.New("field: parity-split grid requires an even or odd lattice")
	}

	l := &Lattice{grid: g, ot: ot, engine: eng, book: b, cb: cb}
	for i, elems := range ot.SubElems {
		tag := fmt.Sprintf("%s/%d", ot.Name, i)
		h, err := eng.Allocate(g, tag, elems, g.Precision())
		if err != nil {
			// Release whatever was allocated before propagating.
			for _, prev := range l.handles {
				_ = eng.Free(prev)
			}
			return nil, fmt.Errorf("field: allocate %s sub-object %d: %w", ot.Name, i, err)
		}
		l.handles = append(l.handles, h)
	}
	l.primary = l.handles[0]
	if cb != grid.None {
		for _, h := range l.handles {
			if err := eng.SetCheckerboard(h, cb); err != nil {
				l.release()
				return nil, err
			}
		}
	}
	if err := b.Insert(l.primary, g, ot, l.RankBytes()); err != nil {
		l.release()
		return nil, err
	}
	return l, nil
}

// NewFromDesc allocates a lattice from a description string of the form
// "<otype-name>;<checkerboard-name>", as produced by Describe.
func NewFromDesc(g *grid.Grid, desc string, eng storage.Engine) (*Lattice, error) {
	parts := strings.Split(desc, ";")
	if len(parts) != 2 {
		return nil, fmt.Errorf("field: malformed description %q", desc)
	}
	ot, err := otype.Parse(parts[0])
	if err != nil {
		return nil, err
	}
	cb, err := grid.ParseCheckerboard(parts[1])
	if err != nil {
		return nil, err
	}
	return NewWithCheckerboard(g, ot, eng, cb)
}

// NewLike allocates a lattice with the same grid, object type, and
// checkerboard as other. Contents are not copied; use Copy for that.
func NewLike(other *Lattice) (*Lattice, error) {
	cb, err := other.Checkerboard()
	if err != nil {
		return nil, err
	}
	return NewInBook(other.grid, other.ot, other.engine, other.book, cb)
}

// Grid returns the grid the lattice is built on.
func (l *Lattice) Grid() *grid.Grid { return l.grid }

// Otype returns the object-type descriptor.
func (l *Lattice) Otype() *otype.ObjectType { return l.ot }

// Checkerboard returns None on unsplit grids; otherwise the parity read from
// the primary handle. All handles hold the same parity invariantly, so one
// read suffices.
func (l *Lattice) Checkerboard() (grid.Checkerboard, error) {
	if l.grid.CheckerboardArity() == 1 {
		return grid.None, nil
	}
	return l.engine.Checkerboard(l.primary)
}

// SetCheckerboard retags every handle with the requested parity. Requesting
// a real parity on an unsplit grid is a contract violation; None is a no-op.
// No data moves.
func (l *Lattice) SetCheckerboard(cb grid.Checkerboard) error {
	if cb == grid.None {
		return nil
	}
	if l.grid.CheckerboardArity() == 1 {
		return fmt.Errorf("field: grid has no parity split, cannot set checkerboard %s", cb)
	}
	for _, h := range l.handles {
		if err := l.engine.SetCheckerboard(h, cb); err != nil {
			return err
		}
	}
	l.cb = cb
	return nil
}

// Advise passes an access-pattern hint to every handle.
func (l *Lattice) Advise(hint storage.Hint) error {
	for _, h := range l.handles {
		if err := l.engine.Advise(h, hint); err != nil {
			return err
		}
	}
	return nil
}

// Prefetch requests staging of every handle for the hinted access pattern.
func (l *Lattice) Prefetch(hint storage.Hint) error {
	for _, h := range l.handles {
		if err := l.engine.Prefetch(h, hint); err != nil {
			return err
		}
	}
	return nil
}

// Zero clears every handle through the engine's bulk path.
func (l *Lattice) Zero() error {
	for _, h := range l.handles {
		if err := l.engine.Zero(h); err != nil {
			return err
		}
	}
	return nil
}

// GlobalBytes returns per-site float count times global sites times
// precision width. For parity-split grids this is the full-grid figure.
func (l *Lattice) GlobalBytes() int64 {
	return int64(l.ot.Nfloats()) * int64(l.grid.GlobalSites()) * int64(l.grid.Precision().Width)
}

// RankBytes returns GlobalBytes divided over the ranks.
func (l *Lattice) RankBytes() int64 {
	return l.GlobalBytes() / int64(l.grid.Processors())
}

// Describe returns the canonical whitespace-free encoding of object type and
// checkerboard. Combined with the grid it reconstructs an empty lattice of
// the same shape through NewFromDesc. The mirrored parity is used so that
// the description stays valid even after Close.
func (l *Lattice) Describe() string {
	return l.ot.Name + ";" + l.cb.String()
}

// Memory returns the raw local bytes of sub-object i. The slice aliases
// engine memory; callers must not hold it across Close.
func (l *Lattice) Memory(i int) ([]byte, error) {
	if i < 0 || i >= len(l.handles) {
		return nil, fmt.Errorf("field: sub-object %d out of range (%d handles)", i, len(l.handles))
	}
	return l.engine.Memory(l.handles[i])
}

// SubObjects returns the number of storage handles.
func (l *Lattice) SubObjects() int { return len(l.handles) }

// PrimaryHandle returns the handle the container is registered under. It
// stays valid as a registry key after Close, though the engine no longer
// holds it.
func (l *Lattice) PrimaryHandle() storage.Handle { return l.primary }

// Close deregisters the container and frees every handle exactly once.
// Closing twice is an error.
func (l *Lattice) Close() error {
	if l.closed {
		return errors.New("field: lattice already closed")
	}
	l.closed = true
	err := l.book.Remove(l.primary)
	if e := l.release(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func (l *Lattice) release() error {
	var err error
	for _, h := range l.handles {
		if e := l.engine.Free(h); e != nil {
			err = errors.Join(err, e)
		}
	}
	l.handles = nil
	return err
}

func (l *Lattice) String() string {
	repr := fmt.Sprintf("lattice(%s,%s)", l.ot.Name, l.grid.Precision())
	var sb strings.Builder
	sb.WriteString(repr)
	for i, h := range l.handles {
		if len(l.handles) > 1 {
			fmt.Fprintf(&sb, "\n-------- sub-object %d --------", i)
		}
		s, err := l.engine.String(h)
		if err != nil {
			fmt.Fprintf(&sb, "\n<unavailable: %v>", err)
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(s)
	}
	return sb.String()
}
