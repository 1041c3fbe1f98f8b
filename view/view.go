// Package view describes one side of a data transfer as an ordered
// enumeration of access points.
//
// Every rank participating in a transfer enumerates the same logical
// sequence of access points for the same key, in the same order; that shared
// enumeration is what lets each rank compile an agreeing copy-plan schedule
// without exchanging any plan data. An access point carries the owning rank
// and the byte extent on every rank, but a concrete buffer only on ranks
// that can address the memory locally.
//
// Views are cheap, pure data. They hold no engine resources until a plan
// binds them.
package view

import "github.com/pkg/errors"

// AccessPoint is one storage location participating in a transfer.
type AccessPoint struct {
	// Rank owns the memory behind this point.
	Rank int
	// Buf is the local backing buffer when this process can address the
	// memory, nil otherwise. Plan compilation only dereferences Buf for
	// points the local rank must read or write.
	Buf []byte
	// Offset and Length delimit the byte extent within the buffer.
	Offset int
	Length int
}

// View is an ordered list of access points. Destination and source views of
// one transfer are paired strictly by sequence position.
type View struct {
	Points []AccessPoint
}

// Memory builds a single-block view into a flat buffer owned by the given
// rank. buf may be nil on ranks that do not hold the memory.
func Memory(rank int, buf []byte, offset, length int) (View, error) {
	if offset < 0 || length < 0 {
		return View{}, errors.Errorf("view: negative extent (offset %d, length %d)", offset, length)
	}
	if buf != nil && offset+length > len(buf) {
		return View{}, errors.Errorf("view: block [%d,%d) exceeds buffer of %d bytes", offset, offset+length, len(buf))
	}
	return View{Points: []AccessPoint{{Rank: rank, Buf: buf, Offset: offset, Length: length}}}, nil
}

// Blocks builds a view from explicit access points, validating each local
// block against its buffer.
func Blocks(points []AccessPoint) (View, error) {
	for i, p := range points {
		if p.Offset < 0 || p.Length < 0 {
			return View{}, errors.Errorf("view: point %d has negative extent", i)
		}
		if p.Buf != nil && p.Offset+p.Length > len(p.Buf) {
			return View{}, errors.Errorf("view: point %d block [%d,%d) exceeds buffer of %d bytes",
				i, p.Offset, p.Offset+p.Length, len(p.Buf))
		}
	}
	return View{Points: points}, nil
}

// Append extends v with the points of more views, preserving order.
func (v *View) Append(more ...View) {
	for _, m := range more {
		v.Points = append(v.Points, m.Points...)
	}
}

// TotalBytes returns the summed byte length of all points.
func (v View) TotalBytes() int {
	n := 0
	for _, p := range v.Points {
		n += p.Length
	}
	return n
}

// Len returns the number of access points.
func (v View) Len() int {
	return len(v.Points)
}
