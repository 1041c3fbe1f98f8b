// Package otype describes the per-site tensor shape of a lattice field and
// the algebra metadata attached to it.
//
// An ObjectType is a pure value-type lookup table: the tensor shape in
// complex elements, the decomposition into storage sub-objects, and
// compatibility tables for multiplication, adjoint, and transpose. Object
// types carry no engine resources and are shared freely between fields.
//
// The canonical name of an object type round-trips through Parse, which is
// what lets a field description string reconstruct an empty field of the
// same shape.
package otype

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectType describes the per-site value of a field.
type ObjectType struct {
	Name  string
	Shape []int // tensor shape in complex elements

	// SubElems gives the complex-element count of each storage sub-object.
	// Most types decompose into a single object; long vcomplex vectors are
	// split into fixed-size blocks.
	SubElems []int

	// Transposable reports whether adjoint/transpose are defined (square
	// matrix types).
	Transposable bool

	// MulTable maps the name of a right operand to the name of the product
	// type, for the operand pairings the algebra defines.
	MulTable map[string]string
}

// vcomplexBlock bounds the elements per storage sub-object of vcomplex and
// mcomplex types, so large per-site vectors decompose into several handles.
const vcomplexBlock = 16

// Elems returns the number of complex elements per site.
func (o *ObjectType) Elems() int {
	n := 1
	for _, s := range o.Shape {
		n *= s
	}
	return n
}

// Nfloats returns the number of real floats per site (two per complex
// element).
func (o *ObjectType) Nfloats() int {
	return 2 * o.Elems()
}

// SubObjects returns the number of storage sub-objects.
func (o *ObjectType) SubObjects() int {
	return len(o.SubElems)
}

// SubIndex resolves a flat element index to (sub-object, offset within it).
func (o *ObjectType) SubIndex(elem int) (sub, off int, err error) {
	if elem < 0 || elem >= o.Elems() {
		return 0, 0, fmt.Errorf("otype: element %d out of range for %s (%d elements)", elem, o.Name, o.Elems())
	}
	for i, n := range o.SubElems {
		if elem < n {
			return i, elem, nil
		}
		elem -= n
	}
	return 0, 0, fmt.Errorf("otype: %s sub-object table does not cover element %d", o.Name, elem)
}

// FlatIndex resolves a multi-dimensional tensor index to its flat element
// offset, row-major.
func (o *ObjectType) FlatIndex(idx []int) (int, error) {
	if len(idx) != len(o.Shape) {
		return 0, fmt.Errorf("otype: index %v has %d dimensions, %s has %d", idx, len(idx), o.Name, len(o.Shape))
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= o.Shape[d] {
			return 0, fmt.Errorf("otype: index %v out of range in dimension %d (size %d)", idx, d, o.Shape[d])
		}
		flat = flat*o.Shape[d] + i
	}
	return flat, nil
}

// MulResult returns the product type name for multiplication with rhs, or an
// error if the algebra does not define the pairing.
func (o *ObjectType) MulResult(rhs *ObjectType) (string, error) {
	if r, ok := o.MulTable[rhs.Name]; ok {
		return r, nil
	}
	return "", fmt.Errorf("otype: no product defined for %s * %s", o.Name, rhs.Name)
}

func (o *ObjectType) String() string { return o.Name }

// blocks splits n elements into sub-objects of at most vcomplexBlock each.
func blocks(n int) []int {
	var out []int
	for n > 0 {
		b := n
		if b > vcomplexBlock {
			b = vcomplexBlock
		}
		out = append(out, b)
		n -= b
	}
	return out
}

// Complex is the singlet type: one complex number per site.
func Complex() *ObjectType {
	return &ObjectType{
		Name:     "complex",
		Shape:    []int{1},
		SubElems: []int{1},
		MulTable: map[string]string{"complex": "complex"},
	}
}

// VComplex is an n-component complex vector per site, decomposed into
// fixed-size storage blocks.
func VComplex(n int) *ObjectType {
	name := fmt.Sprintf("vcomplex(%d)", n)
	return &ObjectType{
		Name:     name,
		Shape:    []int{n},
		SubElems: blocks(n),
		MulTable: map[string]string{"complex": name},
	}
}

// MComplex is an n-by-n complex matrix per site.
func MComplex(n int) *ObjectType {
	name := fmt.Sprintf("mcomplex(%d)", n)
	return &ObjectType{
		Name:         name,
		Shape:        []int{n, n},
		SubElems:     []int{n * n},
		Transposable: true,
		MulTable: map[string]string{
			name:                        name,
			fmt.Sprintf("vcomplex(%d)", n): fmt.Sprintf("vcomplex(%d)", n),
			"complex":                   name,
		},
	}
}

// VColor is the 3-component color vector.
func VColor() *ObjectType {
	return &ObjectType{
		Name:     "vcolor",
		Shape:    []int{3},
		SubElems: []int{3},
		MulTable: map[string]string{"complex": "vcolor"},
	}
}

// MColor is the 3-by-3 color matrix.
func MColor() *ObjectType {
	return &ObjectType{
		Name:         "mcolor",
		Shape:        []int{3, 3},
		SubElems:     []int{9},
		Transposable: true,
		MulTable: map[string]string{
			"mcolor":  "mcolor",
			"vcolor":  "vcolor",
			"complex": "mcolor",
		},
	}
}

// VSpin is the 4-component spin vector.
func VSpin() *ObjectType {
	return &ObjectType{
		Name:     "vspin",
		Shape:    []int{4},
		SubElems: []int{4},
		MulTable: map[string]string{"complex": "vspin"},
	}
}

// MSpin is the 4-by-4 spin matrix.
func MSpin() *ObjectType {
	return &ObjectType{
		Name:         "mspin",
		Shape:        []int{4, 4},
		SubElems:     []int{16},
		Transposable: true,
		MulTable: map[string]string{
			"mspin":   "mspin",
			"vspin":   "vspin",
			"complex": "mspin",
		},
	}
}

// VSpinColor is the spin-color vector with shape (4, 3).
func VSpinColor() *ObjectType {
	return &ObjectType{
		Name:     "vspincolor",
		Shape:    []int{4, 3},
		SubElems: []int{12},
		MulTable: map[string]string{"complex": "vspincolor"},
	}
}

// MSpinColor is the spin-color matrix with shape (4, 4, 3, 3).
func MSpinColor() *ObjectType {
	return &ObjectType{
		Name:         "mspincolor",
		Shape:        []int{4, 4, 3, 3},
		SubElems:     []int{144},
		Transposable: true,
		MulTable: map[string]string{
			"mspincolor": "mspincolor",
			"vspincolor": "vspincolor",
			"complex":    "mspincolor",
		},
	}
}

// Parse resolves a canonical object-type name, including the parameterized
// vcomplex(n) and mcomplex(n) forms. The result of Parse(o.Name) is always
// structurally equal to o.
func Parse(name string) (*ObjectType, error) {
	switch name {
	case "complex":
		return Complex(), nil
	case "vcolor":
		return VColor(), nil
	case "mcolor":
		return MColor(), nil
	case "vspin":
		return VSpin(), nil
	case "mspin":
		return MSpin(), nil
	case "vspincolor":
		return VSpinColor(), nil
	case "mspincolor":
		return MSpinColor(), nil
	}
	for _, p := range []struct {
		prefix string
		make   func(int) *ObjectType
	}{
		{"vcomplex(", VComplex},
		{"mcomplex(", MComplex},
	} {
		if strings.HasPrefix(name, p.prefix) && strings.HasSuffix(name, ")") {
			arg := name[len(p.prefix) : len(name)-1]
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("otype: bad parameter in %q", name)
			}
			return p.make(n), nil
		}
	}
	return nil, fmt.Errorf("otype: unknown object type %q", name)
}
