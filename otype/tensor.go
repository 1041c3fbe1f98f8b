package otype

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Tensor is one per-site value: an object type plus its flattened complex
// elements in row-major order. Tensors are plain host-side values with no
// engine resources attached.
type Tensor struct {
	Otype *ObjectType
	Data  []complex128
}

// NewTensor creates a zero tensor of the given type.
func NewTensor(o *ObjectType) *Tensor {
	return &Tensor{Otype: o, Data: make([]complex128, o.Elems())}
}

// TensorOf creates a tensor from explicit element values. The element count
// must match the type.
func TensorOf(o *ObjectType, data []complex128) (*Tensor, error) {
	if len(data) != o.Elems() {
		return nil, fmt.Errorf("otype: %d elements given for %s, want %d", len(data), o.Name, o.Elems())
	}
	t := NewTensor(o)
	copy(t.Data, data)
	return t, nil
}

// At returns the element at a multi-dimensional index.
func (t *Tensor) At(idx ...int) (complex128, error) {
	flat, err := t.Otype.FlatIndex(idx)
	if err != nil {
		return 0, err
	}
	return t.Data[flat], nil
}

// Set assigns the element at a multi-dimensional index.
func (t *Tensor) Set(v complex128, idx ...int) error {
	flat, err := t.Otype.FlatIndex(idx)
	if err != nil {
		return err
	}
	t.Data[flat] = v
	return nil
}

// Norm2 returns the squared 2-norm of the tensor.
func (t *Tensor) Norm2() float64 {
	s := 0.0
	for _, v := range t.Data {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return s
}

// Sub returns t - u elementwise. The types must match.
func (t *Tensor) Sub(u *Tensor) (*Tensor, error) {
	if t.Otype.Name != u.Otype.Name {
		return nil, fmt.Errorf("otype: cannot subtract %s from %s", u.Otype.Name, t.Otype.Name)
	}
	out := NewTensor(t.Otype)
	for i := range t.Data {
		out.Data[i] = t.Data[i] - u.Data[i]
	}
	return out, nil
}

// CloseTo reports whether every element of t is within eps of u in absolute
// value. Types must match for a true result.
func (t *Tensor) CloseTo(u *Tensor, eps float64) bool {
	if t.Otype.Name != u.Otype.Name {
		return false
	}
	for i := range t.Data {
		if cmplx.Abs(t.Data[i]-u.Data[i]) > eps {
			return false
		}
	}
	return true
}

// IsFinite reports whether no element is NaN or infinite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.Data {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) ||
			math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("tensor(%s,%v)", t.Otype.Name, t.Data)
}
