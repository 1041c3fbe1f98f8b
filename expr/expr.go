// Package expr provides a linear-combination expression evaluator satisfying
// the field evaluator contract.
//
// An Expr is a sum of coefficient-scaled lattices. Evaluation mutates the
// target in place, either overwriting it or accumulating into it. This is
// deliberately the minimal evaluator the in-place operators need; richer
// algebra (products, traces, adjoints) belongs to an external engine and is
// out of scope here.
package expr

import (
	"fmt"

	"github.com/sbl8/gridfield/field"
	"github.com/sbl8/gridfield/storage"
)

// Term is one coefficient-scaled lattice.
type Term struct {
	Coef complex128
	Src  *field.Lattice
}

// Expr is a linear combination of lattices.
type Expr struct {
	Terms []Term
}

// Lat lifts a lattice into an expression with unit coefficient.
func Lat(l *field.Lattice) Expr {
	return Expr{Terms: []Term{{Coef: 1, Src: l}}}
}

// Scale multiplies every term of an expression by a coefficient.
func Scale(c complex128, e Expr) Expr {
	out := Expr{Terms: make([]Term, len(e.Terms))}
	for i, t := range e.Terms {
		out.Terms[i] = Term{Coef: c * t.Coef, Src: t.Src}
	}
	return out
}

// Add concatenates two expressions.
func Add(a, b Expr) Expr {
	return Expr{Terms: append(append([]Term(nil), a.Terms...), b.Terms...)}
}

// Sub appends the negation of b to a.
func Sub(a, b Expr) Expr {
	return Add(a, Scale(-1, b))
}

// Negated implements field.Negatable.
func (e Expr) Negated() any {
	return Scale(-1, e)
}

// Evaluator evaluates linear-combination expressions in place.
type Evaluator struct{}

// Evaluate computes dst = expr (overwrite) or dst += expr (accumulate).
// Every term must share dst's grid, object type, and checkerboard. The
// target may itself appear as a term.
func (Evaluator) Evaluate(dst *field.Lattice, expression any, accumulate bool) error {
	e, err := toExpr(expression)
	if err != nil {
		return err
	}
	for _, t := range e.Terms {
		if t.Src.Grid() != dst.Grid() {
			return fmt.Errorf("expr: term grid differs from target grid")
		}
		if t.Src.Otype().Name != dst.Otype().Name {
			return fmt.Errorf("expr: term type %s differs from target type %s", t.Src.Otype().Name, dst.Otype().Name)
		}
		tcb, err := t.Src.Checkerboard()
		if err != nil {
			return err
		}
		dcb, err := dst.Checkerboard()
		if err != nil {
			return err
		}
		if tcb != dcb {
			return fmt.Errorf("expr: term checkerboard %s differs from target %s", tcb, dcb)
		}
	}

	prec := dst.Grid().Precision()
	for sub := 0; sub < dst.SubObjects(); sub++ {
		dm, err := dst.Memory(sub)
		if err != nil {
			return err
		}
		acc, err := storage.BytesToComplex(dm, prec)
		if err != nil {
			return err
		}
		if !accumulate {
			for i := range acc {
				acc[i] = 0
			}
		}
		for _, t := range e.Terms {
			sm, err := t.Src.Memory(sub)
			if err != nil {
				return err
			}
			sv, err := storage.BytesToComplex(sm, prec)
			if err != nil {
				return err
			}
			if len(sv) != len(acc) {
				return fmt.Errorf("expr: sub-object %d size mismatch", sub)
			}
			for i := range acc {
				acc[i] += t.Coef * sv[i]
			}
		}
		copy(dm, storage.ComplexToBytes(acc, prec))
	}
	return nil
}

// toExpr normalizes the accepted expression forms. The target of a
// field.ScaleExpr decodes before the overwrite, so self-scaling works.
func toExpr(expression any) (Expr, error) {
	switch x := expression.(type) {
	case Expr:
		return x, nil
	case field.ScaleExpr:
		return Expr{Terms: []Term{{Coef: x.Coef, Src: x.Src}}}, nil
	case *field.Lattice:
		return Lat(x), nil
	}
	return Expr{}, fmt.Errorf("expr: unsupported expression type %T", expression)
}
