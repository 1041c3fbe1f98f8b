package field

import (
	"errors"
	"fmt"
)

// Evaluator is the external expression-evaluation contract. Evaluate
// mutates dst in place; accumulate selects accumulate-into versus overwrite
// semantics. The expression forms an evaluator accepts are its own
// business; this package only defines ScaleExpr for the scalar in-place
// operators.
type Evaluator interface {
	Evaluate(dst *Lattice, expr any, accumulate bool) error
}

// Negatable is implemented by expression values that can produce their own
// negation, which is how SubAssign is expressed through the accumulate path.
type Negatable interface {
	Negated() any
}

// ScaleExpr scales a lattice by a complex coefficient.
type ScaleExpr struct {
	Src  *Lattice
	Coef complex128
}

// Negated returns the expression with the coefficient sign flipped.
func (s ScaleExpr) Negated() any {
	return ScaleExpr{Src: s.Src, Coef: -s.Coef}
}

var evaluator Evaluator

// RegisterEvaluator installs the expression evaluator used by the in-place
// arithmetic operators. It should be called once during program
// initialization, before any operator is used.
func RegisterEvaluator(e Evaluator) {
	evaluator = e
}

func requireEvaluator() (Evaluator, error) {
	if evaluator == nil {
		return nil, errors.New("field: no expression evaluator registered")
	}
	return evaluator, nil
}

// Assign overwrites the lattice with the value of an expression.
func (l *Lattice) Assign(expr any) error {
	e, err := requireEvaluator()
	if err != nil {
		return err
	}
	return e.Evaluate(l, expr, false)
}

// AddAssign accumulates an expression into the lattice.
func (l *Lattice) AddAssign(expr any) error {
	e, err := requireEvaluator()
	if err != nil {
		return err
	}
	return e.Evaluate(l, expr, true)
}

// SubAssign accumulates the negation of an expression into the lattice.
func (l *Lattice) SubAssign(expr any) error {
	n, ok := expr.(Negatable)
	if !ok {
		return fmt.Errorf("field: expression %T cannot be negated", expr)
	}
	return l.AddAssign(n.Negated())
}

// MulAssign scales the lattice in place by a complex coefficient.
func (l *Lattice) MulAssign(coef complex128) error {
	e, err := requireEvaluator()
	if err != nil {
		return err
	}
	return e.Evaluate(l, ScaleExpr{Src: l, Coef: coef}, false)
}

// DivAssign scales the lattice in place by the reciprocal of a coefficient.
func (l *Lattice) DivAssign(coef complex128) error {
	if coef == 0 {
		return errors.New("field: division by zero")
	}
	return l.MulAssign(1 / coef)
}
