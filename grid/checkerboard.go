package grid

import "fmt"

// Checkerboard identifies which half of a parity-split grid a field stores.
// On grids with checkerboard arity 1 the only valid value is None.
type Checkerboard int

const (
	None Checkerboard = iota
	Even
	Odd
)

func (c Checkerboard) String() string {
	switch c {
	case None:
		return "none"
	case Even:
		return "even"
	case Odd:
		return "odd"
	}
	return "unknown"
}

// ParseCheckerboard maps the canonical names used in field descriptions back
// to checkerboard values.
func ParseCheckerboard(name string) (Checkerboard, error) {
	switch name {
	case "none":
		return None, nil
	case "even":
		return Even, nil
	case "odd":
		return Odd, nil
	}
	return None, fmt.Errorf("grid: unknown checkerboard %q", name)
}
