package grid

// Precision describes the floating-point width used for a grid's field
// storage. All field elements are complex, stored as two reals of Width
// bytes each.
type Precision struct {
	Name  string
	Width int     // bytes per real component
	Eps   float64 // machine epsilon at this width
}

// The two supported precisions.
var (
	Single = Precision{Name: "single", Width: 4, Eps: 1.19209290e-07}
	Double = Precision{Name: "double", Width: 8, Eps: 2.220446049250313e-16}
)

// ComplexBytes returns the storage size of one complex element.
func (p Precision) ComplexBytes() int {
	return 2 * p.Width
}

func (p Precision) String() string {
	return p.Name
}
