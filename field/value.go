package field

import (
	"fmt"

	"github.com/sbl8/gridfield/otype"
)

// normalizeValue converts the supported host value forms into a flat complex
// slice. A nil value yields an empty slice, which only satisfies an empty
// subset.
func normalizeValue(value any) ([]complex128, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		return []complex128{complex(float64(v), 0)}, nil
	case float64:
		return []complex128{complex(v, 0)}, nil
	case complex64:
		return []complex128{complex128(v)}, nil
	case complex128:
		return []complex128{v}, nil
	case []float64:
		out := make([]complex128, len(v))
		for i, f := range v {
			out[i] = complex(f, 0)
		}
		return out, nil
	case []complex128:
		return v, nil
	case *otype.Tensor:
		return v.Data, nil
	case []*otype.Tensor:
		var out []complex128
		for _, t := range v {
			out = append(out, t.Data...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("field: unsupported value type %T", value)
}
