package storage

import (
	"bytes"
	"math"
	"testing"

	"github.com/sbl8/gridfield/grid"
)

func TestComplexCodecRoundTrip(t *testing.T) {
	t.Parallel()
	vals := []complex128{0, 1, -1, 2.5 - 0.25i, complex(math.Pi, -math.E)}

	for _, prec := range []grid.Precision{grid.Single, grid.Double} {
		raw := ComplexToBytes(vals, prec)
		if len(raw) != len(vals)*prec.ComplexBytes() {
			t.Fatalf("%s: encoded %d bytes, want %d", prec, len(raw), len(vals)*prec.ComplexBytes())
		}
		got, err := BytesToComplex(raw, prec)
		if err != nil {
			t.Fatal(err)
		}
		for i := range vals {
			if d := got[i] - vals[i]; math.Abs(real(d)) > prec.Eps*4 || math.Abs(imag(d)) > prec.Eps*4 {
				t.Errorf("%s: element %d = %v, want %v", prec, i, got[i], vals[i])
			}
		}
	}
}

func TestBytesToComplexPartialElement(t *testing.T) {
	t.Parallel()
	if _, err := BytesToComplex(make([]byte, 7), grid.Double); err == nil {
		t.Error("expected error for partial element")
	}
}

func TestCopyCyclicUpscale(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		value   []byte
		needed  int
		want    []byte
		wantErr bool
	}{
		{
			name:   "already long enough",
			value:  []byte{1, 2, 3, 4},
			needed: 4,
			want:   []byte{1, 2, 3, 4},
		},
		{
			name:   "longer than needed passes through",
			value:  []byte{1, 2, 3, 4},
			needed: 2,
			want:   []byte{1, 2, 3, 4},
		},
		{
			name:   "cyclic repeat",
			value:  []byte{1, 2, 3},
			needed: 7,
			want:   []byte{1, 2, 3, 1, 2, 3, 1},
		},
		{
			name:    "empty value",
			value:   nil,
			needed:  4,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CopyCyclicUpscale(tt.value, tt.needed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkComplexToBytesDouble(b *testing.B) {
	vals := make([]complex128, 1024)
	for i := range vals {
		vals[i] = complex(float64(i), -float64(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComplexToBytes(vals, grid.Double)
	}
}

func BenchmarkBytesToComplexDouble(b *testing.B) {
	raw := ComplexToBytes(make([]complex128, 1024), grid.Double)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BytesToComplex(raw, grid.Double); err != nil {
			b.Fatal(err)
		}
	}
}
