package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sbl8/gridfield/grid"
)

// ComplexToBytes encodes complex values as interleaved little-endian reals at
// the given precision, two reals per element.
func ComplexToBytes(vals []complex128, prec grid.Precision) []byte {
	out := make([]byte, len(vals)*prec.ComplexBytes())
	for i, v := range vals {
		putReal(out[i*prec.ComplexBytes():], real(v), prec)
		putReal(out[i*prec.ComplexBytes()+prec.Width:], imag(v), prec)
	}
	return out
}

// BytesToComplex decodes interleaved little-endian reals back into complex
// values. The byte length must be a whole number of elements.
func BytesToComplex(b []byte, prec grid.Precision) ([]complex128, error) {
	eb := prec.ComplexBytes()
	if len(b)%eb != 0 {
		return nil, fmt.Errorf("storage: %d bytes is not a whole number of %d-byte complex elements", len(b), eb)
	}
	out := make([]complex128, len(b)/eb)
	for i := range out {
		re := getReal(b[i*eb:], prec)
		im := getReal(b[i*eb+prec.Width:], prec)
		out[i] = complex(re, im)
	}
	return out, nil
}

func putReal(b []byte, v float64, prec grid.Precision) {
	if prec.Width == 4 {
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		return
	}
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func getReal(b []byte, prec grid.Precision) float64 {
	if prec.Width == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// CopyCyclicUpscale returns value extended to needed bytes by repeating it
// cyclically. A value already at least as long as needed is returned
// unchanged. An empty value cannot be upscaled to a positive length.
func CopyCyclicUpscale(value []byte, needed int) ([]byte, error) {
	if len(value) >= needed {
		return value, nil
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("storage: cannot upscale empty value to %d bytes", needed)
	}
	out := make([]byte, needed)
	for i := range out {
		out[i] = value[i%len(value)]
	}
	return out, nil
}
