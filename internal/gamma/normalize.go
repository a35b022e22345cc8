package gamma

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Normalize rescales one channel's raw gun values and luminance readings
// onto a common [0,1] domain and drops samples whose luminance is marked
// missing. Removal is paired: the gun value at a missing position is
// dropped too, so index alignment between the returned slices is
// preserved.
//
// RangeNormalize maps each vector by (v - min) / (max - min);
// MaxNormalize and MaxNormalizeOffset divide each vector by its maximum.
// A zero denominator (all valid readings equal, or all-zero under max
// normalization) returns ErrNumerical rather than a vector of Infs.
func Normalize(gun, lum []float64, method Method) (in, out []float64, err error) {
	if !method.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown method %d", ErrInvalidInput, method)
	}
	if len(gun) != len(lum) {
		return nil, nil, fmt.Errorf("%w: %d gun values but %d luminance readings", ErrInvalidInput, len(gun), len(lum))
	}

	// Paired filter before any arithmetic so the solver never sees NaN.
	in = make([]float64, 0, len(gun))
	out = make([]float64, 0, len(lum))
	for i := range lum {
		if IsMissing(lum[i]) {
			continue
		}
		in = append(in, gun[i])
		out = append(out, lum[i])
	}

	// The narrowest model has one parameter; two points is the floor for a
	// residual to minimize.
	if len(out) < 2 {
		return nil, nil, fmt.Errorf("%w: only %d valid samples after filtering", ErrInvalidInput, len(out))
	}

	switch method {
	case RangeNormalize:
		if err := rangeScale(in); err != nil {
			return nil, nil, fmt.Errorf("gun values: %w", err)
		}
		if err := rangeScale(out); err != nil {
			return nil, nil, fmt.Errorf("luminance: %w", err)
		}
	case MaxNormalize, MaxNormalizeOffset:
		if err := maxScale(in); err != nil {
			return nil, nil, fmt.Errorf("gun values: %w", err)
		}
		if err := maxScale(out); err != nil {
			return nil, nil, fmt.Errorf("luminance: %w", err)
		}
	}

	return in, out, nil
}

// rangeScale maps v onto [0,1] by its own min/max, in place.
func rangeScale(v []float64) error {
	lo := floats.Min(v)
	hi := floats.Max(v)
	if hi == lo {
		return fmt.Errorf("%w: all values equal %g", ErrNumerical, lo)
	}
	for i := range v {
		v[i] = (v[i] - lo) / (hi - lo)
	}
	return nil
}

// maxScale divides v by its maximum, in place.
func maxScale(v []float64) error {
	hi := floats.Max(v)
	if hi == 0 {
		return fmt.Errorf("%w: maximum value is zero", ErrNumerical)
	}
	for i := range v {
		v[i] /= hi
	}
	return nil
}
