// Package gamma fits a power-law response model to photometer measurements
// of a display and generates the inverse lookup table that linearizes the
// display's output.
//
// The pipeline is a single synchronous pass per channel: raw (gun value,
// luminance) pairs are normalized onto [0,1], a one- or two-parameter
// power law is fitted by nonlinear least squares, and the fitted exponent
// is inverted over a fixed 256-point grid. Channels are fully independent;
// Calibrate processes them in index order but each channel is a pure
// function of its own samples.
package gamma

import "math"

// Method selects the normalization convention and fit model. The numeric
// values match the method codes recorded in calibration run files.
type Method int

const (
	// RangeNormalize scales gun values and luminance onto [0,1] by their
	// measured range and fits out = in^gamma. This is the default: it
	// isolates the shape of the response from its absolute floor.
	RangeNormalize Method = 1

	// MaxNormalize divides by the maximum reading and fits out = in^gamma.
	MaxNormalize Method = 2

	// MaxNormalizeOffset normalizes like MaxNormalize but fits the
	// two-parameter model out = lowAsymptote + in^gamma. The asymptote
	// only conditions the gamma estimate; table generation ignores it.
	MaxNormalizeOffset Method = 3
)

// DefaultMethod is used when a run does not specify one.
const DefaultMethod = RangeNormalize

// Valid reports whether m is one of the three supported methods.
func (m Method) Valid() bool {
	return m == RangeNormalize || m == MaxNormalize || m == MaxNormalizeOffset
}

func (m Method) String() string {
	switch m {
	case RangeNormalize:
		return "range-normalize"
	case MaxNormalize:
		return "max-normalize"
	case MaxNormalizeOffset:
		return "max-normalize-offset"
	default:
		return "unknown"
	}
}

// hasAsymptote reports whether the method's fit model carries the
// lower-asymptote parameter.
func (m Method) hasAsymptote() bool { return m == MaxNormalizeOffset }

// Missing is the in-band marker for a calibration step where the
// photometer produced no valid reading. Marked samples are removed, in
// pairs with their gun values, before any arithmetic.
var Missing = math.NaN()

// IsMissing reports whether a luminance value is the missing marker.
func IsMissing(lum float64) bool { return math.IsNaN(lum) }

// MaxGunValue is the largest digital intensity a display channel accepts.
const MaxGunValue = 255

// GunLevels returns `steps` evenly spaced gun values covering 0..255
// inclusive. The endpoints are always present so the fit sees the
// display's full range. Returns nil for steps < 2.
func GunLevels(steps int) []float64 {
	if steps < 2 {
		return nil
	}
	levels := make([]float64, steps)
	for i := range levels {
		levels[i] = math.Round(float64(i) * MaxGunValue / float64(steps-1))
	}
	return levels
}
