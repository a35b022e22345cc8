package gamma

import "errors"

// The three failure classes are fatal to a single channel's fit. There is
// no fallback to a default gamma: a silently substituted exponent would
// corrupt downstream display correction without any visible symptom.
var (
	// ErrInvalidInput marks malformed input: a channel count other than 1
	// or 3, mismatched vector lengths, or too few valid samples to fit.
	ErrInvalidInput = errors.New("invalid calibration input")

	// ErrNumerical marks a degenerate normalization denominator, i.e. a
	// channel whose luminance readings are all equal.
	ErrNumerical = errors.New("degenerate luminance range")

	// ErrFitConvergence marks a nonlinear solve that did not converge
	// within its iteration budget.
	ErrFitConvergence = errors.New("gamma fit did not converge")
)
