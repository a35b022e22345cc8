package gamma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// MaxFitIterations is the iteration budget for the nonlinear solve. The
// sample sets are tiny (typically 9 points), so a fit that is still
// moving after this many simplex iterations is not going to converge.
var MaxFitIterations = 200

// Initial parameter guesses. A display gamma near 2 is a reasonable prior
// for the one-parameter model; the two-parameter model starts at a flat
// exponent with a small positive floor.
const (
	initGamma       = 2.0
	initOffsetGamma = 1.0
	initAsymptote   = 0.01
)

// FitResult holds the fitted parameters for one channel. Gamma is fixed
// once computed; it is not revised after the inverse table is generated.
// LowAsymptote is reported for diagnostics only and is valid when
// HasAsymptote is set (MaxNormalizeOffset fits).
type FitResult struct {
	Gamma        float64
	LowAsymptote float64
	HasAsymptote bool
}

// Fit estimates the power-law parameters for one channel's normalized
// (input, output) pairs by nonlinear least squares.
//
// RangeNormalize and MaxNormalize fit out = in^gamma; MaxNormalizeOffset
// fits out = lowAsymptote + in^gamma. The solve is a bounded Nelder-Mead
// minimization of the sum of squared residuals. A solve that exhausts its
// iteration budget returns ErrFitConvergence; the initial guess is never
// returned as if it had converged.
//
// Plausibility of the fitted exponent beyond being finite is not
// validated here; callers inspect the returned gamma's sign and
// magnitude.
func Fit(in, out []float64, method Method) (FitResult, error) {
	if !method.Valid() {
		return FitResult{}, fmt.Errorf("%w: unknown method %d", ErrInvalidInput, method)
	}
	if len(in) != len(out) || len(in) < 2 {
		return FitResult{}, fmt.Errorf("%w: %d/%d normalized samples", ErrInvalidInput, len(in), len(out))
	}

	var problem optimize.Problem
	var x0 []float64
	if method.hasAsymptote() {
		x0 = []float64{initAsymptote, initOffsetGamma}
		problem = optimize.Problem{Func: func(p []float64) float64 {
			return residualSS(in, out, p[1], p[0])
		}}
	} else {
		x0 = []float64{initGamma}
		problem = optimize.Problem{Func: func(p []float64) float64 {
			return residualSS(in, out, p[0], 0)
		}}
	}

	settings := &optimize.Settings{
		MajorIterations: MaxFitIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return FitResult{}, fmt.Errorf("%w: %v", ErrFitConvergence, err)
	}
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit, optimize.Failure, optimize.NotTerminated:
		return FitResult{}, fmt.Errorf("%w: solver stopped (%v) after %d iterations",
			ErrFitConvergence, result.Status, result.Stats.MajorIterations)
	}

	fit := FitResult{HasAsymptote: method.hasAsymptote()}
	if method.hasAsymptote() {
		fit.LowAsymptote = result.X[0]
		fit.Gamma = result.X[1]
	} else {
		fit.Gamma = result.X[0]
	}
	if math.IsNaN(fit.Gamma) || math.IsInf(fit.Gamma, 0) {
		return FitResult{}, fmt.Errorf("%w: solver produced non-finite exponent", ErrFitConvergence)
	}
	return fit, nil
}

// residualSS is the sum of squared residuals of the model
// predicted = asymptote + in^gamma against the observed outputs.
func residualSS(in, out []float64, gamma, asymptote float64) float64 {
	ss := 0.0
	for i := range in {
		r := asymptote + math.Pow(in[i], gamma) - out[i]
		ss += r * r
	}
	return ss
}
