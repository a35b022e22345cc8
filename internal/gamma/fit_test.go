package gamma

import (
	"errors"
	"math"
	"testing"
)

// grid returns n evenly spaced values spanning [0,1].
func grid(n int) []float64 {
	g := make([]float64, n)
	for i := range g {
		g[i] = float64(i) / float64(n-1)
	}
	return g
}

func powerCurve(in []float64, gammaExp, asymptote float64) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = asymptote + math.Pow(x, gammaExp)
	}
	return out
}

func TestFitRecoversKnownGamma(t *testing.T) {
	tests := []struct {
		name   string
		gamma  float64
		method Method
	}{
		{"linear response", 1.0, RangeNormalize},
		{"lcd-like", 1.8, RangeNormalize},
		{"crt-like", 2.2, RangeNormalize},
		{"steep", 3.0, RangeNormalize},
		{"crt-like max-normalized", 2.2, MaxNormalize},
		{"shallow max-normalized", 1.4, MaxNormalize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := grid(9)
			out := powerCurve(in, tt.gamma, 0)

			fit, err := Fit(in, out, tt.method)
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if math.Abs(fit.Gamma-tt.gamma) > 1e-3 {
				t.Errorf("Fit() gamma = %v, want %v ± 1e-3", fit.Gamma, tt.gamma)
			}
			if fit.HasAsymptote {
				t.Error("one-parameter fit reported an asymptote")
			}
		})
	}
}

func TestFitTwoParameterModel(t *testing.T) {
	tests := []struct {
		name      string
		gamma     float64
		asymptote float64
	}{
		{"small floor", 1.8, 0.05},
		{"near-zero floor", 2.2, 0.005},
		{"shallow with floor", 1.2, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := grid(9)
			out := powerCurve(in, tt.gamma, tt.asymptote)

			fit, err := Fit(in, out, MaxNormalizeOffset)
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if !fit.HasAsymptote {
				t.Fatal("two-parameter fit did not report an asymptote")
			}
			if math.Abs(fit.Gamma-tt.gamma) > 1e-3 {
				t.Errorf("Fit() gamma = %v, want %v ± 1e-3", fit.Gamma, tt.gamma)
			}
			if math.Abs(fit.LowAsymptote-tt.asymptote) > 1e-3 {
				t.Errorf("Fit() asymptote = %v, want %v ± 1e-3", fit.LowAsymptote, tt.asymptote)
			}
		})
	}
}

func TestFitIterationBudgetExhausted(t *testing.T) {
	// A one-iteration budget cannot satisfy the converger, so the solver
	// stops on its iteration limit. The initial guess must not come back
	// as a result.
	defer func(n int) { MaxFitIterations = n }(MaxFitIterations)
	MaxFitIterations = 1

	tests := []struct {
		name   string
		method Method
	}{
		{"one-parameter model", MaxNormalize},
		{"two-parameter model", MaxNormalizeOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := grid(9)
			out := powerCurve(in, 2.2, 0)

			fit, err := Fit(in, out, tt.method)
			if !errors.Is(err, ErrFitConvergence) {
				t.Fatalf("Fit() error = %v, want ErrFitConvergence", err)
			}
			if fit != (FitResult{}) {
				t.Errorf("Fit() = %+v, want zero result when the solve does not converge", fit)
			}
		})
	}
}

func TestFitGammaIsPositiveForMonotonicData(t *testing.T) {
	// Any monotonically increasing response should produce a positive,
	// finite exponent.
	in := grid(9)
	out := []float64{0, 0.01, 0.05, 0.1, 0.2, 0.35, 0.55, 0.75, 1}

	fit, err := Fit(in, out, RangeNormalize)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if fit.Gamma <= 0 || math.IsInf(fit.Gamma, 0) || math.IsNaN(fit.Gamma) {
		t.Errorf("Fit() gamma = %v, want finite positive", fit.Gamma)
	}
}

func TestFitInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		out  []float64
	}{
		{"mismatched lengths", []float64{0, 0.5, 1}, []float64{0, 1}},
		{"single sample", []float64{1}, []float64{1}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(tt.in, tt.out, RangeNormalize); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Fit() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
