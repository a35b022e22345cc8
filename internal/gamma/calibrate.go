package gamma

import "fmt"

// Result is the output of one calibration run. Table is TableSize rows by
// C columns; Gamma has one fitted exponent per channel. LowAsymptote is
// populated only for MaxNormalizeOffset runs, and then only as a
// diagnostic.
type Result struct {
	Method       Method
	Table        [][]float64
	Gamma        []float64
	LowAsymptote []float64
}

// CalibrateChannel runs the full pipeline for a single channel: paired
// missing-sample removal and normalization, the nonlinear fit, and
// inverse table generation. It is a pure function of its arguments, so
// channels may be processed in any order or concurrently.
func CalibrateChannel(gun, lum []float64, method Method) (FitResult, []float64, error) {
	in, out, err := Normalize(gun, lum, method)
	if err != nil {
		return FitResult{}, nil, err
	}
	fit, err := Fit(in, out, method)
	if err != nil {
		return FitResult{}, nil, err
	}
	table, err := BuildTable(fit.Gamma)
	if err != nil {
		return FitResult{}, nil, err
	}
	return fit, table, nil
}

// Calibrate fits every channel of a calibration run. gun holds the S gun
// values shared across channels; lum is an S by C matrix of luminance
// readings (C is 1 for grayscale or 3 for RGB) with Missing marking steps
// that produced no valid reading.
//
// Channels are independent: no cross-channel consistency is enforced, and
// a failure in one channel aborts the run without partial results. They
// are processed sequentially in index order.
func Calibrate(gun []float64, lum [][]float64, method Method) (*Result, error) {
	if len(lum) != len(gun) {
		return nil, fmt.Errorf("%w: %d gun values but %d luminance rows", ErrInvalidInput, len(gun), len(lum))
	}
	if len(lum) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}

	channels := len(lum[0])
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("%w: luminance matrix has %d channels, want 1 or 3", ErrInvalidInput, channels)
	}
	for i, row := range lum {
		if len(row) != channels {
			return nil, fmt.Errorf("%w: luminance row %d has %d channels, want %d", ErrInvalidInput, i, len(row), channels)
		}
	}

	res := &Result{
		Method: method,
		Table:  make([][]float64, TableSize),
		Gamma:  make([]float64, channels),
	}
	for i := range res.Table {
		res.Table[i] = make([]float64, channels)
	}
	if method.hasAsymptote() {
		res.LowAsymptote = make([]float64, channels)
	}

	col := make([]float64, len(lum))
	for c := 0; c < channels; c++ {
		for i, row := range lum {
			col[i] = row[c]
		}

		fit, table, err := CalibrateChannel(gun, col, method)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}

		res.Gamma[c] = fit.Gamma
		if fit.HasAsymptote {
			res.LowAsymptote[c] = fit.LowAsymptote
		}
		for i, v := range table {
			res.Table[i][c] = v
		}
	}

	return res, nil
}
