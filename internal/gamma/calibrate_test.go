package gamma

import (
	"errors"
	"math"
	"testing"
)

// Nine-step measurement of a CRT/LCD-like display, single channel.
var (
	benchGunValues = []float64{0, 32, 64, 96, 128, 160, 192, 224, 255}
	benchLuminance = []float64{0.1, 0.5, 2, 6, 14, 28, 50, 80, 120}
)

func TestCalibrateBenchScenario(t *testing.T) {
	lum := make([][]float64, len(benchLuminance))
	for i, l := range benchLuminance {
		lum[i] = []float64{l}
	}

	res, err := Calibrate(benchGunValues, lum, RangeNormalize)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	// The least-squares exponent for this response lands near 3.1; assert
	// a plausible display band rather than an exact value.
	g := res.Gamma[0]
	if g < 2.0 || g > 3.5 {
		t.Errorf("Calibrate() gamma = %v, want within (2.0, 3.5)", g)
	}
	if res.LowAsymptote != nil {
		t.Errorf("LowAsymptote = %v, want nil for method 1", res.LowAsymptote)
	}

	mid := res.Table[128][0]
	if !(mid > res.Table[0][0] && mid < res.Table[255][0]) {
		t.Errorf("table[128] = %v, want strictly between %v and %v", mid, res.Table[0][0], res.Table[255][0])
	}
	for i := 0; i < TableSize-1; i++ {
		if res.Table[i][0] > res.Table[i+1][0] {
			t.Fatalf("table decreases at %d", i)
		}
	}
}

func TestCalibrateRGBRoundTrip(t *testing.T) {
	// Per-channel synthetic responses with known exponents and distinct
	// peak luminances. Range normalization strips the scale back out, so
	// the fit must recover each exponent exactly.
	gun := GunLevels(9)
	trueGamma := []float64{1.9, 2.2, 2.6}
	peak := []float64{80.0, 120.0, 45.0}

	lum := make([][]float64, len(gun))
	for i, g := range gun {
		row := make([]float64, 3)
		for c := range row {
			row[c] = peak[c] * math.Pow(g/MaxGunValue, trueGamma[c])
		}
		lum[i] = row
	}

	res, err := Calibrate(gun, lum, RangeNormalize)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	for c, want := range trueGamma {
		if math.Abs(res.Gamma[c]-want) > 1e-3 {
			t.Errorf("channel %d gamma = %v, want %v ± 1e-3", c, res.Gamma[c], want)
		}
	}
	for i := range res.Table {
		if len(res.Table[i]) != 3 {
			t.Fatalf("table row %d has %d columns, want 3", i, len(res.Table[i]))
		}
	}
}

func TestCalibrateOffsetMethodReportsAsymptote(t *testing.T) {
	gun := GunLevels(9)
	lum := make([][]float64, len(gun))
	for i, g := range gun {
		lum[i] = []float64{2 + 118*math.Pow(g/MaxGunValue, 2.1)}
	}

	res, err := Calibrate(gun, lum, MaxNormalizeOffset)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if len(res.LowAsymptote) != 1 {
		t.Fatalf("LowAsymptote length = %d, want 1", len(res.LowAsymptote))
	}

	// The asymptote conditions the fit but never shapes the table: the
	// table is a pure power law, so its endpoints stay exact.
	if res.Table[0][0] != 0 || res.Table[255][0] != 1 {
		t.Errorf("table endpoints = %v, %v, want 0, 1", res.Table[0][0], res.Table[255][0])
	}
}

func TestCalibrateMissingReadings(t *testing.T) {
	lum := make([][]float64, len(benchLuminance))
	for i, l := range benchLuminance {
		lum[i] = []float64{l}
	}
	lum[3][0] = Missing

	res, err := Calibrate(benchGunValues, lum, RangeNormalize)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if res.Gamma[0] <= 0 || math.IsNaN(res.Gamma[0]) {
		t.Errorf("gamma = %v, want finite positive", res.Gamma[0])
	}
}

func TestCalibrateErrors(t *testing.T) {
	tests := []struct {
		name    string
		gun     []float64
		lum     [][]float64
		method  Method
		wantErr error
	}{
		{
			"two channels",
			[]float64{0, 255},
			[][]float64{{1, 2}, {3, 4}},
			RangeNormalize,
			ErrInvalidInput,
		},
		{
			"four channels",
			[]float64{0, 255},
			[][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}},
			RangeNormalize,
			ErrInvalidInput,
		},
		{
			"row length mismatch",
			[]float64{0, 255},
			[][]float64{{1}, {2, 3, 4}},
			RangeNormalize,
			ErrInvalidInput,
		},
		{
			"gun/luminance mismatch",
			[]float64{0, 128, 255},
			[][]float64{{1}, {2}},
			RangeNormalize,
			ErrInvalidInput,
		},
		{
			"no samples",
			nil,
			nil,
			RangeNormalize,
			ErrInvalidInput,
		},
		{
			"flat channel",
			[]float64{0, 128, 255},
			[][]float64{{5}, {5}, {5}},
			RangeNormalize,
			ErrNumerical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Calibrate(tt.gun, tt.lum, tt.method); !errors.Is(err, tt.wantErr) {
				t.Errorf("Calibrate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGunLevels(t *testing.T) {
	tests := []struct {
		steps int
		want  []float64
	}{
		{2, []float64{0, 255}},
		{9, []float64{0, 32, 64, 96, 128, 159, 191, 223, 255}},
		{1, nil},
		{0, nil},
	}

	for _, tt := range tests {
		got := GunLevels(tt.steps)
		if len(got) != len(tt.want) {
			t.Errorf("GunLevels(%d) = %v, want %v", tt.steps, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("GunLevels(%d)[%d] = %v, want %v", tt.steps, i, got[i], tt.want[i])
			}
		}
	}
}
