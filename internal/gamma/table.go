package gamma

import (
	"fmt"
	"math"
)

// TableSize is the number of rows in an inverse lookup table: one per
// 8-bit output level.
const TableSize = 256

// BuildTable generates the inverse lookup table column for one channel.
// Row i corresponds to desired normalized output luminance i/255 and
// holds the normalized gun intensity (i/255)^(1/gamma) needed to produce
// it.
//
// The table always assumes a pure power law over the whole [0,1] range.
// In particular the lower asymptote from a MaxNormalizeOffset fit is
// deliberately ignored here: the asymptote exists only to sharpen the
// gamma estimate during fitting, because the goal is to linearize
// variation across the range, not to reproduce the absolute luminance
// floor.
//
// The result is monotonically non-decreasing with table[0] == 0 and
// table[255] == 1 for any positive finite gamma. A non-positive or
// non-finite exponent would produce an unbounded or non-monotonic table,
// so it is rejected with ErrNumerical instead.
func BuildTable(gammaExp float64) ([]float64, error) {
	if math.IsNaN(gammaExp) || math.IsInf(gammaExp, 0) || gammaExp <= 0 {
		return nil, fmt.Errorf("%w: cannot invert exponent %g", ErrNumerical, gammaExp)
	}

	inv := 1 / gammaExp
	table := make([]float64, TableSize)
	for i := range table {
		table[i] = math.Pow(float64(i)/(TableSize-1), inv)
	}
	return table, nil
}
