package formulas

import (
	"github.com/markcheno/go-talib"
)

// RollingBand holds a moving average with symmetric deviation bands around it.
// Used by the ingestion validators to flag prices that escape their recent
// trading range.
type RollingBand struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateRollingBand computes a rolling SMA band of the given period with
// the given standard-deviation multiplier. Entries before the first full
// window are NaN, matching talib's warm-up behavior. Returns nil when there
// is not enough data for a single window.
func CalculateRollingBand(values []float64, period int, devMultiplier float64) *RollingBand {
	if len(values) < period || period < 2 {
		return nil
	}

	// MAType 0 = SMA
	upper, middle, lower := talib.BBands(values, period, devMultiplier, devMultiplier, 0)

	return &RollingBand{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
	}
}

// OutsideBand returns the indices of values falling outside the band.
// Warm-up entries (NaN band values) are never flagged.
func (b *RollingBand) OutsideBand(values []float64) []int {
	var outliers []int
	for i, v := range values {
		if i >= len(b.Upper) || i >= len(b.Lower) {
			break
		}
		if isNaN(b.Upper[i]) || isNaN(b.Lower[i]) {
			continue
		}
		if v > b.Upper[i] || v < b.Lower[i] {
			outliers = append(outliers, i)
		}
	}
	return outliers
}

func isNaN(f float64) bool {
	return f != f
}
