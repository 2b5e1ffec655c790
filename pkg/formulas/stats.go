// Package formulas provides statistical and financial calculations shared
// across the simulation and optimization modules.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the day-count convention used for annualization.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the population standard deviation of a slice of float64 values.
// Population (not sample) variance matches the convention used by the
// simulation statistics, where the full path distribution is observed.
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := stat.Mean(data, nil)
	var ss float64
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(data)))
}

// SampleStdDev calculates the sample (n-1) standard deviation.
func SampleStdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Median calculates the median of a slice of float64 values.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// Percentile calculates the p-th percentile (0-100) using linear
// interpolation between closest ranks, matching numpy's default behavior.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Skewness calculates the skewness of a distribution from centered,
// standardized samples. Returns 0 for degenerate (zero variance) input.
func Skewness(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := Mean(data)
	std := StdDev(data)
	if std == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		z := (v - mean) / std
		sum += z * z * z
	}
	return sum / float64(len(data))
}

// ExcessKurtosis calculates the excess kurtosis (kurtosis - 3) of a
// distribution. Returns 0 for degenerate (zero variance) input.
func ExcessKurtosis(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := Mean(data)
	std := StdDev(data)
	if std == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		z := (v - mean) / std
		sum += z * z * z * z
	}
	return sum/float64(len(data)) - 3
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// AnnualizedReturn annualizes a mean daily return.
func AnnualizedReturn(meanDailyReturn float64) float64 {
	return meanDailyReturn * TradingDaysPerYear
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return SampleStdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}
