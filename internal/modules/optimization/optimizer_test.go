package optimization

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stresslab/internal/modules/correlation"
)

func threeAssetRequest(t *testing.T, objective Objective) Request {
	t.Helper()
	corr, err := correlation.NewMatrix([]string{"SPY", "TLT", "GLD"}, [][]float64{
		{1, -0.3, 0.1},
		{-0.3, 1, 0.2},
		{0.1, 0.2, 1},
	})
	require.NoError(t, err)

	return Request{
		Tickers:         []string{"SPY", "TLT", "GLD"},
		ExpectedReturns: []float64{0.08, 0.03, 0.05},
		Volatilities:    []float64{0.18, 0.08, 0.15},
		Correlation:     corr,
		Objective:       objective,
	}
}

func checkWeights(t *testing.T, weights map[string]float64, tickers []string) {
	t.Helper()
	sum := 0.0
	for _, ticker := range tickers {
		w, ok := weights[ticker]
		require.True(t, ok, "missing weight for %s", ticker)
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "weights must sum to 1")
}

func TestOptimizeMaxSharpe(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	req := threeAssetRequest(t, ObjectiveMaxSharpe)

	result, err := opt.Optimize(req)
	require.NoError(t, err)
	require.True(t, result.Success, "solver message: %s", result.Message)

	checkWeights(t, result.Weights, req.Tickers)
	assert.Greater(t, result.SharpeRatio, 0.0)
	assert.Greater(t, result.Volatility, 0.0)
	assert.Less(t, result.ExpectedShortfall, result.ExpectedReturn)
	assert.InDelta(t, result.ExpectedReturn-2.06*result.Volatility, result.ExpectedShortfall, 1e-12)
}

func TestOptimizeMinVolatility(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	req := threeAssetRequest(t, ObjectiveMinVolatility)

	result, err := opt.Optimize(req)
	require.NoError(t, err)
	require.True(t, result.Success)
	checkWeights(t, result.Weights, req.Tickers)

	// Portfolio volatility must not exceed the equal-weight portfolio's.
	equal := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	sigma := buildCovariance(req.Volatilities, req.Correlation)
	equalVol := math.Sqrt(quadraticForm(equal, sigma))
	assert.LessOrEqual(t, result.Volatility, equalVol+1e-6)
}

func TestOptimizeMinVolatilityFavorsLowVolAsset(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())
	req := threeAssetRequest(t, ObjectiveMinVolatility)

	result, err := opt.Optimize(req)
	require.NoError(t, err)
	require.True(t, result.Success)

	// TLT has less than half the volatility of the others and negative
	// correlation with SPY: it must dominate the minimum-variance portfolio.
	assert.Greater(t, result.Weights["TLT"], result.Weights["SPY"])
	assert.Greater(t, result.Weights["TLT"], result.Weights["GLD"])
}

func TestOptimizeMaxSharpeSingleBestAsset(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	// One asset strictly dominates: same vol everywhere, higher return.
	corr, err := correlation.NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.99}, {0.99, 1}})
	require.NoError(t, err)

	result, err := opt.Optimize(Request{
		Tickers:         []string{"A", "B"},
		ExpectedReturns: []float64{0.12, 0.02},
		Volatilities:    []float64{0.20, 0.20},
		Correlation:     corr,
		Objective:       ObjectiveMaxSharpe,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Greater(t, result.Weights["A"], 0.85, "dominant asset should take nearly all weight")
}

func TestOptimizeShockAgnostic(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	// Pre-shocked inputs (negative drift on SPY) are just inputs.
	req := threeAssetRequest(t, ObjectiveMaxSharpe)
	req.ExpectedReturns = []float64{-0.12, 0.03, 0.05}

	result, err := opt.Optimize(req)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Less(t, result.Weights["SPY"], 0.10, "shocked asset should be avoided")
}

func TestOptimizeNilCorrelationMeansIndependence(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	result, err := opt.Optimize(Request{
		Tickers:         []string{"A", "B"},
		ExpectedReturns: []float64{0.05, 0.05},
		Volatilities:    []float64{0.20, 0.20},
		Objective:       ObjectiveMinVolatility,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	// Identical independent assets split evenly.
	assert.InDelta(t, 0.5, result.Weights["A"], 0.05)
	assert.InDelta(t, 0.5, result.Weights["B"], 0.05)
}

func TestOptimizeValidation(t *testing.T) {
	opt := NewOptimizer(zerolog.Nop())

	_, err := opt.Optimize(Request{Objective: ObjectiveMaxSharpe})
	assert.Error(t, err)

	_, err = opt.Optimize(Request{
		Tickers:         []string{"A"},
		ExpectedReturns: []float64{0.05},
		Volatilities:    []float64{0.2},
		Objective:       "efficient_frontier",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown objective")

	_, err = opt.Optimize(Request{
		Tickers:         []string{"A", "B"},
		ExpectedReturns: []float64{0.05},
		Volatilities:    []float64{0.2, 0.2},
		Objective:       ObjectiveMaxSharpe,
	})
	assert.Error(t, err)

	_, err = opt.Optimize(Request{
		Tickers:         []string{"A"},
		ExpectedReturns: []float64{0.05},
		Volatilities:    []float64{-0.2},
		Objective:       ObjectiveMaxSharpe,
	})
	assert.Error(t, err)
}
