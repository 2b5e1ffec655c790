package correlation

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func TestNewMatrixValidation(t *testing.T) {
	tests := []struct {
		name    string
		tickers []string
		values  [][]float64
		wantErr string
	}{
		{
			name:    "valid 2x2",
			tickers: []string{"AAA", "BBB"},
			values:  [][]float64{{1, 0.5}, {0.5, 1}},
		},
		{
			name:    "empty tickers",
			tickers: nil,
			values:  nil,
			wantErr: "empty ticker list",
		},
		{
			name:    "row count mismatch",
			tickers: []string{"AAA", "BBB"},
			values:  [][]float64{{1, 0.5}},
			wantErr: "2 tickers",
		},
		{
			name:    "out of range entry",
			tickers: []string{"AAA", "BBB"},
			values:  [][]float64{{1, 1.5}, {1.5, 1}},
			wantErr: "outside [-1,1]",
		},
		{
			name:    "bad diagonal",
			tickers: []string{"AAA", "BBB"},
			values:  [][]float64{{0.9, 0.5}, {0.5, 1}},
			wantErr: "diagonal",
		},
		{
			name:    "asymmetric",
			tickers: []string{"AAA", "BBB"},
			values:  [][]float64{{1, 0.5}, {0.4, 1}},
			wantErr: "asymmetric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatrix(tt.tickers, tt.values)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, m)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFactorizeReconstructs(t *testing.T) {
	tickers := []string{"SPY", "TLT", "GLD"}
	m, err := NewMatrix(tickers, [][]float64{
		{1, 0.6, 0.2},
		{0.6, 1, -0.1},
		{0.2, -0.1, 1},
	})
	require.NoError(t, err)

	l, err := testEngine().Factorize(m)
	require.NoError(t, err)

	// L·Lᵗ must reconstruct the matrix within tolerance.
	var product mat.Dense
	product.Mul(l, l.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, m.At(i, j), product.At(i, j), 1e-8,
				"L·Lᵗ mismatch at (%d,%d)", i, j)
		}
	}
}

func TestFactorizeMemoizes(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.3}, {0.3, 1}})
	require.NoError(t, err)

	engine := testEngine()
	l1, err := engine.Factorize(m)
	require.NoError(t, err)
	l2, err := engine.Factorize(m)
	require.NoError(t, err)
	assert.Same(t, l1, l2, "second factorization should return the memoized factor")
}

func TestFactorizeRepairsNonPSD(t *testing.T) {
	// Three assets with pairwise correlations that cannot coexist: this
	// matrix has a negative eigenvalue.
	m, err := NewMatrix([]string{"A", "B", "C"}, [][]float64{
		{1, 0.9, -0.9},
		{0.9, 1, 0.9},
		{-0.9, 0.9, 1},
	})
	require.NoError(t, err)

	l, err := testEngine().Factorize(m)
	require.NoError(t, err, "repair should recover factorization")
	require.NotNil(t, l)
}

func TestRepairIdempotent(t *testing.T) {
	engine := testEngine()

	m, err := NewMatrix([]string{"A", "B", "C"}, [][]float64{
		{1, 0.9, -0.9},
		{0.9, 1, 0.9},
		{-0.9, 0.9, 1},
	})
	require.NoError(t, err)

	once := engine.Repair(m)
	twice := engine.Repair(once)

	n := once.Dim()
	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, once.At(i, i), 1e-12, "repaired diagonal must be 1")
		for j := 0; j < n; j++ {
			assert.InDelta(t, once.At(i, j), twice.At(i, j), 1e-8,
				"repair should be idempotent at (%d,%d)", i, j)
		}
	}

	// All eigenvalues of the repaired matrix are at or above the floor
	// (renormalization can nudge them, so allow tolerance).
	var eig mat.EigenSym
	require.True(t, eig.Factorize(once.sym, false))
	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, -1e-9, "repaired matrix should have no negative eigenvalues")
	}
}

func TestRepairValidMatrixIsNoOp(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.4}, {0.4, 1}})
	require.NoError(t, err)

	repaired := testEngine().Repair(m)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, m.At(i, j), repaired.At(i, j), 1e-9)
		}
	}
}

func TestStressZeroIsIdentityTransform(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.5}, {0.5, 1}})
	require.NoError(t, err)

	stressed, err := testEngine().Stress(m, 0)
	require.NoError(t, err)
	assert.Equal(t, m.At(0, 1), stressed.At(0, 1))
}

func TestStressMovesTowardOne(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B", "C"}, [][]float64{
		{1, 0.2, -0.4},
		{0.2, 1, 0.1},
		{-0.4, 0.1, 1},
	})
	require.NoError(t, err)

	engine := testEngine()
	prev := m
	prevAvg := m.AverageOffDiagonal()
	for _, f := range []float64{0.1, 0.3, 0.6, 0.9} {
		stressed, err := engine.Stress(m, f)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			assert.Equal(t, 1.0, stressed.At(i, i), "diagonal untouched")
			for j := i + 1; j < 3; j++ {
				assert.Greater(t, stressed.At(i, j), prev.At(i, j),
					"off-diagonal must strictly increase with intensity")
				assert.LessOrEqual(t, stressed.At(i, j), 1.0)
			}
		}
		assert.Greater(t, stressed.AverageOffDiagonal(), prevAvg)
		prev = stressed
		prevAvg = stressed.AverageOffDiagonal()
	}
}

func TestStressRejectsInvalidIntensity(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.5}, {0.5, 1}})
	require.NoError(t, err)

	engine := testEngine()
	_, err = engine.Stress(m, 1.0)
	assert.Error(t, err)
	_, err = engine.Stress(m, -0.1)
	assert.Error(t, err)
}

func TestApplyMultiplierClamps(t *testing.T) {
	m, err := NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.8}, {0.8, 1}})
	require.NoError(t, err)

	shocked, err := testEngine().ApplyMultiplier(m, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, shocked.At(0, 1), 1e-12, "product 1.2 clamps to 0.99")
	assert.Equal(t, 1.0, shocked.At(0, 0))
}

func TestEstimatePerfectCorrelation(t *testing.T) {
	engine := testEngine()
	returns := map[string][]float64{
		"A": {0.01, -0.02, 0.03, 0.005, -0.01},
		"B": {0.02, -0.04, 0.06, 0.01, -0.02}, // exactly 2x A
	}

	m, err := engine.Estimate([]string{"A", "B"}, returns, MethodPearson)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.At(0, 1), 1e-9)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 1.0, m.At(1, 1))
}

func TestEstimateSpearmanMonotone(t *testing.T) {
	engine := testEngine()
	// B is a monotone (nonlinear) transform of A: rank correlation is 1.
	a := []float64{0.01, -0.02, 0.03, 0.005, -0.01, 0.02}
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = math.Exp(5 * v)
	}

	m, err := engine.Estimate([]string{"A", "B"}, map[string][]float64{"A": a, "B": b}, MethodSpearman)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.At(0, 1), 1e-9)
}

func TestEstimateErrors(t *testing.T) {
	engine := testEngine()

	_, err := engine.Estimate([]string{"A", "B"}, map[string][]float64{
		"A": {0.01, 0.02},
	}, MethodPearson)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing return series for B")

	_, err = engine.Estimate([]string{"A", "B"}, map[string][]float64{
		"A": {0.01, 0.02, 0.03},
		"B": {0.01, 0.02},
	}, MethodPearson)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observations")

	// Zero-variance series must be rejected, not produce NaN.
	_, err = engine.Estimate([]string{"A", "B"}, map[string][]float64{
		"A": {0.01, 0.01, 0.01},
		"B": {0.01, 0.02, 0.03},
	}, MethodPearson)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate")
}
