// Package correlation provides correlation matrix estimation, validation,
// repair and stress transformation for multi-asset simulation.
package correlation

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Matrix wraps a correlation matrix together with its canonical ticker order
// and a memoized Cholesky factor. The wrapper is immutable: transformations
// (stress, multiplier shocks, repair) always produce a new instance, and the
// memoized factor never outlives the matrix it was computed from.
type Matrix struct {
	tickers []string
	sym     *mat.SymDense

	mu     sync.Mutex
	factor *mat.TriDense // lower triangular, lazily computed
}

// NewMatrix validates and wraps a correlation matrix. The values must be
// square with one row per ticker, symmetric, with unit diagonal and all
// entries in [-1, 1]. Positive semi-definiteness is not checked here; it is
// enforced lazily at factorization time (see Engine.Factorize).
func NewMatrix(tickers []string, values [][]float64) (*Matrix, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("correlation matrix: empty ticker list")
	}
	if len(values) != n {
		return nil, fmt.Errorf("correlation matrix: %d rows for %d tickers", len(values), n)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(values[i]) != n {
			return nil, fmt.Errorf("correlation matrix: row %d has %d columns, expected %d", i, len(values[i]), n)
		}
		for j := i; j < n; j++ {
			v := values[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("correlation matrix: non-finite entry at (%d,%d)", i, j)
			}
			if v < -1-1e-9 || v > 1+1e-9 {
				return nil, fmt.Errorf("correlation matrix: entry %.6f at (%d,%d) outside [-1,1]", v, i, j)
			}
			if i == j && math.Abs(v-1) > 1e-9 {
				return nil, fmt.Errorf("correlation matrix: diagonal entry %.6f at (%d,%d), expected 1", v, i, j)
			}
			if math.Abs(v-values[j][i]) > 1e-9 {
				return nil, fmt.Errorf("correlation matrix: asymmetric at (%d,%d): %.9f vs %.9f", i, j, v, values[j][i])
			}
			sym.SetSym(i, j, v)
		}
	}

	return &Matrix{tickers: tickers, sym: sym}, nil
}

// Identity returns the identity correlation matrix for the given tickers,
// used when correlation is disabled for a simulation.
func Identity(tickers []string) *Matrix {
	n := len(tickers)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, 1)
	}
	return &Matrix{tickers: tickers, sym: sym}
}

func newMatrixFromSym(tickers []string, sym *mat.SymDense) *Matrix {
	return &Matrix{tickers: tickers, sym: sym}
}

// Tickers returns the canonical instrument order of the matrix axes.
func (m *Matrix) Tickers() []string {
	return m.tickers
}

// Dim returns the matrix dimension.
func (m *Matrix) Dim() int {
	return m.sym.SymmetricDim()
}

// At returns the correlation between instruments i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.sym.At(i, j)
}

// Values returns a dense copy of the matrix entries.
func (m *Matrix) Values() [][]float64 {
	n := m.Dim()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = m.sym.At(i, j)
		}
	}
	return out
}

// AverageOffDiagonal returns the mean of the upper-triangle correlations.
// Returns 0 for a 1x1 matrix.
func (m *Matrix) AverageOffDiagonal() float64 {
	n := m.Dim()
	if n < 2 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += m.sym.At(i, j)
			count++
		}
	}
	return sum / float64(count)
}

func (m *Matrix) cachedFactor() *mat.TriDense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.factor
}

func (m *Matrix) storeFactor(l *mat.TriDense) {
	m.mu.Lock()
	m.factor = l
	m.mu.Unlock()
}
