package correlation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rs/zerolog"
)

// Method selects the pairwise correlation estimator.
type Method string

const (
	MethodPearson  Method = "pearson"
	MethodKendall  Method = "kendall"
	MethodSpearman Method = "spearman"
)

// EigenvalueFloor is the minimum eigenvalue enforced by the repair procedure.
const EigenvalueFloor = 1e-6

// Engine estimates, validates and transforms correlation matrices.
type Engine struct {
	eigenFloor float64
	log        zerolog.Logger
}

// NewEngine creates a new correlation engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		eigenFloor: EigenvalueFloor,
		log:        log.With().Str("component", "correlation").Logger(),
	}
}

// Estimate computes the pairwise correlation matrix over a return panel.
// The series must already be date-aligned with incomplete rows dropped;
// every ticker must have the same number of observations. The result is
// symmetric by construction with the diagonal forced to exactly 1.
func (e *Engine) Estimate(tickers []string, returns map[string][]float64, method Method) (*Matrix, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("correlation estimate: empty ticker list")
	}
	if method == "" {
		method = MethodPearson
	}

	series := make([][]float64, n)
	obs := -1
	for i, ticker := range tickers {
		s, ok := returns[ticker]
		if !ok {
			return nil, fmt.Errorf("correlation estimate: missing return series for %s", ticker)
		}
		if obs == -1 {
			obs = len(s)
		} else if len(s) != obs {
			return nil, fmt.Errorf("correlation estimate: %s has %d observations, expected %d", ticker, len(s), obs)
		}
		series[i] = s
	}
	if obs < 2 {
		return nil, fmt.Errorf("correlation estimate: need at least 2 observations, got %d", obs)
	}

	if method == MethodSpearman {
		// Spearman is Pearson on ranks.
		for i := range series {
			series[i] = rankData(series[i])
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			var c float64
			switch method {
			case MethodKendall:
				c = stat.Kendall(series[i], series[j], nil)
			case MethodPearson, MethodSpearman:
				c = stat.Correlation(series[i], series[j], nil)
			default:
				return nil, fmt.Errorf("correlation estimate: unknown method %q", method)
			}
			if math.IsNaN(c) {
				return nil, fmt.Errorf("correlation estimate: degenerate series for pair (%s, %s)", tickers[i], tickers[j])
			}
			sym.SetSym(i, j, c)
		}
	}

	e.log.Debug().
		Str("method", string(method)).
		Int("num_tickers", n).
		Int("observations", obs).
		Msg("Estimated correlation matrix")

	return newMatrixFromSym(tickers, sym), nil
}

// Factorize returns the lower-triangular Cholesky factor L with L·Lᵗ = R.
// If the matrix is not positive definite (common after shock application or
// with ill-conditioned estimates) it is repaired once via eigenvalue
// clamping; a second factorization failure is fatal. The factor is memoized
// on the matrix wrapper.
func (e *Engine) Factorize(m *Matrix) (*mat.TriDense, error) {
	if l := m.cachedFactor(); l != nil {
		return l, nil
	}

	var chol mat.Cholesky
	target := m.sym
	if ok := chol.Factorize(target); !ok {
		e.log.Warn().Msg("Correlation matrix is not positive definite, applying eigenvalue repair")
		target = e.repairSym(m.sym)
		if ok := chol.Factorize(target); !ok {
			return nil, fmt.Errorf("cholesky factorization failed after eigenvalue repair")
		}
	}

	l := mat.NewTriDense(m.Dim(), mat.Lower, nil)
	chol.LTo(l)
	m.storeFactor(l)
	return l, nil
}

// Repair projects the matrix onto the set of valid correlation matrices by
// clamping eigenvalues below the floor and renormalizing to unit diagonal.
// This is a best-effort positive-semi-definite projection, not a
// minimum-distance correction. Repairing an already valid matrix is a no-op
// up to floating-point tolerance.
func (e *Engine) Repair(m *Matrix) *Matrix {
	return newMatrixFromSym(m.tickers, e.repairSym(m.sym))
}

// repairSym clamps eigenvalues to the floor, reconstructs, and renormalizes
// the diagonal by dividing through the outer product of square-rooted
// diagonal entries.
func (e *Engine) repairSym(sym *mat.SymDense) *mat.SymDense {
	n := sym.SymmetricDim()

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		// Symmetric eigendecomposition only fails to converge on
		// pathological input; fall back to the original matrix and let the
		// caller's factorization attempt surface the error.
		e.log.Error().Msg("Eigendecomposition did not converge during repair")
		return sym
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	for i := range values {
		if values[i] < e.eigenFloor {
			values[i] = e.eigenFloor
		}
	}

	// Reconstruct V·diag(λ)·Vᵗ.
	scaled := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			scaled.Set(i, j, vectors.At(i, j)*values[j])
		}
	}
	var rebuilt mat.Dense
	rebuilt.Mul(scaled, vectors.T())

	// Renormalize to unit diagonal.
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = math.Sqrt(rebuilt.At(i, i))
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rebuilt.At(i, j) / (d[i] * d[j])
			if i == j {
				v = 1
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// Stress moves every off-diagonal correlation a fraction of the remaining
// distance toward +1: c' = c + f·(1−c). The diagonal is untouched. Stressing
// can break positive semi-definiteness at the margins, so the result is
// validated and repaired if needed before being returned.
func (e *Engine) Stress(m *Matrix, intensity float64) (*Matrix, error) {
	if intensity < 0 || intensity >= 1 {
		return nil, fmt.Errorf("stress intensity %.4f outside [0,1)", intensity)
	}
	if intensity == 0 {
		return m, nil
	}

	n := m.Dim()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			c := m.sym.At(i, j)
			sym.SetSym(i, j, c+intensity*(1-c))
		}
	}

	return newMatrixFromSym(m.tickers, e.ensurePSD(sym)), nil
}

// ApplyMultiplier scales every off-diagonal correlation by the given
// multiplier, clamping the result to [-0.99, 0.99], then repairs the matrix
// if the scaling broke positive semi-definiteness. Used for scenario
// correlation shocks (>1 intensifies co-movement, <1 dampens it).
func (e *Engine) ApplyMultiplier(m *Matrix, multiplier float64) (*Matrix, error) {
	if multiplier <= 0 {
		return nil, fmt.Errorf("correlation multiplier %.4f must be positive", multiplier)
	}

	n := m.Dim()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sym.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			c := m.sym.At(i, j) * multiplier
			if c > 0.99 {
				c = 0.99
			}
			if c < -0.99 {
				c = -0.99
			}
			sym.SetSym(i, j, c)
		}
	}

	return newMatrixFromSym(m.tickers, e.ensurePSD(sym)), nil
}

// ensurePSD returns the matrix unchanged when it already factorizes, and the
// repaired matrix otherwise.
func (e *Engine) ensurePSD(sym *mat.SymDense) *mat.SymDense {
	var chol mat.Cholesky
	if chol.Factorize(sym) {
		return sym
	}
	e.log.Debug().Msg("Transformed correlation matrix lost positive definiteness, repairing")
	return e.repairSym(sym)
}

// rankData assigns 1-based ranks with ties sharing their average rank.
func rankData(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && data[idx[j+1]] == data[idx[i]] {
			j++
		}
		// Average rank for the tie group [i, j].
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
