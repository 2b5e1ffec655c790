package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/stresslab/internal/modules/correlation"
)

const (
	penaltyWeight = 1000.0

	// 95% confidence expected-shortfall constant under normality.
	shortfallZ = 2.06
)

// Optimizer solves long-only fully-invested weight problems via a penalty
// formulation and a local solver, Nelder-Mead first with a BFGS fallback.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates an optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "optimizer").Logger()}
}

// Optimize solves the requested objective. Input validation failures return
// an error; solver non-convergence returns a Result with Success=false and
// the solver message, never an error.
func (o *Optimizer) Optimize(req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	n := len(req.Tickers)
	mu := req.ExpectedReturns
	sigma := buildCovariance(req.Volatilities, req.Correlation)

	var objective func(w []float64) float64
	switch req.Objective {
	case ObjectiveMaxSharpe:
		objective = func(w []float64) float64 {
			ret := dot(mu, w)
			vol := math.Sqrt(math.Max(quadraticForm(w, sigma), 1e-10))
			return -(ret - req.RiskFreeRate) / vol
		}
	case ObjectiveMinVolatility:
		objective = func(w []float64) float64 {
			return quadraticForm(w, sigma)
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x)

			obj := objective(w)

			sum := 0.0
			for _, v := range w {
				sum += v
			}
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)

			return obj
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
		if err != nil {
			o.log.Warn().Err(err).Str("objective", string(req.Objective)).Msg("optimization failed")
			return &Result{
				Success:   false,
				Message:   fmt.Sprintf("optimization failed: %v", err),
				Objective: req.Objective,
			}, nil
		}
		if !converged(result.Status) {
			o.log.Warn().Stringer("status", result.Status).Str("objective", string(req.Objective)).
				Msg("optimization did not converge")
			return &Result{
				Success:   false,
				Message:   fmt.Sprintf("optimization did not converge: status=%v", result.Status),
				Objective: req.Objective,
			}, nil
		}
	}

	final := projectToBounds(result.X)
	sum := 0.0
	for _, v := range final {
		sum += v
	}
	weights := make(map[string]float64, n)
	for i, ticker := range req.Tickers {
		weights[ticker] = math.Max(0.0, final[i]/math.Max(sum, 1e-10))
	}

	// Final normalization after clipping.
	sum = 0.0
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for ticker := range weights {
			weights[ticker] /= sum
		}
	}

	normalized := make([]float64, n)
	for i, ticker := range req.Tickers {
		normalized[i] = weights[ticker]
	}
	portReturn := dot(mu, normalized)
	portVol := math.Sqrt(math.Max(quadraticForm(normalized, sigma), 0))

	sharpe := 0.0
	if portVol > 0 {
		sharpe = (portReturn - req.RiskFreeRate) / portVol
	}

	return &Result{
		Success:           true,
		Objective:         req.Objective,
		Weights:           weights,
		ExpectedReturn:    portReturn,
		Volatility:        portVol,
		SharpeRatio:       sharpe,
		ExpectedShortfall: portReturn - shortfallZ*portVol,
	}, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

// buildCovariance derives Cov = D·R·D from volatilities and correlation;
// a nil correlation means independent instruments.
func buildCovariance(vols []float64, corr *correlation.Matrix) *mat.SymDense {
	n := len(vols)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rho := 0.0
			if i == j {
				rho = 1.0
			} else if corr != nil {
				rho = corr.At(i, j)
			}
			sigma.SetSym(i, j, vols[i]*vols[j]*rho)
		}
	}
	return sigma
}

func projectToBounds(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Max(0.0, math.Min(1.0, v))
	}
	return proj
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func quadraticForm(w []float64, sigma *mat.SymDense) float64 {
	n := len(w)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return total
}
