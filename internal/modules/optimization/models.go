// Package optimization solves long-only fully-invested portfolio weight
// problems over a shocked or unshocked market parameter set.
package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/stresslab/internal/modules/correlation"
)

// Objective selects what the optimizer solves for.
type Objective string

const (
	ObjectiveMaxSharpe     Objective = "max_sharpe"
	ObjectiveMinVolatility Objective = "min_volatility"
)

// Request carries the inputs for one optimization. The parameter vectors may
// already include scenario shocks; the optimizer does not care.
type Request struct {
	Tickers         []string             `json:"tickers"`
	ExpectedReturns []float64            `json:"expected_returns"`
	Volatilities    []float64            `json:"volatilities"`
	Correlation     *correlation.Matrix  `json:"-"`
	Objective       Objective            `json:"objective"`
	RiskFreeRate    float64              `json:"risk_free_rate"`
}

func (r Request) validate() error {
	n := len(r.Tickers)
	if n == 0 {
		return fmt.Errorf("empty ticker list")
	}
	if len(r.ExpectedReturns) != n || len(r.Volatilities) != n {
		return fmt.Errorf("parameter vectors must have %d entries, got returns=%d vols=%d",
			n, len(r.ExpectedReturns), len(r.Volatilities))
	}
	for i, t := range r.Tickers {
		if math.IsNaN(r.ExpectedReturns[i]) || math.IsInf(r.ExpectedReturns[i], 0) {
			return fmt.Errorf("ticker %s: expected return is not finite", t)
		}
		if math.IsNaN(r.Volatilities[i]) || r.Volatilities[i] < 0 {
			return fmt.Errorf("ticker %s: volatility must be non-negative and finite", t)
		}
	}
	if r.Correlation != nil && r.Correlation.Dim() != n {
		return fmt.Errorf("correlation matrix covers %d tickers, request has %d", r.Correlation.Dim(), n)
	}
	switch r.Objective {
	case ObjectiveMaxSharpe, ObjectiveMinVolatility:
	default:
		return fmt.Errorf("unknown objective %q", r.Objective)
	}
	return nil
}

// Result is the structured outcome. Weights is nil when the solver did not
// converge; Success must be checked before reading it.
type Result struct {
	Success           bool               `json:"success"`
	Message           string             `json:"message,omitempty"`
	Objective         Objective          `json:"objective"`
	Weights           map[string]float64 `json:"weights,omitempty"`
	ExpectedReturn    float64            `json:"expected_return"`
	Volatility        float64            `json:"volatility"`
	SharpeRatio       float64            `json:"sharpe_ratio"`
	ExpectedShortfall float64            `json:"expected_shortfall"`
}
