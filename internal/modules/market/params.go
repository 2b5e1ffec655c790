// Package market defines the immutable market parameter set consumed by the
// simulation and optimization engines, plus scenario shock application.
package market

import (
	"fmt"
	"math"

	"github.com/aristath/stresslab/internal/modules/correlation"
)

// ParameterSet holds per-ticker initial prices, annualized expected returns,
// annualized volatilities and a correlation matrix, all aligned to one
// canonical ticker order. Instances are immutable; shocks produce new ones.
type ParameterSet struct {
	tickers     []string
	index       map[string]int
	prices      []float64
	drifts      []float64
	vols        []float64
	correlation *correlation.Matrix
}

// Shock describes a scenario applied to a parameter set. Return shocks are
// additive (-0.20 means a 20% drop in expected return), volatility
// multipliers are multiplicative (1.5 means +50%), and the optional
// correlation multiplier scales every off-diagonal entry.
type Shock struct {
	ReturnShock           map[string]float64 `json:"return_shock,omitempty"`
	VolatilityMultiplier  map[string]float64 `json:"volatility_multiplier,omitempty"`
	CorrelationMultiplier *float64           `json:"correlation_multiplier,omitempty"`
}

// IsZero reports whether the shock changes nothing.
func (s Shock) IsZero() bool {
	return len(s.ReturnShock) == 0 && len(s.VolatilityMultiplier) == 0 && s.CorrelationMultiplier == nil
}

// NewParameterSet validates and constructs a parameter set. All slices must
// be aligned to tickers, volatilities must be non-negative and finite, and
// the correlation matrix must cover the same tickers in the same order.
func NewParameterSet(tickers []string, prices, drifts, vols []float64, corr *correlation.Matrix) (*ParameterSet, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("empty ticker list")
	}
	if len(prices) != n || len(drifts) != n || len(vols) != n {
		return nil, fmt.Errorf("parameter vectors must have %d entries, got prices=%d drifts=%d vols=%d",
			n, len(prices), len(drifts), len(vols))
	}

	index := make(map[string]int, n)
	for i, t := range tickers {
		if _, dup := index[t]; dup {
			return nil, fmt.Errorf("duplicate ticker %s", t)
		}
		index[t] = i

		if !isFinite(prices[i]) || prices[i] <= 0 {
			return nil, fmt.Errorf("ticker %s: initial price must be positive and finite, got %v", t, prices[i])
		}
		if !isFinite(drifts[i]) {
			return nil, fmt.Errorf("ticker %s: expected return is not finite", t)
		}
		if !isFinite(vols[i]) || vols[i] < 0 {
			return nil, fmt.Errorf("ticker %s: volatility must be non-negative and finite, got %v", t, vols[i])
		}
	}

	if corr == nil {
		corr = correlation.Identity(tickers)
	}
	if corr.Dim() != n {
		return nil, fmt.Errorf("correlation matrix covers %d tickers, parameter set has %d", corr.Dim(), n)
	}
	for i, t := range corr.Tickers() {
		if t != tickers[i] {
			return nil, fmt.Errorf("correlation ticker order mismatch at %d: %s vs %s", i, t, tickers[i])
		}
	}

	return &ParameterSet{
		tickers:     append([]string(nil), tickers...),
		index:       index,
		prices:      append([]float64(nil), prices...),
		drifts:      append([]float64(nil), drifts...),
		vols:        append([]float64(nil), vols...),
		correlation: corr,
	}, nil
}

// Tickers returns the canonical ticker order.
func (p *ParameterSet) Tickers() []string {
	return append([]string(nil), p.tickers...)
}

// Size returns the instrument count.
func (p *ParameterSet) Size() int { return len(p.tickers) }

// InitialPrices returns a copy of the initial price vector.
func (p *ParameterSet) InitialPrices() []float64 {
	return append([]float64(nil), p.prices...)
}

// ExpectedReturns returns a copy of the annualized drift vector.
func (p *ParameterSet) ExpectedReturns() []float64 {
	return append([]float64(nil), p.drifts...)
}

// Volatilities returns a copy of the annualized volatility vector.
func (p *ParameterSet) Volatilities() []float64 {
	return append([]float64(nil), p.vols...)
}

// Correlation returns the correlation matrix wrapper. The wrapper itself is
// immutable so sharing it is safe.
func (p *ParameterSet) Correlation() *correlation.Matrix { return p.correlation }

// ExpectedReturn returns the drift for one ticker.
func (p *ParameterSet) ExpectedReturn(ticker string) (float64, bool) {
	i, ok := p.index[ticker]
	if !ok {
		return 0, false
	}
	return p.drifts[i], true
}

// Volatility returns the annualized volatility for one ticker.
func (p *ParameterSet) Volatility(ticker string) (float64, bool) {
	i, ok := p.index[ticker]
	if !ok {
		return 0, false
	}
	return p.vols[i], true
}

// ApplyShock produces a new parameter set with the shock applied. Shock maps
// keyed by tickers not present in the set are ignored. A correlation
// multiplier is applied through the engine so the result is repaired back to
// positive semi-definite when the scaling breaks it.
func (p *ParameterSet) ApplyShock(shock Shock, engine *correlation.Engine) (*ParameterSet, error) {
	drifts := append([]float64(nil), p.drifts...)
	vols := append([]float64(nil), p.vols...)

	for ticker, delta := range shock.ReturnShock {
		i, ok := p.index[ticker]
		if !ok {
			continue
		}
		if !isFinite(delta) {
			return nil, fmt.Errorf("return shock for %s is not finite", ticker)
		}
		drifts[i] += delta
	}

	for ticker, mult := range shock.VolatilityMultiplier {
		i, ok := p.index[ticker]
		if !ok {
			continue
		}
		if !isFinite(mult) || mult < 0 {
			return nil, fmt.Errorf("volatility multiplier for %s must be non-negative and finite, got %v", ticker, mult)
		}
		vols[i] *= mult
	}

	corr := p.correlation
	if shock.CorrelationMultiplier != nil {
		mult := *shock.CorrelationMultiplier
		if !isFinite(mult) || mult < 0 {
			return nil, fmt.Errorf("correlation multiplier must be non-negative and finite, got %v", mult)
		}
		shocked, err := engine.ApplyMultiplier(p.correlation, mult)
		if err != nil {
			return nil, fmt.Errorf("apply correlation multiplier: %w", err)
		}
		corr = shocked
	}

	return NewParameterSet(p.tickers, p.prices, drifts, vols, corr)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
