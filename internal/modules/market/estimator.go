package market

import (
	"fmt"
	"math"

	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/pkg/formulas"
)

// Estimator derives a parameter set from historical return series: annualized
// mean return, annualized sample volatility, and a correlation matrix
// estimated by the correlation engine.
type Estimator struct {
	engine *correlation.Engine
}

// NewEstimator creates an estimator backed by the given correlation engine.
func NewEstimator(engine *correlation.Engine) *Estimator {
	return &Estimator{engine: engine}
}

// Estimate builds a parameter set from daily return series and current
// prices. Every ticker needs a price and a return series of the same length
// as the others; series shorter than two observations are rejected.
func (e *Estimator) Estimate(tickers []string, prices map[string]float64, returns map[string][]float64, method correlation.Method) (*ParameterSet, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("empty ticker list")
	}

	priceVec := make([]float64, len(tickers))
	driftVec := make([]float64, len(tickers))
	volVec := make([]float64, len(tickers))

	for i, ticker := range tickers {
		price, ok := prices[ticker]
		if !ok {
			return nil, fmt.Errorf("missing price for %s", ticker)
		}
		series, ok := returns[ticker]
		if !ok {
			return nil, fmt.Errorf("missing return series for %s", ticker)
		}
		if len(series) < 2 {
			return nil, fmt.Errorf("ticker %s: need at least 2 return observations, got %d", ticker, len(series))
		}

		priceVec[i] = price
		driftVec[i] = formulas.Mean(series) * formulas.TradingDaysPerYear
		volVec[i] = formulas.SampleStdDev(series) * math.Sqrt(formulas.TradingDaysPerYear)
	}

	var corr *correlation.Matrix
	if len(tickers) == 1 {
		corr = correlation.Identity(tickers)
	} else {
		estimated, err := e.engine.Estimate(tickers, returns, method)
		if err != nil {
			return nil, fmt.Errorf("estimate correlation: %w", err)
		}
		corr = estimated
	}

	return NewParameterSet(tickers, priceVec, driftVec, volVec, corr)
}
