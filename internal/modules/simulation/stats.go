package simulation

import (
	"fmt"
	"sort"

	"github.com/aristath/stresslab/pkg/formulas"
)

// SummaryStats describes the final-price distribution of one instrument
// across all simulated paths.
type SummaryStats struct {
	Ticker         string  `json:"ticker"`
	InitialPrice   float64 `json:"initial_price"`
	Mean           float64 `json:"mean"`
	Median         float64 `json:"median"`
	StdDev         float64 `json:"std_dev"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Percentile5    float64 `json:"percentile_5"`
	Percentile95   float64 `json:"percentile_95"`
	MeanReturn     float64 `json:"mean_return"`
	ProbLoss       float64 `json:"prob_loss"`
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
}

// VaRResult holds portfolio-level tail risk, both as returns and in currency
// terms against the given notional.
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	Notional   float64 `json:"notional"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
	VaRAmount  float64 `json:"var_amount"`
	CVaRAmount float64 `json:"cvar_amount"`
	Paths      int     `json:"paths"`
}

// Summarize computes per-instrument distributional statistics over the
// final-price axis of the output.
func Summarize(out *Output) ([]SummaryStats, error) {
	if out == nil || out.Paths() == 0 {
		return nil, fmt.Errorf("empty simulation output")
	}

	tickers := out.Tickers()
	stats := make([]SummaryStats, len(tickers))
	for i, ticker := range tickers {
		final, err := out.FinalPrices(ticker)
		if err != nil {
			return nil, err
		}
		initial := out.InitialPrice(i)

		sorted := append([]float64(nil), final...)
		sort.Float64s(sorted)

		losses := 0
		for _, v := range final {
			if v < initial {
				losses++
			}
		}

		mean := formulas.Mean(final)
		stats[i] = SummaryStats{
			Ticker:         ticker,
			InitialPrice:   initial,
			Mean:           mean,
			Median:         formulas.Median(final),
			StdDev:         formulas.StdDev(final),
			Min:            sorted[0],
			Max:            sorted[len(sorted)-1],
			Percentile5:    formulas.Percentile(final, 5),
			Percentile95:   formulas.Percentile(final, 95),
			MeanReturn:     mean/initial - 1,
			ProbLoss:       float64(losses) / float64(len(final)),
			Skewness:       formulas.Skewness(final),
			ExcessKurtosis: formulas.ExcessKurtosis(final),
		}
	}
	return stats, nil
}

// ValueAtRisk computes empirical portfolio VaR and CVaR at the given
// confidence level on an equal-weighted portfolio: each instrument holds
// notional/N scaled by its own final/initial price ratio. VaR is the
// (1-confidence) quantile of portfolio returns; CVaR is the mean of returns
// at or below it. When the tail is empty the single worst observation is
// used instead of reporting not-a-number.
func ValueAtRisk(out *Output, confidence, notional float64) (*VaRResult, error) {
	if out == nil || out.Paths() == 0 {
		return nil, fmt.Errorf("empty simulation output")
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("confidence must be in (0,1), got %v", confidence)
	}
	if notional <= 0 {
		return nil, fmt.Errorf("notional must be positive, got %v", notional)
	}

	tickers := out.Tickers()
	perInstrument := notional / float64(len(tickers))

	portfolioReturns := make([]float64, out.Paths())
	for p := 0; p < out.Paths(); p++ {
		value := 0.0
		for i := range tickers {
			value += perInstrument * out.Price(i, p, out.Days()) / out.InitialPrice(i)
		}
		portfolioReturns[p] = value/notional - 1
	}

	varReturn := formulas.Percentile(portfolioReturns, (1-confidence)*100)

	tail := make([]float64, 0, len(portfolioReturns))
	for _, r := range portfolioReturns {
		if r <= varReturn {
			tail = append(tail, r)
		}
	}
	var cvarReturn float64
	if len(tail) == 0 {
		sorted := append([]float64(nil), portfolioReturns...)
		sort.Float64s(sorted)
		cvarReturn = sorted[0]
	} else {
		cvarReturn = formulas.Mean(tail)
	}

	return &VaRResult{
		Confidence: confidence,
		Notional:   notional,
		VaR:        varReturn,
		CVaR:       cvarReturn,
		VaRAmount:  varReturn * notional,
		CVaRAmount: cvarReturn * notional,
		Paths:      out.Paths(),
	}, nil
}

// RealizedCorrelation computes the average pairwise correlation of simulated
// log returns across paths for two instruments. Used to verify that regime
// switching raises co-movement in stress episodes.
func RealizedCorrelation(out *Output, a, b int) float64 {
	sum := 0.0
	for p := 0; p < out.Paths(); p++ {
		sum += formulas.Correlation(out.LogReturns(a, p), out.LogReturns(b, p))
	}
	return sum / float64(out.Paths())
}
