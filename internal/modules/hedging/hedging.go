// Package hedging turns a target weight allocation into an executable trade
// list against the current portfolio.
package hedging

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// MinWeightDelta is the rebalancing threshold: smaller weight differences
// produce no trade.
const MinWeightDelta = 0.001

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one instruction in a rebalance plan.
type Trade struct {
	Ticker      string  `json:"ticker"`
	Side        Side    `json:"side"`
	WeightDelta float64 `json:"weight_delta"`
	Value       float64 `json:"value"`
}

// Plan is an ordered trade list: sells first so their proceeds can fund the
// buys.
type Plan struct {
	Notional float64 `json:"notional"`
	Trades   []Trade `json:"trades"`
	Turnover float64 `json:"turnover"`
}

// Planner builds rebalance plans.
type Planner struct {
	log zerolog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(log zerolog.Logger) *Planner {
	return &Planner{log: log.With().Str("component", "hedging").Logger()}
}

// BuildPlan diffs current against target weights over the given notional.
// Tickers present only in one map are treated as zero-weight in the other;
// differences below MinWeightDelta are skipped.
func (p *Planner) BuildPlan(current, target map[string]float64, notional float64) (*Plan, error) {
	if notional <= 0 {
		return nil, fmt.Errorf("notional must be positive, got %v", notional)
	}

	universe := make(map[string]bool, len(current)+len(target))
	for t := range current {
		universe[t] = true
	}
	for t := range target {
		universe[t] = true
	}

	var trades []Trade
	turnover := 0.0
	for ticker := range universe {
		delta := target[ticker] - current[ticker]
		if math.Abs(delta) < MinWeightDelta {
			continue
		}
		side := SideBuy
		if delta < 0 {
			side = SideSell
		}
		trades = append(trades, Trade{
			Ticker:      ticker,
			Side:        side,
			WeightDelta: delta,
			Value:       math.Abs(delta) * notional,
		})
		turnover += math.Abs(delta)
	}

	// Sells first, then by descending value; ties break on ticker for
	// deterministic output.
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Side != trades[j].Side {
			return trades[i].Side == SideSell
		}
		if trades[i].Value != trades[j].Value {
			return trades[i].Value > trades[j].Value
		}
		return trades[i].Ticker < trades[j].Ticker
	})

	p.log.Debug().Int("trades", len(trades)).Float64("turnover", turnover).Msg("rebalance plan built")
	return &Plan{Notional: notional, Trades: trades, Turnover: turnover}, nil
}
