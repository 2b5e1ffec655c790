// Package simulation generates correlated price paths via Monte Carlo and
// historical bootstrap, and computes risk statistics over the results.
package simulation

import (
	"fmt"
	"math"
)

// Output is the dense price tensor produced by one simulation run:
// price[instrument, path, timestep] with timestep 0 fixed to the initial
// price. Outputs are never mutated after the simulator returns them.
type Output struct {
	tickers []string
	index   map[string]int
	paths   int
	days    int

	// ticker-major flat layout: prices[i*paths*(days+1) + p*(days+1) + t]
	prices []float64
}

func newOutput(tickers []string, initial []float64, paths, days int) *Output {
	index := make(map[string]int, len(tickers))
	for i, t := range tickers {
		index[t] = i
	}

	out := &Output{
		tickers: append([]string(nil), tickers...),
		index:   index,
		paths:   paths,
		days:    days,
		prices:  make([]float64, len(tickers)*paths*(days+1)),
	}
	for i := range tickers {
		for p := 0; p < paths; p++ {
			out.prices[out.offset(i, p, 0)] = initial[i]
		}
	}
	return out
}

func (o *Output) offset(i, p, t int) int {
	return i*o.paths*(o.days+1) + p*(o.days+1) + t
}

func (o *Output) setPrice(i, p, t int, v float64) {
	o.prices[o.offset(i, p, t)] = v
}

// Tickers returns the instrument order of the tensor axes.
func (o *Output) Tickers() []string { return append([]string(nil), o.tickers...) }

// Paths returns the simulated path count.
func (o *Output) Paths() int { return o.paths }

// Days returns the simulated horizon in trading days.
func (o *Output) Days() int { return o.days }

// Price returns price[instrument, path, timestep].
func (o *Output) Price(i, p, t int) float64 {
	return o.prices[o.offset(i, p, t)]
}

// InitialPrice returns the fixed timestep-0 price for an instrument.
func (o *Output) InitialPrice(i int) float64 {
	return o.prices[o.offset(i, 0, 0)]
}

// FinalPrices returns a copy of final_price[instrument, path] for one
// instrument across all paths.
func (o *Output) FinalPrices(ticker string) ([]float64, error) {
	i, ok := o.index[ticker]
	if !ok {
		return nil, fmt.Errorf("unknown ticker %s", ticker)
	}
	final := make([]float64, o.paths)
	for p := 0; p < o.paths; p++ {
		final[p] = o.Price(i, p, o.days)
	}
	return final, nil
}

// PathPrices returns a copy of one instrument's full price path.
func (o *Output) PathPrices(i, p int) []float64 {
	path := make([]float64, o.days+1)
	for t := 0; t <= o.days; t++ {
		path[t] = o.Price(i, p, t)
	}
	return path
}

// LogReturns derives log_return[instrument, path, timestep] for timesteps
// 1..T from the stored prices.
func (o *Output) LogReturns(i, p int) []float64 {
	rets := make([]float64, o.days)
	for t := 1; t <= o.days; t++ {
		rets[t-1] = math.Log(o.Price(i, p, t) / o.Price(i, p, t-1))
	}
	return rets
}

// Equal reports whether two outputs hold byte-identical price tensors. Used
// by reproducibility checks.
func (o *Output) Equal(other *Output) bool {
	if other == nil || o.paths != other.paths || o.days != other.days || len(o.tickers) != len(other.tickers) {
		return false
	}
	for i := range o.prices {
		if o.prices[i] != other.prices[i] {
			return false
		}
	}
	return true
}
