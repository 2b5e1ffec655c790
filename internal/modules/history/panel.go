package history

import (
	"fmt"
	"sort"
)

// Panel is an aligned daily return panel: Rows[d][i] is the simple return of
// Tickers[i] over the step ending on Dates[d]. Incomplete dates (any ticker
// missing) are dropped before returns are computed.
type Panel struct {
	Tickers []string
	Dates   []string
	Rows    [][]float64

	// LatestClose holds the last aligned close per ticker, for use as the
	// simulation starting price.
	LatestClose map[string]float64
}

// Returns extracts one ticker's return series from the panel.
func (p *Panel) Returns(ticker string) ([]float64, error) {
	for i, t := range p.Tickers {
		if t == ticker {
			series := make([]float64, len(p.Rows))
			for d, row := range p.Rows {
				series[d] = row[i]
			}
			return series, nil
		}
	}
	return nil, fmt.Errorf("ticker %s not in panel", ticker)
}

// ReturnsByTicker maps every panel column to its return series.
func (p *Panel) ReturnsByTicker() map[string][]float64 {
	out := make(map[string][]float64, len(p.Tickers))
	for i, t := range p.Tickers {
		series := make([]float64, len(p.Rows))
		for d, row := range p.Rows {
			series[d] = row[i]
		}
		out[t] = series
	}
	return out
}

// BuildPanel loads prices for the tickers and assembles an aligned return
// panel over the date range. Dates missing any ticker are dropped; at least
// three aligned closes are needed to produce two return rows.
func BuildPanel(repo *PriceRepository, tickers []string, from, to string) (*Panel, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("empty ticker list")
	}

	closes := make(map[string]map[string]float64, len(tickers))
	for _, ticker := range tickers {
		points, err := repo.GetPrices(ticker, from, to)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("no price history for %s", ticker)
		}
		byDate := make(map[string]float64, len(points))
		for _, p := range points {
			byDate[p.Date] = p.Close
		}
		closes[ticker] = byDate
	}

	// Intersect dates across tickers.
	var aligned []string
	for date := range closes[tickers[0]] {
		complete := true
		for _, ticker := range tickers[1:] {
			if _, ok := closes[ticker][date]; !ok {
				complete = false
				break
			}
		}
		if complete {
			aligned = append(aligned, date)
		}
	}
	sort.Strings(aligned)
	if len(aligned) < 3 {
		return nil, fmt.Errorf("only %d aligned dates for %v, need at least 3", len(aligned), tickers)
	}

	rows := make([][]float64, len(aligned)-1)
	for d := 1; d < len(aligned); d++ {
		row := make([]float64, len(tickers))
		for i, ticker := range tickers {
			prev := closes[ticker][aligned[d-1]]
			curr := closes[ticker][aligned[d]]
			if prev == 0 {
				return nil, fmt.Errorf("zero close for %s on %s", ticker, aligned[d-1])
			}
			row[i] = curr/prev - 1
		}
		rows[d-1] = row
	}

	latest := make(map[string]float64, len(tickers))
	last := aligned[len(aligned)-1]
	for _, ticker := range tickers {
		latest[ticker] = closes[ticker][last]
	}

	return &Panel{
		Tickers:     append([]string(nil), tickers...),
		Dates:       aligned[1:],
		Rows:        rows,
		LatestClose: latest,
	}, nil
}
