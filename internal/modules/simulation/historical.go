package simulation

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HistoricalConfig controls one bootstrap run. BlockSize 0 or 1 resamples
// single days; larger values resample contiguous windows to preserve
// volatility clustering.
type HistoricalConfig struct {
	Paths     int
	Days      int
	Seed      *int64
	BlockSize int
	Workers   int
}

func (c HistoricalConfig) validate() error {
	if c.Paths <= 0 {
		return fmt.Errorf("path count must be positive, got %d", c.Paths)
	}
	if c.Days <= 0 {
		return fmt.Errorf("day count must be positive, got %d", c.Days)
	}
	if c.BlockSize < 0 {
		return fmt.Errorf("block size must be non-negative, got %d", c.BlockSize)
	}
	return nil
}

func (c HistoricalConfig) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// HistoricalSimulator generates price paths by resampling whole historical
// return rows, so realized cross-asset structure is preserved without an
// explicit correlation estimate.
type HistoricalSimulator struct {
	log zerolog.Logger
}

// NewHistoricalSimulator creates a bootstrap simulator.
func NewHistoricalSimulator(log zerolog.Logger) *HistoricalSimulator {
	return &HistoricalSimulator{
		log: log.With().Str("component", "historical").Logger(),
	}
}

// Simulate resamples the return panel into price paths. The panel is rows of
// daily simple returns, dates down and instruments across, aligned to
// tickers; initial holds the starting price per instrument in the same
// order. Determinism follows the Monte Carlo contract: a seed makes the
// output byte-reproducible regardless of worker count.
func (s *HistoricalSimulator) Simulate(tickers []string, initial []float64, panel [][]float64, cfg HistoricalConfig) (*Output, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("empty ticker list")
	}
	if len(initial) != n {
		return nil, fmt.Errorf("%d tickers but %d initial prices", n, len(initial))
	}
	if len(panel) == 0 {
		return nil, fmt.Errorf("empty return panel")
	}
	for d, row := range panel {
		if len(row) != n {
			return nil, fmt.Errorf("panel row %d has %d entries, want %d", d, len(row), n)
		}
	}

	blockSize := cfg.BlockSize
	if blockSize == 0 {
		blockSize = 1
	}
	// Blocks longer than the available history degrade to single-day draws.
	if blockSize > len(panel) {
		blockSize = 1
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	master := rand.New(rand.NewSource(seed))
	pathSeeds := make([]int64, cfg.Paths)
	for p := range pathSeeds {
		pathSeeds[p] = master.Int63()
	}

	out := newOutput(tickers, initial, cfg.Paths, cfg.Days)
	history := len(panel)

	start := time.Now()
	var wg sync.WaitGroup
	pathCh := make(chan int)
	for w := 0; w < cfg.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pathCh {
				rng := rand.New(rand.NewSource(pathSeeds[p]))
				rows := sampleRows(rng, history, cfg.Days, blockSize)
				for t, d := range rows {
					for i := 0; i < n; i++ {
						prev := out.Price(i, p, t)
						out.setPrice(i, p, t+1, prev*(1+panel[d][i]))
					}
				}
			}
		}()
	}
	for p := 0; p < cfg.Paths; p++ {
		pathCh <- p
	}
	close(pathCh)
	wg.Wait()

	s.log.Debug().
		Int("paths", cfg.Paths).
		Int("days", cfg.Days).
		Int("history", history).
		Int("block_size", blockSize).
		Dur("elapsed", time.Since(start)).
		Msg("historical simulation complete")

	return out, nil
}

// sampleRows draws cfg.Days historical row indices, either independently or
// as contiguous blocks truncated to the horizon.
func sampleRows(rng *rand.Rand, history, days, blockSize int) []int {
	rows := make([]int, 0, days)
	if blockSize <= 1 {
		for t := 0; t < days; t++ {
			rows = append(rows, rng.Intn(history))
		}
		return rows
	}
	for len(rows) < days {
		start := rng.Intn(history - blockSize + 1)
		for d := start; d < start+blockSize && len(rows) < days; d++ {
			rows = append(rows, d)
		}
	}
	return rows
}
