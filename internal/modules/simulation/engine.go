package simulation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/internal/modules/market"
)

// Method selects the path-generation algorithm.
type Method string

const (
	MethodMonteCarlo Method = "monte_carlo"
	MethodHistorical Method = "historical"
)

// Default portfolio assumptions for risk reporting.
const (
	DefaultConfidence = 0.95
	DefaultNotional   = 100_000.0
)

// Request describes one simulation invocation.
type Request struct {
	Method         Method        `json:"method"`
	Paths          int           `json:"num_simulations"`
	Days           int           `json:"num_days"`
	Seed           *int64        `json:"seed,omitempty"`
	UseCorrelation bool          `json:"use_correlation"`
	RegimeAware    bool          `json:"regime_aware"`
	BlockSize      int           `json:"block_size,omitempty"`
	Confidence     float64       `json:"confidence,omitempty"`
	Notional       float64       `json:"notional,omitempty"`
	Shock          *market.Shock `json:"shock,omitempty"`
}

func (r Request) confidence() float64 {
	if r.Confidence > 0 {
		return r.Confidence
	}
	return DefaultConfidence
}

func (r Request) notional() float64 {
	if r.Notional > 0 {
		return r.Notional
	}
	return DefaultNotional
}

// Result is the JSON-serializable outcome of one run: per-instrument
// summaries plus portfolio tail risk. The raw price tensor stays internal.
type Result struct {
	Method      Method         `json:"method"`
	Paths       int            `json:"num_simulations"`
	Days        int            `json:"num_days"`
	RegimeAware bool           `json:"regime_aware"`
	Summary     []SummaryStats `json:"summary"`
	Risk        *VaRResult     `json:"risk"`
}

// Comparison pairs a baseline run with the same run under a scenario shock,
// both on the same seed so differences come from the shock alone.
type Comparison struct {
	Baseline *Result `json:"baseline"`
	Scenario *Result `json:"scenario"`
}

// Engine orchestrates shock application, path generation and risk
// statistics behind a single entry point.
type Engine struct {
	corr *correlation.Engine
	mc   *MonteCarloSimulator
	hist *HistoricalSimulator
	log  zerolog.Logger
}

// NewEngine wires the simulation engine from its collaborators.
func NewEngine(corr *correlation.Engine, log zerolog.Logger) *Engine {
	return &Engine{
		corr: corr,
		mc:   NewMonteCarloSimulator(corr, log),
		hist: NewHistoricalSimulator(log),
		log:  log.With().Str("component", "simulation").Logger(),
	}
}

// Run executes one simulation. Monte Carlo draws from the parameter set;
// historical bootstrap additionally needs the return panel aligned to the
// parameter set's tickers. A request shock is applied to a copy of the
// parameters first, leaving the caller's set untouched.
func (e *Engine) Run(params *market.ParameterSet, panel [][]float64, req Request) (*Result, error) {
	if params == nil {
		return nil, fmt.Errorf("nil parameter set")
	}

	if req.Shock != nil && !req.Shock.IsZero() {
		shocked, err := params.ApplyShock(*req.Shock, e.corr)
		if err != nil {
			return nil, fmt.Errorf("apply shock: %w", err)
		}
		params = shocked
	}

	var (
		out *Output
		err error
	)
	switch req.Method {
	case MethodMonteCarlo, "":
		out, err = e.mc.Simulate(params, MonteCarloConfig{
			Paths:          req.Paths,
			Days:           req.Days,
			Seed:           req.Seed,
			UseCorrelation: req.UseCorrelation,
			RegimeAware:    req.RegimeAware,
		})
	case MethodHistorical:
		if len(panel) == 0 {
			return nil, fmt.Errorf("historical simulation requires a return panel")
		}
		out, err = e.hist.Simulate(params.Tickers(), params.InitialPrices(), panel, HistoricalConfig{
			Paths:     req.Paths,
			Days:      req.Days,
			Seed:      req.Seed,
			BlockSize: req.BlockSize,
		})
	default:
		return nil, fmt.Errorf("unknown simulation method %q", req.Method)
	}
	if err != nil {
		return nil, err
	}

	summary, err := Summarize(out)
	if err != nil {
		return nil, err
	}
	risk, err := ValueAtRisk(out, req.confidence(), req.notional())
	if err != nil {
		return nil, err
	}

	return &Result{
		Method:      req.Method,
		Paths:       out.Paths(),
		Days:        out.Days(),
		RegimeAware: req.RegimeAware,
		Summary:     summary,
		Risk:        risk,
	}, nil
}

// Compare runs the request twice, without and with its shock, on identical
// seeds. The request must carry a shock.
func (e *Engine) Compare(params *market.ParameterSet, panel [][]float64, req Request) (*Comparison, error) {
	if req.Shock == nil || req.Shock.IsZero() {
		return nil, fmt.Errorf("comparison requires a shock")
	}

	baseReq := req
	baseReq.Shock = nil
	baseline, err := e.Run(params, panel, baseReq)
	if err != nil {
		return nil, fmt.Errorf("baseline run: %w", err)
	}

	scenario, err := e.Run(params, panel, req)
	if err != nil {
		return nil, fmt.Errorf("scenario run: %w", err)
	}

	return &Comparison{Baseline: baseline, Scenario: scenario}, nil
}
