package scenarios

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stresslab/internal/modules/market"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

// Service runs stored scenarios through the simulation engine and persists
// the outcome.
type Service struct {
	repo   *Repository
	engine *simulation.Engine
	log    zerolog.Logger
}

// NewService wires the scenario service.
func NewService(repo *Repository, engine *simulation.Engine, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		log:    log.With().Str("component", "scenarios").Logger(),
	}
}

// Run executes a stored scenario against the given market parameters. The
// scenario's shock overrides any shock on the request; the result is saved
// and returned.
func (s *Service) Run(scenarioID string, params *market.ParameterSet, panel [][]float64, req simulation.Request) (*RunRecord, error) {
	scenario, err := s.repo.Get(scenarioID)
	if err != nil {
		return nil, err
	}
	if scenario == nil {
		return nil, fmt.Errorf("scenario %s not found", scenarioID)
	}

	req.Shock = &scenario.Parameters

	start := time.Now()
	result, err := s.engine.Run(params, panel, req)
	if err != nil {
		return nil, fmt.Errorf("run scenario %s: %w", scenario.Name, err)
	}
	elapsed := time.Since(start)

	rec := &RunRecord{
		ScenarioID:       scenario.ID,
		ScenarioName:     scenario.Name,
		Method:           string(result.Method),
		Paths:            result.Paths,
		Days:             result.Days,
		Tickers:          params.Tickers(),
		Summary:          result.Summary,
		Risk:             result.Risk,
		ExecutionSeconds: elapsed.Seconds(),
	}
	if err := s.repo.SaveResult(rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("scenario", scenario.Name).
		Str("method", rec.Method).
		Int("paths", rec.Paths).
		Dur("elapsed", elapsed).
		Msg("scenario simulation completed")
	return rec, nil
}
