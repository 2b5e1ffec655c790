// Package scenarios stores stress scenario definitions and the results of
// running them through the simulation engine.
package scenarios

import (
	"time"

	"github.com/aristath/stresslab/internal/modules/market"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

// Scenario is a named stress scenario. Parameters carry the shock applied to
// the market parameter set when the scenario runs.
type Scenario struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Parameters  market.Shock `json:"parameters"`
	Tags        []string     `json:"tags,omitempty"`
	Predefined  bool         `json:"is_predefined"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RunRecord is one persisted scenario simulation run.
type RunRecord struct {
	ID               string                     `json:"id"`
	ScenarioID       string                     `json:"scenario_id"`
	ScenarioName     string                     `json:"scenario_name"`
	Method           string                     `json:"method"`
	Paths            int                        `json:"num_simulations"`
	Days             int                        `json:"num_days"`
	Tickers          []string                   `json:"tickers"`
	Summary          []simulation.SummaryStats  `json:"statistics"`
	Risk             *simulation.VaRResult      `json:"var_metrics"`
	RunAt            time.Time                  `json:"run_date"`
	ExecutionSeconds float64                    `json:"execution_time_seconds"`
}
