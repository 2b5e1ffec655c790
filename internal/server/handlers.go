package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/stresslab/internal/modules/calculations"
	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/market"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

// marketInput selects the market parameters for a run: either explicit
// vectors, or just tickers resolved from stored price history (with the
// parameter cache in front of estimation).
type marketInput struct {
	Tickers         []string    `json:"tickers"`
	InitialPrices   []float64   `json:"initial_prices,omitempty"`
	ExpectedReturns []float64   `json:"expected_returns,omitempty"`
	Volatilities    []float64   `json:"volatilities,omitempty"`
	Correlation     [][]float64 `json:"correlation,omitempty"`
	From            string      `json:"from,omitempty"`
	To              string      `json:"to,omitempty"`
}

func (m marketInput) explicit() bool {
	return len(m.InitialPrices) > 0 || len(m.ExpectedReturns) > 0 || len(m.Volatilities) > 0
}

// resolveParams turns a marketInput into a parameter set, and when
// needsPanel is set also assembles the aligned historical return panel.
func (s *Server) resolveParams(m marketInput, needsPanel bool) (*market.ParameterSet, [][]float64, error) {
	if len(m.Tickers) == 0 {
		return nil, nil, fmt.Errorf("tickers are required")
	}

	if m.explicit() {
		var corr *correlation.Matrix
		if len(m.Correlation) > 0 {
			built, err := correlation.NewMatrix(m.Tickers, m.Correlation)
			if err != nil {
				return nil, nil, err
			}
			corr = built
		}
		params, err := market.NewParameterSet(m.Tickers, m.InitialPrices, m.ExpectedReturns, m.Volatilities, corr)
		if err != nil {
			return nil, nil, err
		}
		var panel [][]float64
		if needsPanel {
			built, err := history.BuildPanel(s.cfg.PriceRepo, m.Tickers, m.From, m.To)
			if err != nil {
				return nil, nil, err
			}
			panel = built.Rows
		}
		return params, panel, nil
	}

	panel, err := history.BuildPanel(s.cfg.PriceRepo, m.Tickers, m.From, m.To)
	if err != nil {
		return nil, nil, err
	}

	key := calculations.Key(m.Tickers, m.From, m.To)
	if cached, cerr := s.cfg.ParamCache.Get(key); cerr == nil && cached != nil {
		return cached, panel.Rows, nil
	}

	params, err := s.cfg.Estimator.Estimate(m.Tickers, panel.LatestClose, panel.ReturnsByTicker(), correlation.MethodPearson)
	if err != nil {
		return nil, nil, err
	}
	if err := s.cfg.ParamCache.Put(key, params); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache estimated parameters")
	}
	return params, panel.Rows, nil
}

type simulateRequest struct {
	Market marketInput `json:"market"`
	simulation.Request
}

func (s *Server) handleSimulationRun(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	params, panel, err := s.resolveParams(req.Market, req.Method == simulation.MethodHistorical)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.cfg.SimEngine.Run(params, panel, req.Request)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulationCompare(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	params, panel, err := s.resolveParams(req.Market, req.Method == simulation.MethodHistorical)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	cmp, err := s.cfg.SimEngine.Compare(params, panel, req.Request)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cmp)
}

type optimizeRequest struct {
	Tickers         []string    `json:"tickers"`
	ExpectedReturns []float64   `json:"expected_returns"`
	Volatilities    []float64   `json:"volatilities"`
	Correlation     [][]float64 `json:"correlation,omitempty"`
	Objective       string      `json:"objective"`
	RiskFreeRate    float64     `json:"risk_free_rate"`
}

func (s *Server) handleOptimizationRun(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var corr *correlation.Matrix
	if len(req.Correlation) > 0 {
		built, err := correlation.NewMatrix(req.Tickers, req.Correlation)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
		corr = built
	}

	objective := optimization.Objective(req.Objective)
	if objective == "" {
		objective = optimization.ObjectiveMaxSharpe
	}

	result, err := s.cfg.Optimizer.Optimize(optimization.Request{
		Tickers:         req.Tickers,
		ExpectedReturns: req.ExpectedReturns,
		Volatilities:    req.Volatilities,
		Correlation:     corr,
		Objective:       objective,
		RiskFreeRate:    req.RiskFreeRate,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	// Non-convergence is a 200 with success=false; the caller decides.
	s.respondJSON(w, http.StatusOK, result)
}

type hedgingRequest struct {
	Current  map[string]float64 `json:"current_weights"`
	Target   map[string]float64 `json:"target_weights"`
	Notional float64            `json:"notional"`
}

func (s *Server) handleHedgingPlan(w http.ResponseWriter, r *http.Request) {
	var req hedgingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	plan, err := s.cfg.HedgePlanner.BuildPlan(req.Current, req.Target, req.Notional)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleHistoryTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.cfg.PriceRepo.Tickers()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"tickers": tickers})
}

func (s *Server) handleHistoryIngest(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	report, err := s.cfg.Ingestor.Ingest(ticker, r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.log.Warn().Err(err).Int("status", status).Msg("request failed")
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
