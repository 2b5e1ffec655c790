package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

func (s *Server) handleScenarioList(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.ScenarioRepo.List(r.URL.Query().Get("category"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"scenarios": list, "count": len(list)})
}

func (s *Server) handleScenarioCreate(w http.ResponseWriter, r *http.Request) {
	var scenario scenarios.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scenario); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if scenario.Name == "" {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("scenario name is required"))
		return
	}
	if scenario.Parameters.IsZero() {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("scenario parameters must include at least one shock"))
		return
	}

	if err := s.cfg.ScenarioRepo.Create(&scenario); err != nil {
		s.respondError(w, http.StatusConflict, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, scenario)
}

func (s *Server) handleScenarioGet(w http.ResponseWriter, r *http.Request) {
	scenario, err := s.cfg.ScenarioRepo.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if scenario == nil {
		s.respondError(w, http.StatusNotFound, fmt.Errorf("scenario not found"))
		return
	}
	s.respondJSON(w, http.StatusOK, scenario)
}

func (s *Server) handleScenarioUpdate(w http.ResponseWriter, r *http.Request) {
	var scenario scenarios.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scenario); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	scenario.ID = chi.URLParam(r, "id")

	if err := s.cfg.ScenarioRepo.Update(&scenario); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	updated, err := s.cfg.ScenarioRepo.Get(scenario.ID)
	if err != nil || updated == nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Errorf("failed to reload scenario"))
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleScenarioDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ScenarioRepo.Delete(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleScenarioLoadPredefined(w http.ResponseWriter, r *http.Request) {
	added, err := s.cfg.ScenarioRepo.LoadPredefined()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"added": added})
}

type scenarioRunRequest struct {
	Market marketInput `json:"market"`
	simulation.Request
}

func (s *Server) handleScenarioRun(w http.ResponseWriter, r *http.Request) {
	var req scenarioRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	params, panel, err := s.resolveParams(req.Market, req.Method == simulation.MethodHistorical)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	record, err := s.cfg.ScenarioSvc.Run(chi.URLParam(r, "id"), params, panel, req.Request)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleScenarioResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	results, err := s.cfg.ScenarioRepo.Results(chi.URLParam(r, "id"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

type generateAIRequest struct {
	Prompt          string   `json:"prompt"`
	AvailableAssets []string `json:"available_assets,omitempty"`
	Save            bool     `json:"save,omitempty"`
}

func (s *Server) handleScenarioGenerateAI(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AIClient == nil || !s.cfg.AIClient.Enabled() {
		s.respondError(w, http.StatusServiceUnavailable, fmt.Errorf("AI scenario generation is not configured"))
		return
	}

	var req generateAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("prompt is required"))
		return
	}

	generated, err := s.cfg.AIClient.Generate(r.Context(), req.Prompt, req.AvailableAssets)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}

	scenario := scenarios.Scenario{
		Name:        generated.Name,
		Description: generated.Description,
		Category:    generated.Category,
		Parameters:  generated.Parameters,
		Tags:        generated.Tags,
	}
	if req.Save {
		if err := s.cfg.ScenarioRepo.Create(&scenario); err != nil {
			s.respondError(w, http.StatusConflict, err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, scenario)
}
