package scenarios

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/stresslab/internal/modules/market"
)

// Repository is the sqlite store for scenarios and their run results.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a scenario repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "scenarios").Logger(),
	}
}

// InitSchema creates the scenario tables if missing.
func (r *Repository) InitSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scenarios (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			description TEXT,
			category    TEXT,
			parameters  TEXT NOT NULL,
			tags        TEXT,
			predefined  INTEGER NOT NULL DEFAULT 0,
			version     INTEGER NOT NULL DEFAULT 1,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scenarios_category ON scenarios(category)`,
		`CREATE TABLE IF NOT EXISTS scenario_results (
			id                TEXT PRIMARY KEY,
			scenario_id       TEXT NOT NULL,
			scenario_name     TEXT NOT NULL,
			method            TEXT,
			num_simulations   INTEGER,
			num_days          INTEGER,
			tickers           TEXT,
			statistics        TEXT,
			var_metrics       TEXT,
			run_at            TEXT NOT NULL,
			execution_seconds REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scenario_results_scenario ON scenario_results(scenario_id, run_at)`,
	}
	for _, q := range queries {
		if _, err := r.db.Exec(q); err != nil {
			return fmt.Errorf("failed to create scenario schema: %w", err)
		}
	}
	return nil
}

// Create stores a new scenario. A missing ID gets a fresh uuid; name
// collisions surface as errors from the unique constraint.
func (r *Repository) Create(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	params, err := json.Marshal(s.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode scenario parameters: %w", err)
	}
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode scenario tags: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO scenarios (id, name, description, category, parameters, tags, predefined, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.Description, s.Category, string(params), string(tags),
		boolToInt(s.Predefined), s.Version, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert scenario %s: %w", s.Name, err)
	}

	r.log.Info().Str("id", s.ID).Str("name", s.Name).Msg("scenario created")
	return nil
}

// Get returns a scenario by id, or nil when absent.
func (r *Repository) Get(id string) (*Scenario, error) {
	return r.queryOne(`SELECT id, name, description, category, parameters, tags, predefined, version, created_at, updated_at
		FROM scenarios WHERE id = ?`, id)
}

// GetByName returns a scenario by its unique name, or nil when absent.
func (r *Repository) GetByName(name string) (*Scenario, error) {
	return r.queryOne(`SELECT id, name, description, category, parameters, tags, predefined, version, created_at, updated_at
		FROM scenarios WHERE name = ?`, name)
}

// List returns scenarios, optionally filtered by category, newest first.
func (r *Repository) List(category string) ([]Scenario, error) {
	query := `SELECT id, name, description, category, parameters, tags, predefined, version, created_at, updated_at
		FROM scenarios`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, name ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update rewrites a scenario's mutable fields and bumps its version.
func (r *Repository) Update(s *Scenario) error {
	if s.ID == "" {
		return fmt.Errorf("scenario id is required")
	}
	params, err := json.Marshal(s.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode scenario parameters: %w", err)
	}
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode scenario tags: %w", err)
	}

	res, err := r.db.Exec(`
		UPDATE scenarios
		SET name = ?, description = ?, category = ?, parameters = ?, tags = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ?
	`, s.Name, s.Description, s.Category, string(params), string(tags),
		time.Now().UTC().Format(time.RFC3339), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update scenario %s: %w", s.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("scenario %s not found", s.ID)
	}
	return nil
}

// Delete removes a scenario and its stored results.
func (r *Repository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("scenario %s not found", id)
	}
	if _, err := r.db.Exec(`DELETE FROM scenario_results WHERE scenario_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete results for scenario %s: %w", id, err)
	}
	return nil
}

// LoadPredefined inserts every built-in scenario that is not already stored
// and returns how many were added.
func (r *Repository) LoadPredefined() (int, error) {
	added := 0
	for _, s := range Predefined() {
		existing, err := r.GetByName(s.Name)
		if err != nil {
			return added, err
		}
		if existing != nil {
			continue
		}
		scenario := s
		if err := r.Create(&scenario); err != nil {
			return added, err
		}
		added++
	}
	r.log.Info().Int("added", added).Msg("predefined scenarios loaded")
	return added, nil
}

// SaveResult persists one run record.
func (r *Repository) SaveResult(rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RunAt.IsZero() {
		rec.RunAt = time.Now().UTC()
	}

	tickers, err := json.Marshal(rec.Tickers)
	if err != nil {
		return fmt.Errorf("failed to encode result tickers: %w", err)
	}
	stats, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode result statistics: %w", err)
	}
	risk, err := json.Marshal(rec.Risk)
	if err != nil {
		return fmt.Errorf("failed to encode result var metrics: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO scenario_results (id, scenario_id, scenario_name, method, num_simulations, num_days,
			tickers, statistics, var_metrics, run_at, execution_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ScenarioID, rec.ScenarioName, rec.Method, rec.Paths, rec.Days,
		string(tickers), string(stats), string(risk),
		rec.RunAt.Format(time.RFC3339), rec.ExecutionSeconds)
	if err != nil {
		return fmt.Errorf("failed to insert scenario result: %w", err)
	}
	return nil
}

// Results returns stored run records for a scenario, newest first.
func (r *Repository) Results(scenarioID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, scenario_id, scenario_name, method, num_simulations, num_days,
		       tickers, statistics, var_metrics, run_at, execution_seconds
		FROM scenario_results
		WHERE scenario_id = ?
		ORDER BY run_at DESC
		LIMIT ?
	`, scenarioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario results: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var tickers, stats, risk, runAt string
		if err := rows.Scan(&rec.ID, &rec.ScenarioID, &rec.ScenarioName, &rec.Method,
			&rec.Paths, &rec.Days, &tickers, &stats, &risk, &runAt, &rec.ExecutionSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan scenario result: %w", err)
		}
		if err := json.Unmarshal([]byte(tickers), &rec.Tickers); err != nil {
			return nil, fmt.Errorf("failed to decode result tickers: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &rec.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode result statistics: %w", err)
		}
		if err := json.Unmarshal([]byte(risk), &rec.Risk); err != nil {
			return nil, fmt.Errorf("failed to decode result var metrics: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, runAt); err == nil {
			rec.RunAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) queryOne(query string, arg any) (*Scenario, error) {
	row := r.db.QueryRow(query, arg)
	s, err := scanScenario(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (*Scenario, error) {
	var s Scenario
	var params, tags, createdAt, updatedAt string
	var predefined int
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &params, &tags,
		&predefined, &s.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenario: %w", err)
	}

	s.Parameters = market.Shock{}
	if err := json.Unmarshal([]byte(params), &s.Parameters); err != nil {
		return nil, fmt.Errorf("failed to decode scenario parameters: %w", err)
	}
	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode scenario tags: %w", err)
		}
	}
	s.Predefined = predefined != 0
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		s.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		s.UpdatedAt = ts
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
