package scenarios

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stresslab/internal/database"
	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/internal/modules/market"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:scenarios_%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileResults,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.InitSchema())
	return repo
}

func TestCreateGetUpdateDelete(t *testing.T) {
	repo := testRepo(t)

	s := &Scenario{
		Name:        "Custom Crash",
		Description: "user scenario",
		Category:    "market_crash",
		Parameters: market.Shock{
			ReturnShock:           map[string]float64{"SPY": -0.25},
			VolatilityMultiplier:  map[string]float64{"SPY": 2.0},
			CorrelationMultiplier: corrMult(1.4),
		},
		Tags: []string{"custom"},
	}
	require.NoError(t, repo.Create(s))
	require.NotEmpty(t, s.ID)

	got, err := repo.Get(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Custom Crash", got.Name)
	assert.Equal(t, -0.25, got.Parameters.ReturnShock["SPY"])
	require.NotNil(t, got.Parameters.CorrelationMultiplier)
	assert.Equal(t, 1.4, *got.Parameters.CorrelationMultiplier)
	assert.Equal(t, []string{"custom"}, got.Tags)
	assert.Equal(t, 1, got.Version)

	got.Description = "edited"
	require.NoError(t, repo.Update(got))
	again, err := repo.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", again.Description)
	assert.Equal(t, 2, again.Version)

	require.NoError(t, repo.Delete(s.ID))
	gone, err := repo.Get(s.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.Error(t, repo.Delete(s.ID))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.Create(&Scenario{Name: "Dup"}))
	err := repo.Create(&Scenario{Name: "Dup"})
	assert.Error(t, err)
}

func TestListFiltersByCategory(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.Create(&Scenario{Name: "A", Category: "market_crash"}))
	require.NoError(t, repo.Create(&Scenario{Name: "B", Category: "rate_shock"}))

	all, err := repo.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	crashes, err := repo.List("market_crash")
	require.NoError(t, err)
	require.Len(t, crashes, 1)
	assert.Equal(t, "A", crashes[0].Name)
}

func TestLoadPredefinedIsIdempotent(t *testing.T) {
	repo := testRepo(t)

	added, err := repo.LoadPredefined()
	require.NoError(t, err)
	assert.Equal(t, 6, added)

	again, err := repo.LoadPredefined()
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	crisis, err := repo.GetByName("2008 Financial Crisis")
	require.NoError(t, err)
	require.NotNil(t, crisis)
	assert.True(t, crisis.Predefined)
	assert.Equal(t, -0.50, crisis.Parameters.ReturnShock["SPY"])
	require.NotNil(t, crisis.Parameters.CorrelationMultiplier)
	assert.Equal(t, 1.5, *crisis.Parameters.CorrelationMultiplier)
}

func TestPredefinedCatalog(t *testing.T) {
	catalog := Predefined()
	require.Len(t, catalog, 6)

	names := make(map[string]bool)
	for _, s := range catalog {
		assert.True(t, s.Predefined)
		assert.NotEmpty(t, s.Category)
		assert.NotNil(t, s.Parameters.CorrelationMultiplier)
		names[s.Name] = true
	}
	assert.True(t, names["COVID-19 Market Crash"])
	assert.True(t, names["Volatility Spike"])
}

func testParams(t *testing.T) *market.ParameterSet {
	t.Helper()
	corr, err := correlation.NewMatrix([]string{"SPY", "TLT"}, [][]float64{{1, 0.4}, {0.4, 1}})
	require.NoError(t, err)
	params, err := market.NewParameterSet(
		[]string{"SPY", "TLT"},
		[]float64{450, 95},
		[]float64{0.07, 0.03},
		[]float64{0.18, 0.12},
		corr,
	)
	require.NoError(t, err)
	return params
}

func TestServiceRunPersistsResult(t *testing.T) {
	repo := testRepo(t)
	engine := simulation.NewEngine(correlation.NewEngine(zerolog.Nop()), zerolog.Nop())
	svc := NewService(repo, engine, zerolog.Nop())

	scenario := &Scenario{
		Name:     "Mild Selloff",
		Category: "market_crash",
		Parameters: market.Shock{
			ReturnShock: map[string]float64{"SPY": -0.15},
		},
	}
	require.NoError(t, repo.Create(scenario))

	seed := int64(42)
	rec, err := svc.Run(scenario.ID, testParams(t), nil, simulation.Request{
		Method: simulation.MethodMonteCarlo,
		Paths:  200, Days: 60,
		Seed:           &seed,
		UseCorrelation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mild Selloff", rec.ScenarioName)
	assert.Len(t, rec.Summary, 2)
	require.NotNil(t, rec.Risk)
	assert.Greater(t, rec.ExecutionSeconds, 0.0)

	stored, err := repo.Results(scenario.ID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.ID, stored[0].ID)
	assert.Equal(t, []string{"SPY", "TLT"}, stored[0].Tickers)
	assert.Len(t, stored[0].Summary, 2)
}

func TestServiceRunUnknownScenario(t *testing.T) {
	repo := testRepo(t)
	engine := simulation.NewEngine(correlation.NewEngine(zerolog.Nop()), zerolog.Nop())
	svc := NewService(repo, engine, zerolog.Nop())

	_, err := svc.Run("missing-id", testParams(t), nil, simulation.Request{Paths: 10, Days: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
