package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stresslab/internal/database"
)

func testRepo(t *testing.T) *PriceRepository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:history_%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewPriceRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.InitSchema())
	return repo
}

func TestSaveAndGetPrices(t *testing.T) {
	repo := testRepo(t)

	points := []PricePoint{
		{Date: "2024-01-02", Close: 100},
		{Date: "2024-01-03", Close: 101},
		{Date: "2024-01-04", Close: 99.5},
	}
	require.NoError(t, repo.SavePrices("SPY", points))

	got, err := repo.GetPrices("SPY", "", "")
	require.NoError(t, err)
	assert.Equal(t, points, got)

	ranged, err := repo.GetPrices("SPY", "2024-01-03", "2024-01-04")
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	latest, err := repo.LatestClose("SPY")
	require.NoError(t, err)
	assert.Equal(t, 99.5, latest)
}

func TestSavePricesUpserts(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.SavePrices("SPY", []PricePoint{{Date: "2024-01-02", Close: 100}}))
	require.NoError(t, repo.SavePrices("SPY", []PricePoint{{Date: "2024-01-02", Close: 105}}))

	got, err := repo.GetPrices("SPY", "", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 105.0, got[0].Close)
}

func TestLatestCloseMissingTicker(t *testing.T) {
	repo := testRepo(t)
	_, err := repo.LatestClose("NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no prices stored")
}

func TestBuildPanelAlignsAndDropsIncompleteDates(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.SavePrices("AAA", []PricePoint{
		{Date: "2024-01-02", Close: 100},
		{Date: "2024-01-03", Close: 102},
		{Date: "2024-01-04", Close: 101},
		{Date: "2024-01-05", Close: 103},
	}))
	// BBB is missing 2024-01-04: that date must be dropped from the panel.
	require.NoError(t, repo.SavePrices("BBB", []PricePoint{
		{Date: "2024-01-02", Close: 50},
		{Date: "2024-01-03", Close: 51},
		{Date: "2024-01-05", Close: 49},
	}))

	panel, err := BuildPanel(repo, []string{"AAA", "BBB"}, "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-03", "2024-01-05"}, panel.Dates)
	require.Len(t, panel.Rows, 2)
	assert.InDelta(t, 0.02, panel.Rows[0][0], 1e-12)
	assert.InDelta(t, 0.02, panel.Rows[0][1], 1e-12)
	assert.InDelta(t, 103.0/102.0-1, panel.Rows[1][0], 1e-12)

	assert.Equal(t, 103.0, panel.LatestClose["AAA"])
	assert.Equal(t, 49.0, panel.LatestClose["BBB"])

	series, err := panel.Returns("BBB")
	require.NoError(t, err)
	assert.Len(t, series, 2)

	byTicker := panel.ReturnsByTicker()
	assert.Len(t, byTicker["AAA"], 2)
}

func TestBuildPanelTooFewDates(t *testing.T) {
	repo := testRepo(t)
	require.NoError(t, repo.SavePrices("AAA", []PricePoint{
		{Date: "2024-01-02", Close: 100},
		{Date: "2024-01-03", Close: 101},
	}))

	_, err := BuildPanel(repo, []string{"AAA"}, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aligned dates")
}

func TestIngestValidCSV(t *testing.T) {
	repo := testRepo(t)
	ing := NewIngestor(repo, zerolog.Nop())

	var b strings.Builder
	b.WriteString("date,close\n")
	for d := 1; d <= 30; d++ {
		fmt.Fprintf(&b, "2024-01-%02d,%.2f\n", d, 100.0+float64(d)*0.5)
	}

	report, err := ing.Ingest("SPY", strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 30, report.Rows)
	assert.Equal(t, 30, report.Saved)
	assert.Equal(t, 0, report.Outliers)

	stored, err := repo.GetPrices("SPY", "", "")
	require.NoError(t, err)
	assert.Len(t, stored, 30)
}

func TestIngestRejectsNonPositiveClose(t *testing.T) {
	ing := NewIngestor(testRepo(t), zerolog.Nop())

	_, err := ing.Ingest("SPY", strings.NewReader("2024-01-02,100\n2024-01-03,-5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive close")
}

func TestIngestRejectsTooManyMissing(t *testing.T) {
	ing := NewIngestor(testRepo(t), zerolog.Nop())

	csv := "2024-01-02,100\n2024-01-03,\n2024-01-04,\n2024-01-05,101\n"
	_, err := ing.Ingest("SPY", strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestIngestCountsDuplicates(t *testing.T) {
	repo := testRepo(t)
	ing := NewIngestor(repo, zerolog.Nop())

	report, err := ing.Ingest("SPY", strings.NewReader("2024-01-02,100\n2024-01-02,101\n2024-01-03,102\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Saved)
}

func TestIngestDropsOutliers(t *testing.T) {
	repo := testRepo(t)
	ing := NewIngestor(repo, zerolog.Nop())

	var b strings.Builder
	for d := 1; d <= 60; d++ {
		close := 100.0 + float64(d%5)
		if d == 45 {
			close = 500 // fat-finger spike
		}
		fmt.Fprintf(&b, "2024-%02d-%02d,%.2f\n", 1+(d-1)/28, 1+(d-1)%28, close)
	}

	report, err := ing.Ingest("SPY", strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Outliers)
	assert.Equal(t, 59, report.Saved)
}
