package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/stresslab/pkg/formulas"
)

// Ingestion thresholds.
const (
	// MaxMissingRatio is the tolerated share of unparseable or empty close
	// cells before a file is rejected outright.
	MaxMissingRatio = 0.10

	outlierBandPeriod = 20
	outlierBandDevs   = 4.0
)

// IngestReport summarizes one CSV ingestion.
type IngestReport struct {
	Ticker     string `json:"ticker"`
	Rows       int    `json:"rows"`
	Saved      int    `json:"saved"`
	Missing    int    `json:"missing"`
	Duplicates int    `json:"duplicates"`
	Outliers   int    `json:"outliers"`
}

// Ingestor parses, validates and stores CSV price files with columns
// date,close (header optional).
type Ingestor struct {
	repo *PriceRepository
	log  zerolog.Logger
}

// NewIngestor creates a CSV ingestor backed by the price repository.
func NewIngestor(repo *PriceRepository, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		repo: repo,
		log:  log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest reads one ticker's CSV, validates it and stores the clean rows.
// Validation failures reject the whole file; individual outliers against a
// rolling band are dropped and counted, not fatal.
func (ing *Ingestor) Ingest(ticker string, r io.Reader) (*IngestReport, error) {
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	report := &IngestReport{Ticker: ticker}
	seen := make(map[string]bool)
	var points []PricePoint

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv for %s: %w", ticker, err)
		}

		date := strings.TrimSpace(record[0])
		if report.Rows == 0 && strings.EqualFold(date, "date") {
			continue
		}
		report.Rows++

		closeStr := strings.TrimSpace(record[1])
		if closeStr == "" {
			report.Missing++
			continue
		}
		close, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			report.Missing++
			continue
		}
		if close <= 0 {
			return nil, fmt.Errorf("ticker %s: non-positive close %v on %s", ticker, close, date)
		}
		if seen[date] {
			report.Duplicates++
			continue
		}
		seen[date] = true
		points = append(points, PricePoint{Date: date, Close: close})
	}

	if report.Rows == 0 {
		return nil, fmt.Errorf("ticker %s: empty file", ticker)
	}
	if ratio := float64(report.Missing) / float64(report.Rows); ratio > MaxMissingRatio {
		return nil, fmt.Errorf("ticker %s: %.0f%% of close values missing, limit is %.0f%%",
			ticker, ratio*100, MaxMissingRatio*100)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("ticker %s: need at least 2 valid rows, got %d", ticker, len(points))
	}

	points = ing.dropOutliers(ticker, points, report)

	if err := ing.repo.SavePrices(ticker, points); err != nil {
		return nil, err
	}
	report.Saved = len(points)

	ing.log.Info().
		Str("ticker", ticker).
		Int("rows", report.Rows).
		Int("saved", report.Saved).
		Int("outliers", report.Outliers).
		Int("duplicates", report.Duplicates).
		Msg("csv ingested")
	return report, nil
}

// dropOutliers screens closes against a rolling band and removes points that
// fall outside it. Short series skip the screen entirely.
func (ing *Ingestor) dropOutliers(ticker string, points []PricePoint, report *IngestReport) []PricePoint {
	if len(points) <= outlierBandPeriod {
		return points
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	band := formulas.CalculateRollingBand(closes, outlierBandPeriod, outlierBandDevs)
	if band == nil {
		return points
	}

	flagged := make(map[int]bool)
	for _, idx := range band.OutsideBand(closes) {
		flagged[idx] = true
	}
	if len(flagged) == 0 {
		return points
	}

	kept := points[:0]
	for i, p := range points {
		if flagged[i] {
			report.Outliers++
			ing.log.Warn().Str("ticker", ticker).Str("date", p.Date).Float64("close", p.Close).
				Msg("outlier dropped")
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
