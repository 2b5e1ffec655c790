// Package history stores daily close prices and assembles aligned return
// panels for the simulators and the parameter estimator.
package history

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// PricePoint is one daily close observation. Dates are ISO strings
// (YYYY-MM-DD) so sqlite lexical ordering matches chronological ordering.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// PriceRepository provides access to the prices table.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a price repository.
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repository", "prices").Logger(),
	}
}

// InitSchema creates the prices table if missing.
func (r *PriceRepository) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS prices (
			ticker TEXT NOT NULL,
			date   TEXT NOT NULL,
			close  REAL NOT NULL,
			PRIMARY KEY (ticker, date)
		)
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create prices table: %w", err)
	}
	return nil
}

// SavePrices upserts one ticker's observations in a single transaction.
func (r *PriceRepository) SavePrices(ticker string, points []PricePoint) error {
	if ticker == "" {
		return fmt.Errorf("empty ticker")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO prices (ticker, date, close) VALUES (?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(ticker, p.Date, p.Close); err != nil {
			return fmt.Errorf("failed to upsert %s %s: %w", ticker, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}

	r.log.Debug().Str("ticker", ticker).Int("rows", len(points)).Msg("prices saved")
	return nil
}

// GetPrices returns one ticker's observations ordered by date. Empty bounds
// mean unbounded.
func (r *PriceRepository) GetPrices(ticker, from, to string) ([]PricePoint, error) {
	query := `SELECT date, close FROM prices WHERE ticker = ?`
	args := []any{ticker}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return points, nil
}

// LatestClose returns the most recent close for a ticker.
func (r *PriceRepository) LatestClose(ticker string) (float64, error) {
	var close float64
	err := r.db.QueryRow(
		`SELECT close FROM prices WHERE ticker = ? ORDER BY date DESC LIMIT 1`, ticker,
	).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no prices stored for %s", ticker)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query latest close for %s: %w", ticker, err)
	}
	return close, nil
}

// Tickers lists all tickers with stored prices.
func (r *PriceRepository) Tickers() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT ticker FROM prices ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}
