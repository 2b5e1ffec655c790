// Package calculations caches estimated market parameter sets so repeated
// simulations over the same universe and date range skip re-estimation.
package calculations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/internal/modules/market"
)

// DefaultTTL is how long a cached parameter set stays valid.
const DefaultTTL = 24 * time.Hour

// cachedParams is the msgpack payload stored per cache row.
type cachedParams struct {
	Tickers     []string    `msgpack:"tickers"`
	Prices      []float64   `msgpack:"prices"`
	Drifts      []float64   `msgpack:"drifts"`
	Vols        []float64   `msgpack:"vols"`
	Correlation [][]float64 `msgpack:"correlation"`
}

// ParamCache is a sqlite-backed TTL cache of parameter sets keyed by ticker
// universe and date range.
type ParamCache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger

	now func() time.Time
}

// NewParamCache creates a cache with the given TTL; zero means DefaultTTL.
func NewParamCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *ParamCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ParamCache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "param_cache").Logger(),
		now: time.Now,
	}
}

// InitSchema creates the cache table if missing.
func (c *ParamCache) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS param_cache (
			key        TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create param_cache table: %w", err)
	}
	return nil
}

// Key derives the cache key for a ticker universe and date range. Ticker
// order does not matter.
func Key(tickers []string, from, to string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",") + "|" + from + "|" + to))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached parameter set for the key, or nil if absent or
// expired. Expired rows are deleted on read.
func (c *ParamCache) Get(key string) (*market.ParameterSet, error) {
	var payload []byte
	var expiresAt int64
	err := c.db.QueryRow(
		`SELECT payload, expires_at FROM param_cache WHERE key = ?`, key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query param cache: %w", err)
	}

	if c.now().Unix() >= expiresAt {
		if _, err := c.db.Exec(`DELETE FROM param_cache WHERE key = ?`, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("failed to evict expired cache row")
		}
		return nil, nil
	}

	var cached cachedParams
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached parameters: %w", err)
	}

	corr, err := correlation.NewMatrix(cached.Tickers, cached.Correlation)
	if err != nil {
		return nil, fmt.Errorf("cached correlation invalid: %w", err)
	}
	params, err := market.NewParameterSet(cached.Tickers, cached.Prices, cached.Drifts, cached.Vols, corr)
	if err != nil {
		return nil, fmt.Errorf("cached parameters invalid: %w", err)
	}
	return params, nil
}

// Put stores a parameter set under the key with the cache TTL.
func (c *ParamCache) Put(key string, params *market.ParameterSet) error {
	payload, err := msgpack.Marshal(cachedParams{
		Tickers:     params.Tickers(),
		Prices:      params.InitialPrices(),
		Drifts:      params.ExpectedReturns(),
		Vols:        params.Volatilities(),
		Correlation: params.Correlation().Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	expiresAt := c.now().Add(c.ttl).Unix()
	_, err = c.db.Exec(`
		INSERT INTO param_cache (key, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`, key, payload, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cached parameters: %w", err)
	}
	return nil
}

// Purge deletes all expired rows and returns how many were removed.
func (c *ParamCache) Purge() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM param_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge param cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.log.Debug().Int64("rows", n).Msg("expired cache rows purged")
	}
	return n, nil
}
