package calculations

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stresslab/internal/database"
	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/internal/modules/market"
)

func testCache(t *testing.T, ttl time.Duration) *ParamCache {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:cache_%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileCache,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := NewParamCache(db.Conn(), ttl, zerolog.Nop())
	require.NoError(t, cache.InitSchema())
	return cache
}

func sampleParams(t *testing.T) *market.ParameterSet {
	t.Helper()
	corr, err := correlation.NewMatrix([]string{"SPY", "TLT"}, [][]float64{{1, 0.7}, {0.7, 1}})
	require.NoError(t, err)
	params, err := market.NewParameterSet(
		[]string{"SPY", "TLT"},
		[]float64{150, 250},
		[]float64{0.08, 0.03},
		[]float64{0.25, 0.30},
		corr,
	)
	require.NoError(t, err)
	return params
}

func TestKeyIsOrderInsensitive(t *testing.T) {
	a := Key([]string{"SPY", "TLT"}, "2024-01-01", "2024-12-31")
	b := Key([]string{"TLT", "SPY"}, "2024-01-01", "2024-12-31")
	assert.Equal(t, a, b)

	c := Key([]string{"SPY", "TLT"}, "2024-01-02", "2024-12-31")
	assert.NotEqual(t, a, c)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := testCache(t, time.Hour)
	params := sampleParams(t)
	key := Key(params.Tickers(), "2024-01-01", "2024-12-31")

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got, "miss before put")

	require.NoError(t, cache.Put(key, params))

	got, err = cache.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, params.Tickers(), got.Tickers())
	assert.Equal(t, params.InitialPrices(), got.InitialPrices())
	assert.Equal(t, params.ExpectedReturns(), got.ExpectedReturns())
	assert.Equal(t, params.Volatilities(), got.Volatilities())
	assert.Equal(t, 0.7, got.Correlation().At(0, 1))
}

func TestCacheExpiry(t *testing.T) {
	cache := testCache(t, time.Hour)
	params := sampleParams(t)
	key := Key(params.Tickers(), "", "")

	require.NoError(t, cache.Put(key, params))

	// Advance the clock past the TTL.
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries are misses")
}

func TestCachePurge(t *testing.T) {
	cache := testCache(t, time.Hour)
	params := sampleParams(t)

	require.NoError(t, cache.Put(Key([]string{"SPY", "TLT"}, "", ""), params))
	require.NoError(t, cache.Put(Key([]string{"SPY", "TLT"}, "2024-01-01", ""), params))

	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	purged, err := cache.Purge()
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)
}

func TestCachePutOverwrites(t *testing.T) {
	cache := testCache(t, time.Hour)
	params := sampleParams(t)
	key := Key(params.Tickers(), "", "")

	require.NoError(t, cache.Put(key, params))

	shocked, err := params.ApplyShock(market.Shock{
		ReturnShock: map[string]float64{"SPY": -0.20},
	}, correlation.NewEngine(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, cache.Put(key, shocked))

	got, err := cache.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	drift, _ := got.ExpectedReturn("SPY")
	assert.InDelta(t, -0.12, drift, 1e-12)
}
