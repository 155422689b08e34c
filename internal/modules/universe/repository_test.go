package universe

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/karvelas/lodestar/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// each new :memory: conn is a separate empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE assets (
			symbol     TEXT PRIMARY KEY,
			exchange   TEXT NOT NULL DEFAULT '',
			class      TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE metric_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT NOT NULL,
			as_of          INTEGER NOT NULL,
			pe             REAL,
			peg            REAL,
			dividend_yield REAL,
			revenue_growth REAL,
			fcf_growth     REAL,
			debt_to_equity REAL,
			momentum_3m    REAL,
			rsi_14         REAL,
			volatility_90d REAL,
			created_at     INTEGER NOT NULL,
			UNIQUE (symbol, as_of)
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func f(v float64) *float64 { return &v }

func TestAssetRepository_UpsertAndGet(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t), testLogger())

	err := repo.Upsert(domain.Asset{
		Symbol:   "aapl",
		Exchange: "NASDAQ",
		Class:    domain.AssetClassStock,
		Name:     "Apple Inc.",
	})
	require.NoError(t, err)

	got, err := repo.Get("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, domain.AssetClassStock, got.Class)
	assert.Equal(t, "Apple Inc.", got.Name)
}

func TestAssetRepository_UpsertRejectsInvalid(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t), testLogger())

	err := repo.Upsert(domain.Asset{Symbol: "", Class: domain.AssetClassStock})
	assert.Error(t, err)

	err = repo.Upsert(domain.Asset{Symbol: "AAPL", Class: "BOND"})
	assert.Error(t, err)
}

func TestAssetRepository_UpsertReplacesDescriptiveFields(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t), testLogger())

	require.NoError(t, repo.Upsert(domain.Asset{
		Symbol: "GLD", Class: domain.AssetClassCommodity, Name: "Gold",
	}))
	require.NoError(t, repo.Upsert(domain.Asset{
		Symbol: "GLD", Class: domain.AssetClassETF, Name: "SPDR Gold Shares",
	}))

	got, err := repo.Get("GLD")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetClassETF, got.Class)
	assert.Equal(t, "SPDR Gold Shares", got.Name)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAssetRepository_GetAllSymbolsSorted(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t), testLogger())

	for _, sym := range []string{"MSFT", "AAPL", "GOOG"} {
		require.NoError(t, repo.Upsert(domain.Asset{Symbol: sym, Class: domain.AssetClassStock}))
	}

	symbols, err := repo.GetAllSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, symbols)
}

func TestSnapshotRepository_SaveBatchAndGetLatest(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t), testLogger())

	day1 := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	written, err := repo.SaveBatch([]domain.MetricSnapshot{
		{Symbol: "AAPL", AsOf: day1, PE: f(27.5), DividendYield: f(0.55)},
		{Symbol: "AAPL", AsOf: day2, PE: f(28.1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	latest, err := repo.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, day2, latest.AsOf)
	require.NotNil(t, latest.PE)
	assert.Equal(t, 28.1, *latest.PE)

	// Missing fields stay nil, not zero.
	assert.Nil(t, latest.DividendYield)
	assert.Nil(t, latest.RSI14)
}

func TestSnapshotRepository_ResupplySameDayReplaces(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t), testLogger())

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	_, err := repo.SaveBatch([]domain.MetricSnapshot{{Symbol: "AAPL", AsOf: day, PE: f(28.1)}})
	require.NoError(t, err)
	_, err = repo.SaveBatch([]domain.MetricSnapshot{{Symbol: "AAPL", AsOf: day, PE: f(29.0)}})
	require.NoError(t, err)

	history, err := repo.GetHistory("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 29.0, *history[0].PE)
}

func TestSnapshotRepository_IntradayTimestampsCollapseToDay(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t), testLogger())

	morning := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 20, 18, 45, 0, 0, time.UTC)

	_, err := repo.SaveBatch([]domain.MetricSnapshot{{Symbol: "AAPL", AsOf: morning, PE: f(28.1)}})
	require.NoError(t, err)
	_, err = repo.SaveBatch([]domain.MetricSnapshot{{Symbol: "AAPL", AsOf: evening, PE: f(28.4)}})
	require.NoError(t, err)

	history, err := repo.GetHistory("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 28.4, *history[0].PE)
}

func TestSnapshotRepository_GetLatestForAll(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t), testLogger())

	day1 := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	_, err := repo.SaveBatch([]domain.MetricSnapshot{
		{Symbol: "AAPL", AsOf: day1, PE: f(27.5)},
		{Symbol: "AAPL", AsOf: day2, PE: f(28.1)},
		{Symbol: "MSFT", AsOf: day1, PE: f(34.2)},
	})
	require.NoError(t, err)

	latest, err := repo.GetLatestForAll()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, 28.1, *latest["AAPL"].PE)
	assert.Equal(t, 34.2, *latest["MSFT"].PE)
}

func TestSnapshotRepository_GetLatestUnknownSymbol(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t), testLogger())

	got, err := repo.GetLatest("NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}
