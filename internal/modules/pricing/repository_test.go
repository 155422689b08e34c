package pricing

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
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
		CREATE TABLE latest_prices (
			symbol     TEXT PRIMARY KEY,
			mid        TEXT NOT NULL,
			currency   TEXT NOT NULL DEFAULT 'USD',
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestPriceRepository_UpsertAndGet(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t), testLogger())

	err := repo.Upsert(domain.Price{
		Symbol:   "aapl",
		Mid:      decimal.RequireFromString("187.23"),
		Currency: "USD",
	})
	require.NoError(t, err)

	got, err := repo.Get("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "187.23", got.Mid.String())
	assert.Equal(t, "USD", got.Currency)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestPriceRepository_GetUnknownSymbol(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t), testLogger())

	got, err := repo.Get("NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPriceRepository_UpsertRejectsNonPositive(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t), testLogger())

	err := repo.Upsert(domain.Price{Symbol: "AAPL", Mid: decimal.Zero})
	assert.Error(t, err)

	err = repo.Upsert(domain.Price{Symbol: "AAPL", Mid: decimal.RequireFromString("-1")})
	assert.Error(t, err)
}

func TestPriceRepository_UpsertBatchSkipsInvalid(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t), testLogger())

	written, err := repo.UpsertBatch([]domain.Price{
		{Symbol: "AAPL", Mid: decimal.RequireFromString("187.23"), Currency: "USD"},
		{Symbol: "", Mid: decimal.RequireFromString("10"), Currency: "USD"},
		{Symbol: "MSFT", Mid: decimal.Zero, Currency: "USD"},
		{Symbol: "GOOG", Mid: decimal.RequireFromString("141.80"), Currency: "USD"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "AAPL")
	assert.Contains(t, all, "GOOG")
}

func TestPriceRepository_UpsertReplacesExisting(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t), testLogger())

	first := domain.Price{
		Symbol:    "AAPL",
		Mid:       decimal.RequireFromString("185.00"),
		Currency:  "USD",
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Upsert(first))

	second := domain.Price{
		Symbol:   "AAPL",
		Mid:      decimal.RequireFromString("187.23"),
		Currency: "USD",
	}
	require.NoError(t, repo.Upsert(second))

	got, err := repo.Get("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "187.23", got.Mid.String())
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))
}

func TestPriceRepository_Delete(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t), testLogger())

	require.NoError(t, repo.Upsert(domain.Price{
		Symbol: "AAPL", Mid: decimal.RequireFromString("187.23"), Currency: "USD",
	}))
	require.NoError(t, repo.Delete("AAPL"))

	got, err := repo.Get("AAPL")
	require.NoError(t, err)
	assert.Nil(t, got)
}
