package history

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// each new :memory: conn is a separate empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			symbol  TEXT NOT NULL,
			date    INTEGER NOT NULL,
			open    REAL,
			high    REAL,
			low     REAL,
			close   REAL NOT NULL,
			volume  INTEGER,
			PRIMARY KEY (symbol, date)
		);
		CREATE TABLE portfolio_valuations (
			portfolio_id   TEXT NOT NULL,
			date           INTEGER NOT NULL,
			cash           TEXT NOT NULL,
			market_value   TEXT NOT NULL,
			total_value    TEXT NOT NULL,
			unrealized_pnl TEXT NOT NULL DEFAULT '0',
			realized_pnl   TEXT NOT NULL DEFAULT '0',
			created_at     INTEGER NOT NULL,
			PRIMARY KEY (portfolio_id, date)
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestHistoryDB_AppendAndGetDailyPrices(t *testing.T) {
	db := setupTestDB(t)
	h := NewHistoryDB(db, testLogger())

	vol := int64(1000)
	prices := []DailyPrice{
		{Date: "2026-08-18", Open: 100, High: 102, Low: 99, Close: 101, Volume: &vol},
		{Date: "2026-08-19", Open: 101, High: 103, Low: 100, Close: 102},
		{Date: "2026-08-20", Open: 102, High: 104, Low: 101, Close: 103},
	}
	require.NoError(t, h.AppendDailyPrices("AAPL", prices))

	got, err := h.GetDailyPrices("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "2026-08-20", got[0].Date)
	assert.Equal(t, 103.0, got[0].Close)
	assert.Nil(t, got[0].Volume)
	assert.Equal(t, "2026-08-18", got[2].Date)
	require.NotNil(t, got[2].Volume)
	assert.Equal(t, int64(1000), *got[2].Volume)
}

func TestHistoryDB_AppendIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	h := NewHistoryDB(db, testLogger())

	prices := []DailyPrice{{Date: "2026-08-20", Close: 103}}
	require.NoError(t, h.AppendDailyPrices("AAPL", prices))

	prices[0].Close = 105
	require.NoError(t, h.AppendDailyPrices("AAPL", prices))

	count, err := h.CountForSymbol("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := h.GetDailyPrices("AAPL", 1)
	require.NoError(t, err)
	assert.Equal(t, 105.0, got[0].Close)
}

func TestHistoryDB_GetRecentClosesChronological(t *testing.T) {
	db := setupTestDB(t)
	h := NewHistoryDB(db, testLogger())

	require.NoError(t, h.AppendDailyPrices("MSFT", []DailyPrice{
		{Date: "2026-08-18", Close: 100},
		{Date: "2026-08-19", Close: 110},
		{Date: "2026-08-20", Close: 120},
		{Date: "2026-08-21", Close: 130},
	}))

	closes, err := h.GetRecentCloses("MSFT", 3)
	require.NoError(t, err)

	// Last 3 closes, oldest first.
	assert.Equal(t, []float64{110, 120, 130}, closes)
}

func TestHistoryDB_GetRecentClosesUnknownSymbol(t *testing.T) {
	db := setupTestDB(t)
	h := NewHistoryDB(db, testLogger())

	closes, err := h.GetRecentCloses("UNKNOWN", 10)
	require.NoError(t, err)
	assert.Empty(t, closes)
}

func TestHistoryDB_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	h := NewHistoryDB(db, testLogger())

	require.NoError(t, h.AppendDailyPrices("AAPL", []DailyPrice{
		{Date: "2020-01-02", Close: 75},
		{Date: "2026-08-20", Close: 103},
	}))

	cutoff := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := h.DeleteOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := h.CountForSymbol("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValuationRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewValuationRepository(db, testLogger())

	v := &PortfolioValuation{
		PortfolioID:   "p1",
		Date:          "2026-08-20",
		Cash:          decimal.RequireFromString("2500.50"),
		MarketValue:   decimal.RequireFromString("7499.50"),
		TotalValue:    decimal.RequireFromString("10000.00"),
		UnrealizedPnL: decimal.RequireFromString("499.50"),
		RealizedPnL:   decimal.RequireFromString("300"),
	}
	require.NoError(t, repo.Save(v))

	got, err := repo.GetRecent("p1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-08-20", got[0].Date)
	assert.True(t, got[0].TotalValue.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, got[0].Cash.Equal(decimal.RequireFromString("2500.50")))
}

func TestValuationRepository_SaveReplacesSameDay(t *testing.T) {
	db := setupTestDB(t)
	repo := NewValuationRepository(db, testLogger())

	v := &PortfolioValuation{
		PortfolioID: "p1",
		Date:        "2026-08-20",
		Cash:        decimal.NewFromInt(1000),
		MarketValue: decimal.Zero,
		TotalValue:  decimal.NewFromInt(1000),
	}
	require.NoError(t, repo.Save(v))

	v.TotalValue = decimal.NewFromInt(1200)
	v.MarketValue = decimal.NewFromInt(200)
	require.NoError(t, repo.Save(v))

	got, err := repo.GetRecent("p1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].TotalValue.Equal(decimal.NewFromInt(1200)))
}

func TestValuationRepository_GetRange(t *testing.T) {
	db := setupTestDB(t)
	repo := NewValuationRepository(db, testLogger())

	for _, date := range []string{"2026-08-18", "2026-08-19", "2026-08-20"} {
		require.NoError(t, repo.Save(&PortfolioValuation{
			PortfolioID: "p1",
			Date:        date,
			Cash:        decimal.NewFromInt(1000),
			MarketValue: decimal.Zero,
			TotalValue:  decimal.NewFromInt(1000),
		}))
	}

	got, err := repo.GetRange("p1", "2026-08-19", "2026-08-20")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-08-19", got[0].Date)
	assert.Equal(t, "2026-08-20", got[1].Date)
}
