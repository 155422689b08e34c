package portfolio

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

func setupLedgerDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// each new :memory: conn is a separate empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE portfolios (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			base_currency TEXT NOT NULL DEFAULT 'USD',
			cash          TEXT NOT NULL DEFAULT '0',
			created_at    INTEGER NOT NULL
		);
		CREATE TABLE cash_flows (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id TEXT NOT NULL,
			type         TEXT NOT NULL,
			amount       TEXT NOT NULL,
			comment      TEXT NOT NULL DEFAULT '',
			occurred_at  INTEGER NOT NULL
		);
		CREATE TABLE positions (
			portfolio_id TEXT NOT NULL,
			symbol       TEXT NOT NULL,
			quantity     TEXT NOT NULL,
			avg_cost     TEXT NOT NULL,
			unit         TEXT NOT NULL DEFAULT 'SHARE',
			updated_at   INTEGER NOT NULL,
			PRIMARY KEY (portfolio_id, symbol)
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// fakePrices serves canned quotes; symbols absent from the map have no
// price at all.
type fakePrices struct {
	prices map[string]decimal.Decimal
	stale  map[string]bool
}

func (f *fakePrices) GetFreshPrice(symbol string) (*domain.Price, bool, error) {
	mid, ok := f.prices[symbol]
	if !ok {
		return nil, false, nil
	}
	return &domain.Price{Symbol: symbol, Mid: mid, Currency: "USD", UpdatedAt: time.Now()}, f.stale[symbol], nil
}

type fakeRealized struct{ pnl decimal.Decimal }

func (f *fakeRealized) RealizedPnL(string) (decimal.Decimal, error) { return f.pnl, nil }

func setupAccountant(t *testing.T, prices *fakePrices) (*Accountant, *PortfolioRepository, *PositionRepository, *CashFlowRepository, *sql.DB) {
	t.Helper()
	db := setupLedgerDB(t)
	log := testLogger()

	portfolios := NewPortfolioRepository(db, log)
	positions := NewPositionRepository(db, log)
	cashFlows := NewCashFlowRepository(db, log)
	acct := NewAccountant(portfolios, positions, cashFlows, prices, &fakeRealized{pnl: d("300")}, log)
	return acct, portfolios, positions, cashFlows, db
}

func insertPosition(t *testing.T, db *sql.DB, positions *PositionRepository, p domain.Position) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, positions.UpsertTx(tx, p))
	require.NoError(t, tx.Commit())
}

func TestAccountant_Valuation(t *testing.T) {
	prices := &fakePrices{
		prices: map[string]decimal.Decimal{"AAA": d("120"), "BBB": d("50")},
		stale:  map[string]bool{},
	}
	acct, portfolios, positions, cashFlows, db := setupAccountant(t, prices)

	p, err := portfolios.Create("Main", "USD")
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, portfolios.UpdateCashTx(tx, p.ID, d("1000")))
	require.NoError(t, cashFlows.AppendTx(tx, &domain.CashFlow{
		PortfolioID: p.ID, Type: domain.CashFlowDeposit, Amount: d("4000"), OccurredAt: time.Now(),
	}))
	require.NoError(t, tx.Commit())

	now := time.Now()
	insertPosition(t, db, positions, domain.Position{PortfolioID: p.ID, Symbol: "AAA", Quantity: d("20"), AvgCost: d("105"), Unit: domain.UnitShare, UpdatedAt: now})
	insertPosition(t, db, positions, domain.Position{PortfolioID: p.ID, Symbol: "BBB", Quantity: d("10"), AvgCost: d("60"), Unit: domain.UnitShare, UpdatedAt: now})

	v, err := acct.Valuation(p.ID)
	require.NoError(t, err)

	// AAA: 20x120=2400, BBB: 10x50=500.
	assert.True(t, v.MarketValue.Equal(d("2900")), "market %s", v.MarketValue)
	assert.True(t, v.TotalValue.Equal(d("3900")), "total %s", v.TotalValue)
	// AAA +300, BBB -100.
	assert.True(t, v.UnrealizedPnL.Equal(d("200")), "unrealized %s", v.UnrealizedPnL)
	assert.True(t, v.RealizedPnL.Equal(d("300")))
	assert.True(t, v.NetContributions.Equal(d("4000")))
	// (3900 - 4000) / 4000 x 100 = -2.5%.
	assert.True(t, v.ReturnPct.Equal(d("-2.5")), "return %s", v.ReturnPct)
	assert.False(t, v.Degraded)
	assert.Len(t, v.Positions, 2)
}

func TestAccountant_StalePriceDegrades(t *testing.T) {
	prices := &fakePrices{
		prices: map[string]decimal.Decimal{"AAA": d("120")},
		stale:  map[string]bool{"AAA": true},
	}
	acct, portfolios, positions, _, db := setupAccountant(t, prices)

	p, err := portfolios.Create("Main", "USD")
	require.NoError(t, err)
	insertPosition(t, db, positions, domain.Position{PortfolioID: p.ID, Symbol: "AAA", Quantity: d("10"), AvgCost: d("100"), Unit: domain.UnitShare, UpdatedAt: time.Now()})

	v, err := acct.Valuation(p.ID)
	require.NoError(t, err)

	assert.True(t, v.Degraded)
	require.Len(t, v.Positions, 1)
	assert.True(t, v.Positions[0].PriceStale)
	// Stale prices still mark the position.
	assert.True(t, v.Positions[0].MarketValue.Equal(d("1200")))
}

func TestAccountant_MissingPriceValuesAtCost(t *testing.T) {
	acct, portfolios, positions, _, db := setupAccountant(t, &fakePrices{prices: map[string]decimal.Decimal{}})

	p, err := portfolios.Create("Main", "USD")
	require.NoError(t, err)
	insertPosition(t, db, positions, domain.Position{PortfolioID: p.ID, Symbol: "ZZZ", Quantity: d("10"), AvgCost: d("100"), Unit: domain.UnitShare, UpdatedAt: time.Now()})

	v, err := acct.Valuation(p.ID)
	require.NoError(t, err)

	assert.True(t, v.Degraded)
	require.Len(t, v.Positions, 1)
	assert.True(t, v.Positions[0].PriceMissing)
	assert.True(t, v.Positions[0].MarketValue.Equal(d("1000")))
	assert.True(t, v.Positions[0].UnrealizedPnL.IsZero())
}

func TestAccountant_UnknownPortfolio(t *testing.T) {
	acct, _, _, _, _ := setupAccountant(t, &fakePrices{prices: map[string]decimal.Decimal{}})

	_, err := acct.Valuation("nope")
	require.Error(t, err)
}

func TestService_CreateValidation(t *testing.T) {
	db := setupLedgerDB(t)
	log := testLogger()
	portfolios := NewPortfolioRepository(db, log)
	svc := NewService(portfolios, NewPositionRepository(db, log), NewCashFlowRepository(db, log), nil, log)

	_, err := svc.Create("", "USD")
	require.Error(t, err)

	_, err = svc.Create("Main", "ZZZ")
	require.Error(t, err)

	p, err := svc.Create("Main", "")
	require.NoError(t, err)
	assert.Equal(t, "USD", p.BaseCurrency)
	assert.True(t, p.Cash.IsZero())

	loaded, err := svc.Get(p.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Main", loaded.Name)
}
