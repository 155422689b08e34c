package scoring

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/settings"
	"github.com/karvelas/lodestar/internal/modules/strategies"
	"github.com/karvelas/lodestar/internal/modules/universe"
)

// serviceFixture wires the scoring service against in-memory databases
// with seeded default strategies and blends.
type serviceFixture struct {
	service  *Service
	universe *universe.Service
	rankings *RankingRepository
	bus      *events.Bus
}

func setupService(t *testing.T, workers int) *serviceFixture {
	t.Helper()

	open := func(schema string) *sql.DB {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		// each new :memory: conn is a separate empty database
		db.SetMaxOpenConns(1)
		t.Cleanup(func() { db.Close() })
		_, err = db.Exec(schema)
		require.NoError(t, err)
		return db
	}

	universeDB := open(`
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
		CREATE TABLE score_results (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			as_of       INTEGER NOT NULL,
			score       REAL NOT NULL,
			components  TEXT NOT NULL DEFAULT '{}',
			created_at  INTEGER NOT NULL,
			UNIQUE (symbol, strategy_id, as_of)
		);
	`)
	configDB := open(`
		CREATE TABLE strategies (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			version     INTEGER NOT NULL DEFAULT 1,
			description TEXT NOT NULL DEFAULT '',
			enabled     INTEGER NOT NULL DEFAULT 1,
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE strategy_factors (
			strategy_id TEXT NOT NULL,
			field       TEXT NOT NULL,
			weight      REAL NOT NULL,
			direction   TEXT NOT NULL,
			lower_bound REAL NOT NULL,
			upper_bound REAL NOT NULL,
			position    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (strategy_id, field)
		);
		CREATE TABLE blends (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			enabled     INTEGER NOT NULL DEFAULT 1,
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE blend_components (
			blend_id    TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			weight      REAL NOT NULL,
			position    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (blend_id, strategy_id)
		);
		CREATE TABLE settings (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			description TEXT,
			updated_at  INTEGER NOT NULL
		);
	`)
	cacheDB := open(`
		CREATE TABLE ranking_snapshots (
			blend_id   TEXT PRIMARY KEY,
			as_of      INTEGER NOT NULL,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)

	log := testLogger()
	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	strategyService := strategies.NewService(strategies.NewRepository(configDB, log), log)
	require.NoError(t, strategyService.LoadAll())

	settingsService := settings.NewService(settings.NewRepository(configDB, log), log)
	require.NoError(t, settingsService.EnsureDefaults())

	universeService := universe.NewService(
		universe.NewAssetRepository(universeDB, log),
		universe.NewSnapshotRepository(universeDB, log),
		nil,
		manager,
		log,
	)

	rankings := NewRankingRepository(cacheDB, log)
	svc := NewService(
		NewScoreRepository(universeDB, log),
		rankings,
		strategyService,
		universeService,
		settingsService,
		manager,
		workers,
		log,
	)

	return &serviceFixture{service: svc, universe: universeService, rankings: rankings, bus: bus}
}

// fullSnapshot populates every metric field so no strategy skips it.
func fullSnapshot(symbol string, asOf time.Time, pe float64) domain.MetricSnapshot {
	return domain.MetricSnapshot{
		Symbol:        symbol,
		AsOf:          asOf,
		PE:            f(pe),
		PEG:           f(1.2),
		DividendYield: f(2.5),
		RevenueGrowth: f(12),
		FCFGrowth:     f(9),
		DebtToEquity:  f(0.8),
		Momentum3M:    f(6),
		RSI14:         f(55),
		Volatility90D: f(22),
	}
}

func TestService_ScoreUniverse(t *testing.T) {
	fix := setupService(t, 4)
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	written, err := fix.universe.IngestSnapshots([]domain.MetricSnapshot{
		fullSnapshot("AAA", asOf, 12),
		fullSnapshot("BBB", asOf, 30),
		fullSnapshot("CCC", asOf, 45),
	})
	require.NoError(t, err)
	require.Equal(t, 3, written)

	summary, err := fix.service.ScoreUniverse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Assets)
	assert.Equal(t, 4, summary.Strategies)
	assert.Equal(t, 12, summary.Scored)
	assert.Empty(t, summary.Skipped)
	assert.Len(t, summary.Rankings, 3)

	// Every seeded blend has a complete ranking stored.
	for _, blendID := range summary.Rankings {
		snapshot, page, err := fix.service.GetRanking(blendID, 0, 0)
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Len(t, page, 3)
		assert.Equal(t, 1, page[0].Rank)
	}

	scores, err := fix.service.GetScores("AAA")
	require.NoError(t, err)
	assert.Len(t, scores, 4)
	for _, res := range scores {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 100.0)
	}
}

func TestService_ScoreUniverse_PartialSuccess(t *testing.T) {
	fix := setupService(t, 2)
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// SPARSE carries a single field; every strategy exceeds the default
	// missing-factor threshold and skips it, but FULL still scores.
	sparse := domain.MetricSnapshot{Symbol: "SPARSE", AsOf: asOf, PE: f(15)}
	written, err := fix.universe.IngestSnapshots([]domain.MetricSnapshot{
		fullSnapshot("FULL", asOf, 20),
		sparse,
	})
	require.NoError(t, err)
	require.Equal(t, 2, written)

	summary, err := fix.service.ScoreUniverse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Assets)
	assert.NotEmpty(t, summary.Skipped)
	for _, sk := range summary.Skipped {
		assert.Equal(t, "SPARSE", sk.Symbol)
		assert.NotEmpty(t, sk.Reason)
	}

	// Rankings contain only the scored asset.
	_, page, err := fix.service.GetRanking("balanced", 0, 0)
	require.NoError(t, err)
	for _, e := range page {
		assert.NotEqual(t, "SPARSE", e.Symbol)
	}
}

func TestService_ScoreUniverse_EmptyUniverse(t *testing.T) {
	fix := setupService(t, 1)

	_, err := fix.service.ScoreUniverse(context.Background())
	require.Error(t, err)
}

func TestService_ScoreUniverse_Idempotent(t *testing.T) {
	fix := setupService(t, 4)
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	_, err := fix.universe.IngestSnapshots([]domain.MetricSnapshot{
		fullSnapshot("AAA", asOf, 12),
		fullSnapshot("BBB", asOf, 30),
	})
	require.NoError(t, err)

	_, err = fix.service.ScoreUniverse(context.Background())
	require.NoError(t, err)
	first, err := fix.rankings.Payload("balanced")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Recomputing over unchanged inputs rewrites the identical payload.
	_, err = fix.service.ScoreUniverse(context.Background())
	require.NoError(t, err)
	second, err := fix.rankings.Payload("balanced")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestService_ScoreUniverse_CancelledContext(t *testing.T) {
	fix := setupService(t, 2)
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	_, err := fix.universe.IngestSnapshots([]domain.MetricSnapshot{
		fullSnapshot("AAA", asOf, 12),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fix.service.ScoreUniverse(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
