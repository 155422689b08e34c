package di

import (
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/modules/brokers"
	"github.com/karvelas/lodestar/internal/modules/history"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
	"github.com/karvelas/lodestar/internal/modules/pricing"
	"github.com/karvelas/lodestar/internal/modules/scoring"
	"github.com/karvelas/lodestar/internal/modules/settings"
	"github.com/karvelas/lodestar/internal/modules/strategies"
	"github.com/karvelas/lodestar/internal/modules/trading"
	"github.com/karvelas/lodestar/internal/modules/universe"
)

// InitializeRepositories wires every repository to its database.
func InitializeRepositories(c *Container, log zerolog.Logger) {
	// universe.db
	c.AssetRepo = universe.NewAssetRepository(c.UniverseDB.Conn(), log)
	c.SnapshotRepo = universe.NewSnapshotRepository(c.UniverseDB.Conn(), log)
	c.PriceRepo = pricing.NewPriceRepository(c.UniverseDB.Conn(), log)
	c.ScoreRepo = scoring.NewScoreRepository(c.UniverseDB.Conn(), log)

	// config.db
	c.StrategiesRepo = strategies.NewRepository(c.ConfigDB.Conn(), log)
	c.SettingsRepo = settings.NewRepository(c.ConfigDB.Conn(), log)
	c.BrokerProfiles = brokers.NewProfileRepository(c.ConfigDB.Conn(), log)

	// ledger.db
	c.PortfolioRepo = portfolio.NewPortfolioRepository(c.LedgerDB.Conn(), log)
	c.PositionRepo = portfolio.NewPositionRepository(c.LedgerDB.Conn(), log)
	c.CashFlowRepo = portfolio.NewCashFlowRepository(c.LedgerDB.Conn(), log)
	c.TradeRepo = trading.NewTradeRepository(c.LedgerDB.Conn(), log)

	// history.db
	c.HistoryStore = history.NewHistoryDB(c.HistoryDB.Conn(), log)
	c.ValuationRepo = history.NewValuationRepository(c.HistoryDB.Conn(), log)

	// cache.db
	c.RankingRepo = scoring.NewRankingRepository(c.CacheDB.Conn(), log)
}
