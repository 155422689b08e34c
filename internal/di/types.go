// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/karvelas/lodestar/internal/database"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/brokers"
	"github.com/karvelas/lodestar/internal/modules/history"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
	"github.com/karvelas/lodestar/internal/modules/pricing"
	"github.com/karvelas/lodestar/internal/modules/scoring"
	"github.com/karvelas/lodestar/internal/modules/settings"
	"github.com/karvelas/lodestar/internal/modules/strategies"
	"github.com/karvelas/lodestar/internal/modules/trading"
	"github.com/karvelas/lodestar/internal/modules/universe"
	"github.com/karvelas/lodestar/internal/reliability"
	"github.com/karvelas/lodestar/internal/scheduler"
)

// Container holds every shared dependency, built once at startup.
type Container struct {
	// Databases
	UniverseDB *database.DB
	ConfigDB   *database.DB
	LedgerDB   *database.DB
	HistoryDB  *database.DB
	CacheDB    *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	AssetRepo      *universe.AssetRepository
	SnapshotRepo   *universe.SnapshotRepository
	PriceRepo      *pricing.PriceRepository
	StrategiesRepo *strategies.Repository
	SettingsRepo   *settings.Repository
	ScoreRepo      *scoring.ScoreRepository
	RankingRepo    *scoring.RankingRepository
	BrokerProfiles *brokers.ProfileRepository
	PortfolioRepo  *portfolio.PortfolioRepository
	PositionRepo   *portfolio.PositionRepository
	CashFlowRepo   *portfolio.CashFlowRepository
	TradeRepo      *trading.TradeRepository
	HistoryStore   *history.HistoryDB
	ValuationRepo  *history.ValuationRepository

	// Services
	SettingsService   *settings.Service
	StrategiesService *strategies.Service
	UniverseService   *universe.Service
	PricingService    *pricing.Service
	ScoringService    *scoring.Service
	Accountant        *portfolio.Accountant
	PortfolioService  *portfolio.Service
	TradeExecutor     *trading.Executor
	TradingService    *trading.Service
	BackupService     *reliability.BackupService

	// Scheduling
	Scheduler *scheduler.Scheduler
	JobRuns   *scheduler.JobRunRecorder
}

// Databases returns every database, in dependency order.
func (c *Container) Databases() []*database.DB {
	return []*database.DB{c.UniverseDB, c.ConfigDB, c.LedgerDB, c.HistoryDB, c.CacheDB}
}

// Close shuts the databases down in reverse open order.
func (c *Container) Close() {
	dbs := c.Databases()
	for i := len(dbs) - 1; i >= 0; i-- {
		if dbs[i] != nil {
			dbs[i].Close()
		}
	}
}
