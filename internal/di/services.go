package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/config"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
	"github.com/karvelas/lodestar/internal/modules/pricing"
	"github.com/karvelas/lodestar/internal/modules/scoring"
	"github.com/karvelas/lodestar/internal/modules/settings"
	"github.com/karvelas/lodestar/internal/modules/strategies"
	"github.com/karvelas/lodestar/internal/modules/trading"
	"github.com/karvelas/lodestar/internal/modules/universe"
	"github.com/karvelas/lodestar/internal/reliability"
)

// InitializeServices builds the service layer on top of the
// repositories. Strategy definitions are loaded eagerly: a broken
// strategy config is a startup error, not a request-time surprise.
func InitializeServices(c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.EventBus = events.NewBus(log)
	c.EventManager = events.NewManager(c.EventBus, log)

	c.SettingsService = settings.NewService(c.SettingsRepo, log)
	if err := c.SettingsService.EnsureDefaults(); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}

	c.StrategiesService = strategies.NewService(c.StrategiesRepo, log)
	if err := c.StrategiesService.LoadAll(); err != nil {
		return fmt.Errorf("failed to load strategy definitions: %w", err)
	}

	if err := c.BrokerProfiles.SeedDefaults(); err != nil {
		return fmt.Errorf("failed to seed broker profiles: %w", err)
	}

	c.UniverseService = universe.NewService(c.AssetRepo, c.SnapshotRepo, c.HistoryStore, c.EventManager, log)
	c.PricingService = pricing.NewService(c.PriceRepo, c.SettingsService, c.EventManager, log)

	c.ScoringService = scoring.NewService(
		c.ScoreRepo,
		c.RankingRepo,
		c.StrategiesService,
		c.UniverseService,
		c.SettingsService,
		c.EventManager,
		cfg.EffectiveScoringWorkers(),
		log,
	)

	c.Accountant = portfolio.NewAccountant(
		c.PortfolioRepo,
		c.PositionRepo,
		c.CashFlowRepo,
		c.PricingService,
		c.TradeRepo,
		log,
	)
	c.PortfolioService = portfolio.NewService(c.PortfolioRepo, c.PositionRepo, c.CashFlowRepo, c.Accountant, log)

	c.TradeExecutor = trading.NewExecutor(
		c.LedgerDB.Conn(),
		c.PortfolioRepo,
		c.PositionRepo,
		c.TradeRepo,
		c.BrokerProfiles,
		c.PricingService,
		c.UniverseService,
		c.EventManager,
		log,
	)
	c.TradingService = trading.NewService(
		c.LedgerDB.Conn(),
		c.TradeExecutor,
		c.PortfolioRepo,
		c.CashFlowRepo,
		c.TradeRepo,
		c.EventManager,
		log,
	)

	var s3Client *reliability.S3Client
	if cfg.S3 != nil && cfg.S3.Enabled {
		var err error
		s3Client, err = reliability.NewS3Client(cfg.S3, log)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 backup client: %w", err)
		}
	}
	c.BackupService = reliability.NewBackupService(c.Databases(), cfg.BackupDir, 5, s3Client, log)

	return nil
}
