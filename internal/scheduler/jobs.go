package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/database"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/history"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
	"github.com/karvelas/lodestar/internal/modules/scoring"
	"github.com/karvelas/lodestar/internal/modules/settings"
)

// RescoreJob recomputes scores and rankings for the whole universe.
type RescoreJob struct {
	scoring *scoring.Service
	log     zerolog.Logger
}

// NewRescoreJob creates a new rescore job
func NewRescoreJob(scoringService *scoring.Service, log zerolog.Logger) *RescoreJob {
	return &RescoreJob{scoring: scoringService, log: log.With().Str("job", "rescore").Logger()}
}

func (j *RescoreJob) Name() string { return "rescore" }

func (j *RescoreJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := j.scoring.ScoreUniverse(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("scored", summary.Scored).
		Int("skipped", len(summary.Skipped)).
		Msg("Universe rescored")
	return nil
}

// ValuationSnapshotJob records one valuation per portfolio per day.
type ValuationSnapshotJob struct {
	portfolios *portfolio.Service
	valuations *history.ValuationRepository
	events     *events.Manager
	log        zerolog.Logger
}

// NewValuationSnapshotJob creates a new valuation snapshot job
func NewValuationSnapshotJob(
	portfolioService *portfolio.Service,
	valuations *history.ValuationRepository,
	eventsManager *events.Manager,
	log zerolog.Logger,
) *ValuationSnapshotJob {
	return &ValuationSnapshotJob{
		portfolios: portfolioService,
		valuations: valuations,
		events:     eventsManager,
		log:        log.With().Str("job", "valuation_snapshot").Logger(),
	}
}

func (j *ValuationSnapshotJob) Name() string { return "valuation_snapshot" }

func (j *ValuationSnapshotJob) Run() error {
	portfolios, err := j.portfolios.List()
	if err != nil {
		return err
	}

	date := time.Now().UTC().Format("2006-01-02")
	var failures int
	for _, p := range portfolios {
		v, err := j.portfolios.Valuation(p.ID)
		if err != nil {
			j.log.Error().Err(err).Str("portfolio", p.ID).Msg("Valuation failed")
			failures++
			continue
		}

		record := &history.PortfolioValuation{
			PortfolioID:   p.ID,
			Date:          date,
			Cash:          v.Cash,
			MarketValue:   v.MarketValue,
			TotalValue:    v.TotalValue,
			UnrealizedPnL: v.UnrealizedPnL,
			RealizedPnL:   v.RealizedPnL,
		}
		if err := j.valuations.Save(record); err != nil {
			j.log.Error().Err(err).Str("portfolio", p.ID).Msg("Failed to save valuation")
			failures++
			continue
		}

		j.events.EmitTyped(events.ValuationRecorded, "scheduler", events.ValuationRecordedData{
			PortfolioID: p.ID,
			Date:        date,
			TotalValue:  v.TotalValue.String(),
			StalePrices: v.Degraded,
		})
	}

	if failures > 0 {
		return fmt.Errorf("valuation snapshot failed for %d of %d portfolios", failures, len(portfolios))
	}
	return nil
}

// WALCheckpointJob truncates the WAL of every database.
type WALCheckpointJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewWALCheckpointJob creates a new WAL checkpoint job
func NewWALCheckpointJob(databases []*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{databases: databases, log: log.With().Str("job", "wal_checkpoint").Logger()}
}

func (j *WALCheckpointJob) Name() string { return "wal_checkpoint" }

func (j *WALCheckpointJob) Run() error {
	for _, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			return fmt.Errorf("checkpoint %s: %w", db.Name(), err)
		}
		j.log.Debug().Str("database", db.Name()).Msg("WAL checkpointed")
	}
	return nil
}

// BackupRunner abstracts the reliability backup service.
type BackupRunner interface {
	BackupAll() error
}

// BackupJob snapshots every database via the backup service.
type BackupJob struct {
	backups BackupRunner
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{backups: backups, log: log.With().Str("job", "backup").Logger()}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error { return j.backups.BackupAll() }

// PriceCleanupJob prunes daily price history past the retention window.
type PriceCleanupJob struct {
	historyDB *history.HistoryDB
	settings  *settings.Service
	log       zerolog.Logger
}

// NewPriceCleanupJob creates a new price cleanup job
func NewPriceCleanupJob(historyDB *history.HistoryDB, settingsService *settings.Service, log zerolog.Logger) *PriceCleanupJob {
	return &PriceCleanupJob{
		historyDB: historyDB,
		settings:  settingsService,
		log:       log.With().Str("job", "price_cleanup").Logger(),
	}
}

func (j *PriceCleanupJob) Name() string { return "price_cleanup" }

func (j *PriceCleanupJob) Run() error {
	days, err := j.settings.GetHistoryRetentionDays()
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := j.historyDB.DeleteOlderThan(cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("rows", deleted).Str("cutoff", cutoff.Format("2006-01-02")).Msg("Pruned price history")
	}
	return nil
}
