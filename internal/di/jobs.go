package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/config"
	"github.com/karvelas/lodestar/internal/scheduler"
)

// RegisterJobs builds the scheduler and registers the background jobs.
// An empty cron expression disables that job's schedule; the job is
// still registered so it can be triggered manually.
func RegisterJobs(c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.JobRuns = scheduler.NewJobRunRecorder(c.CacheDB.Conn(), log)
	c.Scheduler = scheduler.New(c.JobRuns, c.EventManager, log)

	// price_cleanup shares the backup window so pruning follows a backup.
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.RescoreCron, scheduler.NewRescoreJob(c.ScoringService, log)},
		{cfg.ValuationCron, scheduler.NewValuationSnapshotJob(c.PortfolioService, c.ValuationRepo, c.EventManager, log)},
		{cfg.CheckpointCron, scheduler.NewWALCheckpointJob(c.Databases(), log)},
		{cfg.BackupCron, scheduler.NewBackupJob(c.BackupService, log)},
		{cfg.BackupCron, scheduler.NewPriceCleanupJob(c.HistoryStore, c.SettingsService, log)},
	}

	for _, entry := range jobs {
		if entry.schedule == "" {
			continue
		}
		if err := c.Scheduler.AddJob(entry.schedule, entry.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", entry.job.Name(), err)
		}
	}

	return nil
}
