// Package scheduler runs background jobs on cron schedules and records
// their outcomes.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs. Every run, scheduled or manual,
// goes through the same wrapper: a job_runs row plus lifecycle events.
type Scheduler struct {
	cron     *cron.Cron
	recorder *JobRunRecorder
	events   *events.Manager
	jobs     map[string]Job
	log      zerolog.Logger
}

// New creates a new scheduler
func New(recorder *JobRunRecorder, eventsManager *events.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		recorder: recorder,
		events:   eventsManager,
		jobs:     make(map[string]Job),
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (six-field, with seconds).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(job); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.jobs[job.Name()] = job
	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.run(job)
}

// RunByName triggers a registered job by name, for the system API.
func (s *Scheduler) RunByName(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	return s.RunNow(job)
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) run(job Job) error {
	started := time.Now()
	runID := s.recorder.Started(job.Name())

	s.events.EmitTyped(events.JobStarted, "scheduler", events.JobStatusData{JobName: job.Name()})
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	err := job.Run()
	duration := time.Since(started)

	if err != nil {
		s.recorder.Finished(runID, "failed", err.Error())
		s.events.EmitTyped(events.JobFailed, "scheduler", events.JobStatusData{
			JobName:    job.Name(),
			DurationMS: duration.Milliseconds(),
			Error:      err.Error(),
		})
		return err
	}

	s.recorder.Finished(runID, "completed", "")
	s.events.EmitTyped(events.JobCompleted, "scheduler", events.JobStatusData{
		JobName:    job.Name(),
		DurationMS: duration.Milliseconds(),
	})
	s.log.Debug().Str("job", job.Name()).Dur("duration", duration).Msg("Job completed")

	return nil
}
