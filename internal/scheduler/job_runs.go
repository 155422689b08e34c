package scheduler

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// JobRun is one recorded execution of a background job.
type JobRun struct {
	ID         int64      `json:"id"`
	Job        string     `json:"job"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
}

// JobRunRecorder keeps a run log in cache.db. Recording failures are
// logged and swallowed: a broken run log must not break the job itself.
type JobRunRecorder struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewJobRunRecorder creates a new job run recorder
func NewJobRunRecorder(db *sql.DB, log zerolog.Logger) *JobRunRecorder {
	return &JobRunRecorder{
		db:  db,
		log: log.With().Str("component", "job_runs").Logger(),
	}
}

// Started records a run beginning and returns its row id.
func (r *JobRunRecorder) Started(job string) int64 {
	res, err := r.db.Exec(
		"INSERT INTO job_runs (job, started_at, status) VALUES (?, ?, 'running')",
		job, time.Now().Unix(),
	)
	if err != nil {
		r.log.Warn().Err(err).Str("job", job).Msg("Failed to record job start")
		return 0
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0
	}
	return id
}

// Finished marks a run completed or failed.
func (r *JobRunRecorder) Finished(runID int64, status, detail string) {
	if runID == 0 {
		return
	}
	_, err := r.db.Exec(
		"UPDATE job_runs SET finished_at = ?, status = ?, detail = ? WHERE id = ?",
		time.Now().Unix(), status, detail, runID,
	)
	if err != nil {
		r.log.Warn().Err(err).Int64("run", runID).Msg("Failed to record job finish")
	}
}

// Recent returns the latest runs of one job, newest first.
func (r *JobRunRecorder) Recent(job string, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, job, started_at, finished_at, status, detail
		FROM job_runs WHERE job = ?
		ORDER BY started_at DESC, id DESC LIMIT ?
	`, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job runs: %w", err)
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		var run JobRun
		var startedUnix int64
		var finishedUnix sql.NullInt64

		if err := rows.Scan(&run.ID, &run.Job, &startedUnix, &finishedUnix, &run.Status, &run.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		run.StartedAt = time.Unix(startedUnix, 0).UTC()
		if finishedUnix.Valid {
			t := time.Unix(finishedUnix.Int64, 0).UTC()
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job runs: %w", err)
	}

	return out, nil
}
