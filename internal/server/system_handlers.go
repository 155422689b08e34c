package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/karvelas/lodestar/internal/database"
	"github.com/karvelas/lodestar/internal/reliability"
	"github.com/karvelas/lodestar/internal/scheduler"
)

// SystemHandlers serves process and database diagnostics plus manual
// job triggers.
type SystemHandlers struct {
	dataDir   string
	databases []*database.DB
	scheduler *scheduler.Scheduler
	jobRuns   *scheduler.JobRunRecorder
	backups   *reliability.BackupService
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(
	dataDir string,
	databases []*database.DB,
	sched *scheduler.Scheduler,
	jobRuns *scheduler.JobRunRecorder,
	backups *reliability.BackupService,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		dataDir:   dataDir,
		databases: databases,
		scheduler: sched,
		jobRuns:   jobRuns,
		backups:   backups,
		startTime: time.Now(),
		log:       log.With().Str("component", "system").Logger(),
	}
}

// RegisterRoutes mounts the system endpoints.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/database/stats", h.handleDatabaseStats)
		r.Get("/jobs", h.handleJobs)
		r.Post("/jobs/{name}", h.handleTriggerJob)
		r.Get("/backups", h.handleListBackups)
		r.Post("/backup", h.handleTriggerBackup)
	})
}

// handleStatus returns process and host statistics.
func (h *SystemHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	// 100ms sample keeps the endpoint responsive for pollers.
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		cpuPercent = []float64{0}
	}

	var memUsedPercent float64
	if memStat, err := mem.VirtualMemory(); err == nil {
		memUsedPercent = memStat.UsedPercent
	}

	diskInfo := map[string]interface{}{}
	if usage, err := disk.Usage(h.dataDir); err == nil {
		diskInfo["total_mb"] = usage.Total / 1024 / 1024
		diskInfo["used_mb"] = usage.Used / 1024 / 1024
		diskInfo["used_percent"] = usage.UsedPercent
	}

	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds":   int64(time.Since(h.startTime).Seconds()),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuPercent[0],
		"mem_used_percent": memUsedPercent,
		"disk":             diskInfo,
	})
}

// handleDatabaseStats reports per-database size and page statistics.
func (h *SystemHandlers) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.databases))
	for _, db := range h.databases {
		s, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			stats[db.Name()] = map[string]string{"error": err.Error()}
			continue
		}
		stats[db.Name()] = map[string]interface{}{
			"size_bytes":     s.SizeBytes,
			"wal_size_bytes": s.WALSizeBytes,
			"page_count":     s.PageCount,
			"page_size":      s.PageSize,
			"freelist_count": s.FreelistCount,
		}
	}
	writeJSONStatus(w, http.StatusOK, stats)
}

// handleJobs lists registered jobs with their recent runs.
func (h *SystemHandlers) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := make(map[string]interface{})
	for _, name := range h.scheduler.JobNames() {
		runs, err := h.jobRuns.Recent(name, 5)
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Failed to load job runs")
			runs = nil
		}
		jobs[name] = runs
	}
	writeJSONStatus(w, http.StatusOK, jobs)
}

// handleTriggerJob runs a registered job in the background.
func (h *SystemHandlers) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	found := false
	for _, n := range h.scheduler.JobNames() {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "unknown job: " + name})
		return
	}

	go func() {
		if err := h.scheduler.RunByName(name); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		}
	}()

	writeJSONStatus(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

// handleListBackups lists local backup sets.
func (h *SystemHandlers) handleListBackups(w http.ResponseWriter, r *http.Request) {
	sets, err := h.backups.ListBackups()
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sets == nil {
		sets = []reliability.BackupInfo{}
	}
	writeJSONStatus(w, http.StatusOK, sets)
}

// handleTriggerBackup starts a backup in the background.
func (h *SystemHandlers) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.backups.BackupAll(); err != nil {
			h.log.Error().Err(err).Msg("Manually triggered backup failed")
		}
	}()
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func writeJSONStatus(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
