package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/holdings/internal/scheduler"
)

const healthCheckTimeout = 5 * time.Second

// HealthChecker is implemented by database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SystemHandlers serves process and job status endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	db          HealthChecker
	runner      JobRunner
	startupTime time.Time

	mu   sync.RWMutex
	jobs map[string]scheduler.Job
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	Database      string   `json:"database"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	UptimeHours   float64  `json:"uptime_hours"`
	Goroutines    int      `json:"goroutines"`
	DataDirSizeMB float64  `json:"data_dir_size_mb"`
	Jobs          []string `json:"jobs"`
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(dataDir string, db HealthChecker, runner JobRunner, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		db:          db,
		runner:      runner,
		startupTime: time.Now(),
		jobs:        make(map[string]scheduler.Job),
	}
}

// SetJobs registers jobs that can be triggered manually
func (h *SystemHandlers) SetJobs(jobs ...scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, job := range jobs {
		h.jobs[job.Name()] = job
	}
}

func (h *SystemHandlers) jobNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleSystemStatus returns process health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "healthy",
		Database:      "ok",
		UptimeHours:   time.Since(h.startupTime).Hours(),
		Goroutines:    runtime.NumGoroutine(),
		DataDirSizeMB: h.getDirSize(h.dataDir),
		Jobs:          h.jobNames(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Msg("Database health check failed")
			resp.Status = "degraded"
			resp.Database = err.Error()
		}
	}

	resp.CPUPercent, resp.MemoryPercent = h.getSystemStats()

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleListJobs lists jobs that can be triggered
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.jobNames(),
	})
}

// HandleTriggerJob runs a registered job in the background
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.RLock()
	job, ok := h.jobs[name]
	h.mu.RUnlock()

	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "Job not registered: " + name,
		})
		return
	}
	if h.runner == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Scheduler not running",
		})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")

	go func() {
		if err := h.runner.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": name + " triggered successfully",
	})
}

// getDirSize returns the size of a directory tree in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	if dirPath == "" {
		return 0
	}

	var totalSize int64
	err := filepath.Walk(dirPath, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("path", dirPath).Msg("Failed to walk data directory")
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the status call responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
