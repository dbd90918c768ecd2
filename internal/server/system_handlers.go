package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
)

// CacheCounter reports the number of cached results. calculations.Cache implements it.
type CacheCounter interface {
	Count() (int64, error)
}

// JobRunner exposes registered background jobs. scheduler.Scheduler implements it.
type JobRunner interface {
	Statuses() []scheduler.JobStatus
	Trigger(name string) error
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   []*database.DB
	cache       CacheCounter
	jobs        JobRunner
}

// NewSystemHandlers creates a new system handlers instance. cache and jobs may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases []*database.DB,
	cache CacheCounter,
	jobs JobRunner,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		cache:       cache,
		jobs:        jobs,
	}
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	CacheEntries  int64   `json:"cache_entries"`
	JobCount      int     `json:"job_count"`
	FailingJobs   int     `json:"failing_jobs"`
}

// DBInfo represents database information
type DBInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	database.Stats
	SizeMB float64 `json:"size_mb"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB  float64                `json:"data_dir_mb"`
	Filesystem *reliability.DiskSpace `json:"filesystem,omitempty"`
}

// JobsStatusResponse represents the status of scheduled jobs
type JobsStatusResponse struct {
	TotalJobs int                   `json:"total_jobs"`
	Jobs      []scheduler.JobStatus `json:"jobs"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	uptime := time.Since(h.startupTime)
	cpuPercent, memPercent := h.getSystemStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatusResponse{
		Status:        "healthy",
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		HeapAllocMB:   float64(memStats.HeapAlloc) / 1024 / 1024,
	}

	if h.cache != nil {
		count, err := h.cache.Count()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count cache entries")
		}
		response.CacheEntries = count
	}

	if h.jobs != nil {
		for _, job := range h.jobs.Statuses() {
			response.JobCount++
			if job.LastError != "" {
				response.FailingJobs++
			}
		}
	}
	if response.FailingJobs > 0 {
		response.Status = "degraded"
	}

	writeJSON(w, h.log, http.StatusOK, response)
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.jobs != nil {
		jobs = h.jobs.Statuses()
	}

	writeJSON(w, h.log, http.StatusOK, JobsStatusResponse{
		TotalJobs: len(jobs),
		Jobs:      jobs,
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Scheduler not available", http.StatusServiceUnavailable)
		return
	}

	name := chi.URLParam(r, "name")
	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	if err := h.jobs.Trigger(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, h.log, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"job":     name,
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]string{
		"status":  "success",
		"job":     name,
		"message": "Job completed successfully",
	})
}

// HandleDatabaseStats handles GET /api/system/database-stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		Databases:   make([]DBInfo, 0, len(h.databases)),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes+stats.WALSizeBytes) / 1024 / 1024
		response.TotalSizeMB += sizeMB
		response.Databases = append(response.Databases, DBInfo{
			Name:   db.Name(),
			Path:   db.Path(),
			Stats:  *stats,
			SizeMB: sizeMB,
		})
	}

	writeJSON(w, h.log, http.StatusOK, response)
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	response := DiskUsageResponse{
		DataDirMB: h.getDirSize(h.dataDir),
	}

	space, err := reliability.CheckDiskSpace(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get filesystem usage")
	} else {
		response.Filesystem = space
	}

	writeJSON(w, h.log, http.StatusOK, response)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats returns CPU and RAM usage percentages, sampling CPU for 100ms
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}
