package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/xfw5/Market-Research/internal/database"
)

// SystemHandlers reports host and process resource usage
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	databases   []*database.DB
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(dataDir string, databases []*database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		databases:   databases,
		startupTime: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system
type SystemStatusResponse struct {
	CPUPercent     float64            `json:"cpu_percent"`
	MemoryPercent  float64            `json:"memory_percent"`
	DiskPercent    float64            `json:"disk_percent"`
	DiskFreeMB     float64            `json:"disk_free_mb"`
	Goroutines     int                `json:"goroutines"`
	HeapAllocMB    float64            `json:"heap_alloc_mb"`
	UptimeSeconds  int64              `json:"uptime_seconds"`
	DatabaseSizeMB map[string]float64 `json:"database_size_mb"`
}

// HandleSystemStatus handles GET /api/system
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := SystemStatusResponse{
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocMB:    float64(ms.HeapAlloc) / 1024 / 1024,
		UptimeSeconds:  int64(time.Since(h.startupTime).Seconds()),
		DatabaseSizeMB: make(map[string]float64, len(h.databases)),
	}

	if h.dataDir != "" {
		if usage, err := disk.Usage(h.dataDir); err != nil {
			h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get disk usage")
		} else {
			resp.DiskPercent = usage.UsedPercent
			resp.DiskFreeMB = float64(usage.Free) / 1024 / 1024
		}
	}

	for _, db := range h.databases {
		info, err := os.Stat(db.Path())
		if err != nil {
			continue
		}
		resp.DatabaseSizeMB[db.Name()] = float64(info.Size()) / 1024 / 1024
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the call short.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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
