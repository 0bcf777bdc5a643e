package handler

import (
	"net/http"
	"runtime"
	"time"

	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/repository"
	"bazaar-economy-api/internal/service"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store     repository.Store
	hub       *gateway.Hub
	sweeper   *service.Sweeper
	dbType    string
	cacheType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	store repository.Store,
	hub *gateway.Hub,
	sweeper *service.Sweeper,
	dbType, cacheType string,
) *AdminHandler {
	return &AdminHandler{
		store:     store,
		hub:       hub,
		sweeper:   sweeper,
		dbType:    dbType,
		cacheType: cacheType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Live session count
	if h.hub != nil {
		if sessions, err := h.hub.SessionCount(ctx); err == nil {
			stats["sessions"] = map[string]interface{}{
				"online": sessions,
				"status": "ok",
			}
		} else {
			stats["sessions"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	// Store stats
	if h.store != nil {
		storeStats, err := h.store.Stats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["store"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// GetTradeLogs handles GET /api/v1/admin/trades
func (h *AdminHandler) GetTradeLogs(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)

	logs, total, err := h.store.ListTradeLogs(r.Context(), page, limit)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to fetch trade logs"))
		return
	}
	response.JSONWithMeta(w, http.StatusOK, logs, page, limit, total)
}

// RunSweep handles POST /api/v1/admin/sweep
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		response.Error(w, apierror.ServiceUnavailable("sweeper not running"))
		return
	}

	settled, err := h.sweeper.RunNow()
	if err != nil {
		response.Error(w, apierror.InternalError("sweep failed: "+err.Error()))
		return
	}
	response.OK(w, map[string]interface{}{"settled": settled})
}

// GetHealth handles GET /api/v1/admin/health
func (h *AdminHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
