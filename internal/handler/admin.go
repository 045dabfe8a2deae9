package handler

import (
	"net/http"
	"runtime"
	"time"

	"baro-tracker-api/internal/repository"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AdminConfig groups AdminHandler dependencies.
type AdminConfig struct {
	Store     repository.Store
	Visits    *service.VisitService
	Backfill  *service.BackfillService
	Market    *service.MarketService
	Source    service.InventorySource
	StoreType string
	CacheType string
}

// AdminHandler handles operator HTTP requests.
type AdminHandler struct {
	cfg       AdminConfig
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{cfg: cfg, startTime: time.Now()}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.cfg.StoreType
	stats["cache_type"] = h.cfg.CacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.cfg.Store != nil {
		storeStats, err := h.cfg.Store.GetStats(r.Context())
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
		stats["store"] = map[string]interface{}{"status": "not_configured"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ListUnknown handles GET /api/v1/admin/unknown-items
func (h *AdminHandler) ListUnknown(w http.ResponseWriter, r *http.Request) {
	items, err := h.cfg.Store.ListUnknown(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, items)
}

// FetchSource handles GET /api/v1/admin/source. It shows what the upstream
// feeds report right now without writing anything.
func (h *AdminHandler) FetchSource(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cfg.Source.FetchCurrentInventory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"snapshot":  snap,
		"is_active": snap.IsActive(time.Now()),
	})
}

// Backfill handles POST /api/v1/admin/backfill
func (h *AdminHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cfg.Backfill.BackfillCanonicalPaths(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, summary)
}

// RunJob handles POST /api/v1/admin/jobs/{job}
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	report, err := h.cfg.Visits.Run(r.Context(), chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, report)
}

// IngestMarket handles POST /api/v1/admin/market/ingest
func (h *AdminHandler) IngestMarket(w http.ResponseWriter, r *http.Request) {
	report, err := h.cfg.Market.Ingest(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, report)
}
