package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradepulse/paper-engine/internal/database"
	"github.com/tradepulse/paper-engine/internal/engine"
	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/redis"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db     *database.DB
	redis  *redis.Client
	engine *engine.Engine
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, redisClient *redis.Client, eng *engine.Engine) *Handler {
	return &Handler{
		db:     db,
		redis:  redisClient,
		engine: eng,
	}
}

// GetOpenPositions handles GET /api/v1/positions
func (h *Handler) GetOpenPositions(w http.ResponseWriter, r *http.Request) {
	trades, err := h.db.GetOpenTrades(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []*models.Trade{}
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetPerformance handles GET /api/v1/performance
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.LastMetrics())
}

// GetLastCycles handles GET /api/v1/cycles/last
func (h *Handler) GetLastCycles(w http.ResponseWriter, r *http.Request) {
	reports := map[string]*models.CycleReport{}
	if rep := h.engine.LastReport(models.StageExecution); rep != nil {
		reports[models.StageExecution] = rep
	}
	if rep := h.engine.LastReport(models.StageExit); rep != nil {
		reports[models.StageExit] = rep
	}

	respondJSON(w, http.StatusOK, reports)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	// Check database
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
