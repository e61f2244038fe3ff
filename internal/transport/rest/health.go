package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	CheckedAt time.Time              `json:"checked_at"`
	Checks    map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status    HealthStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
}

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// liveness, no dependency checks
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

// readiness, pings postgres with a short timeout
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)

	check := HealthCheck{
		Status:    HealthHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = HealthUnhealthy
		check.Error = err.Error()
	}

	resp := HealthResponse{
		Status:    check.Status,
		CheckedAt: time.Now(),
		Checks:    map[string]HealthCheck{"postgres": check},
	}

	statusCode := http.StatusOK
	if check.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
