package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"tabstat/pkg/contracts"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	startTime time.Time
	logger    *slog.Logger
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(startTime time.Time, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		startTime: startTime,
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:        "ok",
		Version:       contracts.Version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Timestamp:     time.Now().UTC(),
	})
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, contracts.GetVersionInfo())
}
