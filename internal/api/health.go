// Package api serves the operational endpoint of a catalogsync process:
// liveness, run status and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger checks a dependency such as the marker database.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness and status endpoints.
type HealthHandler struct {
	db        Pinger
	tracker   *Tracker
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. db may be nil when markers are
// not kept in a database.
func NewHealthHandler(db Pinger, tracker *Tracker, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		tracker:   tracker,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// healthResponse is the JSON payload returned by the liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	MarkerStore   string  `json:"marker_store"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /healthz.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		MarkerStore:   "not_configured",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp.MarkerStore = "connected"
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.WithError(err).Warn("healthz: marker database unreachable")
			resp.MarkerStore = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Status handles GET /status. A failed last run answers 503 so probes can
// alert on it.
func (h *HealthHandler) Status(c *gin.Context) {
	s := h.tracker.Snapshot()
	code := http.StatusOK
	if s.Phase == PhaseFailed {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, s)
}
