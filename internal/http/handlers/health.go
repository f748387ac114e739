package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	startedAt time.Time
	pingDB    func(ctx context.Context) error
	pingCache func(ctx context.Context) error
}

// NewHealthHandler wires the readiness probes. pingCache may be nil when no
// redis backend is configured.
func NewHealthHandler(pingDB, pingCache func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now(),
		pingDB:    pingDB,
		pingCache: pingCache,
	}
}

// Healthz is the liveness probe: always 200 while the process runs.

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "userhub",
		"uptime_seconds": time.Since(h.startedAt).Round(time.Second).Seconds(),
	})
}

// Readyz checks the backing stores and reports 503 until they all answer.

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)

	defer cancel()

	checks := gin.H{}
	ready := true

	if h.pingDB != nil {
		if err := h.pingDB(cctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			ready = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if h.pingCache != nil {
		if err := h.pingCache(cctx); err != nil {
			checks["cache"] = "unhealthy: " + err.Error()
			ready = false
		} else {
			checks["cache"] = "healthy"
		}
	}

	if !ready {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
