package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handlers contains the health check handlers
type Handlers struct {
	health  HealthSource
	version string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(health HealthSource, version string) *Handlers {
	return &Handlers{
		health:  health,
		version: version,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Health handles GET /health. It only reports that the process is serving.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
		},
	})
}

// Ready handles GET /ready with per-component status; 503 until every component is healthy
func (h *Handlers) Ready(c *gin.Context) {
	if h.health == nil || !h.health.Ready() {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "not ready",
		})
		return
	}

	status := h.health.Health(c.Request.Context())
	if !status.Overall {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    status,
			Error:   "one or more components are unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    status,
	})
}
