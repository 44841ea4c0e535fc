// handlers_health.go - Health check handlers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kb-console/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	kb      KnowledgeBase
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, kb KnowledgeBase, timeout time.Duration) HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandlerImpl{
		version: version,
		kb:      kb,
		timeout: timeout,
	}
}

type healthResponse struct {
	Status        string               `json:"status"`
	Version       string               `json:"version"`
	KnowledgeBase *models.HealthStatus `json:"knowledgeBase,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// HandleHealth returns server health status along with the knowledge base's.
// The server itself is up whenever it answers, so the status code is always 200.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", Version: h.version}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	upstream, err := h.kb.Health(ctx)
	if err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
	} else {
		resp.KnowledgeBase = upstream
	}

	return c.JSON(http.StatusOK, resp)
}
