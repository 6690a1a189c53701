package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/database"
	"github.com/stgeorges/biolms/utils/response"
)

// HealthHandler reports service liveness and database connectivity
type HealthHandler struct {
	store   database.Storage
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store database.Storage) *HealthHandler {
	return &HealthHandler{store: store, started: time.Now()}
}

// Check returns the service status
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	dbStatus := "connected"
	if err := h.store.HealthCheck(); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
	}

	return response.Success(c, fiber.Map{
		"status":   status,
		"database": dbStatus,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}
