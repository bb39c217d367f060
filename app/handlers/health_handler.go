package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/amirphl/lead-exchange/app/dto"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/gofiber/fiber/v3"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports service health
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a health handler over named dependency checks
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 3 * time.Second}
}

// Health check
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse} "Service is healthy"
// @Failure 503 {object} dto.APIResponse{data=dto.HealthResponse} "A dependency is unhealthy"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: utils.UTCNow().Format(time.RFC3339),
		Checks:    make(map[string]string, len(names)),
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is unhealthy",
			Data:    resp,
			Error:   dto.ErrorDetail{Code: "UNHEALTHY"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    resp,
	})
}
