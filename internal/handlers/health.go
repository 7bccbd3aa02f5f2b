package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/config"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports database and redis reachability
type HealthHandler struct {
	Config *config.Config
	DB     *gorm.DB
	Log    logger.Logger
}

// Health handles GET /api/health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Config, h.DB, h.Log)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
