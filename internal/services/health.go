package services

import (
	"fmt"

	"github.com/localnerve/jam-build-intakedb/internal/config"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Redis        string            `json:"redis"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(component, detail string, err error) {
	r.Status = "unhealthy"
	r.Details[detail] = err.Error()
	msg := fmt.Sprintf("%s: %v", component, err)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
	} else {
		r.ErrorMessage += "; " + msg
	}
}

// HealthCheck pings the database and, when configured, redis.
func HealthCheck(cfg *config.Config, db *gorm.DB, log logger.Logger) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.fail("Database connection error", "database_error", err)
	} else if err := sqlDB.Ping(); err != nil {
		result.Database = "unreachable"
		result.fail("Database ping failed", "database_ping_error", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	if cfg.RedisURL == "" {
		result.Redis = "disabled"
	} else if err := utils.PingRedis(cfg.RedisURL); err != nil {
		result.Redis = "unreachable"
		result.fail("Redis ping failed", "redis_error", err)
	} else {
		result.Redis = "ok"
	}

	if result.Status == "healthy" {
		log.Debug("health check passed", nil)
	} else {
		log.Warn("health check failed", map[string]interface{}{"error": result.ErrorMessage})
	}
	return result
}
