// main.go
//
// Tenant-scoped intake forms and application review service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-intakedb.
// jam-build-intakedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-intakedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-intakedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/jam-build-intakedb/internal/config"
	"github.com/localnerve/jam-build-intakedb/internal/database"
	"github.com/localnerve/jam-build-intakedb/internal/handlers"
	"github.com/localnerve/jam-build-intakedb/internal/idempotency"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"github.com/localnerve/jam-build-intakedb/internal/middleware"
	"github.com/localnerve/jam-build-intakedb/internal/notify"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/types"
	"github.com/localnerve/jam-build-intakedb/internal/utils"
	"go.uber.org/zap"

	_ "github.com/localnerve/jam-build-intakedb/docs/api" // Swagger docs
)

// @title IntakeDB API
// @version 1.0.0
// @description Tenant-scoped intake forms and application review service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/jam-build-intakedb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Fatal("Failed to load configuration", zap.Error(err))
	}

	zl := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer zl.Sync()
	log := logger.NewZapAdapter(zl)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		zl.Fatal("Failed to run migrations", zap.Error(err))
	}

	store := newIdempotencyStore(cfg, log)
	dispatcher := &notify.Dispatcher{Notifier: newNotifier(cfg, log), Log: log, Timeout: 10 * time.Second}

	catalog := services.NewCatalogService(db, log)
	forms := services.NewFormService(db, catalog, log)
	apps := services.NewApplicationService(db, forms, store, dispatcher, log)
	auth := services.NewAuthService(cfg.JWTSecret, cfg.JWTIssuer)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: utils.ErrorHandler(log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Api-Version",
	}))

	// Prometheus metrics
	prometheus := fiberprometheus.New("intakedb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api", middleware.VersionMiddleware())
	routes := &handlers.Handlers{
		Catalog:      &handlers.CatalogHandler{Catalog: catalog},
		Forms:        &handlers.FormHandler{Forms: forms},
		Applications: &handlers.ApplicationHandler{Apps: apps},
		Health:       &handlers.HealthHandler{Config: cfg, DB: db, Log: log},
	}
	routes.Register(api, auth)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, "[404] Resource Not Found", fiber.StatusNotFound, types.TypeNotFound)
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Gracefully shutting down...", nil)
		_ = app.ShutdownWithTimeout(15 * time.Second)
	}()

	// Start server
	log.Info("Starting server", map[string]interface{}{"port": cfg.Port, "db": cfg.DBType})
	if err := app.Listen(":" + cfg.Port); err != nil {
		zl.Fatal("Failed to start server", zap.Error(err))
	}

	log.Info("Server stopped", nil)
}

// newIdempotencyStore prefers redis and falls back to process memory.
func newIdempotencyStore(cfg *config.Config, log logger.Logger) idempotency.Store {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, submission tokens are held in memory", nil)
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}

	store, err := idempotency.NewRedisStore(cfg.RedisURL, cfg.IdempotencyTTL)
	if err != nil {
		log.WithError(err).Warn("redis store unavailable, falling back to memory", nil)
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis not reachable at startup, reservations will retry per request", nil)
	}
	return store
}

func newNotifier(cfg *config.Config, log logger.Logger) notify.Notifier {
	switch cfg.NotifyDriver {
	case "ses":
		n, err := notify.NewSESNotifier(context.Background(), cfg.SESRegion, cfg.SESSender, log)
		if err != nil {
			log.WithError(err).Error("SES notifier unavailable, using log notifier", nil)
			break
		}
		return n
	case "", "log":
	default:
		log.Warn("unknown NOTIFY_DRIVER, using log notifier", map[string]interface{}{"driver": cfg.NotifyDriver})
	}
	return &notify.LogNotifier{Log: log}
}
