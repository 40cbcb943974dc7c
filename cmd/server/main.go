package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"bulkhook-backend/internal/admin"
	"bulkhook-backend/internal/auth"
	"bulkhook-backend/internal/broker"
	"bulkhook-backend/internal/cache"
	"bulkhook-backend/internal/config"
	"bulkhook-backend/internal/engine"
	"bulkhook-backend/internal/hook"
	"bulkhook-backend/internal/metadata"
	"bulkhook-backend/internal/queue"
	"bulkhook-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db driver: %s)", cfg.Server.Port, cfg.Database.Driver)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Entity type registry
	types := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db, types); err != nil {
		log.Printf("WARN: Failed to load entity types: %v", err)
	}

	// 5. Hook registry, backed by the process cache
	appCache := cache.New()
	producers := hook.NewProducerRegistry()
	defs := hook.NewDefinitionStore(db, types, producers)
	registry := hook.NewRegistryCache(appCache, defs)
	defs.OnWrite(registry.Invalidate)

	// 6. Dispatch pipeline
	auditLog := hook.NewAuditLog(db)
	errorLog := hook.NewErrorLog(db)
	settings := broker.NewSettingsStore(db)
	sender := broker.NewRESTProducer(settings, time.Duration(cfg.Broker.TimeoutSeconds)*time.Second)
	builder := hook.NewBuilder(producers)
	publisher := hook.NewPublisher(defs, engine.ResolveDoc(db), builder, sender, auditLog, errorLog)

	dispatchQueue := queue.New(cfg.Queue.Workers, cfg.Queue.BufferSize)
	dispatchQueue.Start()
	defer dispatchQueue.Stop()

	dispatcher := hook.NewDispatcher(dispatchQueue, publisher)
	matcher := hook.NewMatcher(registry, dispatcher, errorLog)

	// 7. Record engine
	service := engine.NewService(db, types, matcher, dispatcher)

	// 8. Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 9. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 10. Auth routes (before middleware — no auth required)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, authHandler)

	authMW := auth.Middleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()

	// 11. Admin routes (auth + admin required)
	adminHandler := admin.NewHandler(db, types, defs, settings, auditLog, dispatchQueue, publisher)
	admin.RegisterAdminRoutes(app, adminHandler, authMW, adminMW)

	// 12. Record routes (auth required)
	engineHandler := engine.NewHandler(service)
	engine.RegisterRecordRoutes(app, engineHandler, authMW)

	// 13. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
