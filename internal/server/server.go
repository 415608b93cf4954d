// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"reelshare/internal/cache"
	"reelshare/internal/config"
	"reelshare/internal/database"
	"reelshare/internal/featureflags"
	"reelshare/internal/middleware"
	"reelshare/internal/models"
	"reelshare/internal/notifications"
	"reelshare/internal/repository"
	"reelshare/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	docRepo        repository.DocumentRepository
	docService     *service.DocumentService
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return NewServerWithDeps(cfg, db, cache.Connect(cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("config and database are required")
	}
	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("reelshare-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		docRepo:        repository.NewDocumentRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	server.docService = service.NewDocumentService(server.docRepo, cache.New(redisClient),
		&eventFanout{notifier: server.notifier, hub: server.hub, viaRedis: redisClient != nil})

	if redisClient != nil {
		if err := server.hub.StartWiring(ctx, server.notifier); err != nil {
			log.Printf("failed to start %s wiring: %v", server.hub.Name(), err)
		}
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID, User ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:8081,http://localhost:19006"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.UserIDHeader + ", traceparent, tracestate, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400, // 24 hours
	}))

	// Global rate limiting (300 requests per minute per IP) outside local environments
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "reelshare API Metrics Dashboard",
	}))
	api.Get("/flags", s.GetFeatureFlags)

	// Specific routes must be registered before the generic /:collection routes.
	api.Get("/ws", s.WebSocketUpgrade, s.WebSocketNotificationsHandler())
	api.Put("/users/:id/following/:targetId", s.FollowUser)
	api.Delete("/users/:id/following/:targetId", s.UnfollowUser)

	docs := api.Group("/:collection")
	docs.Get("/", s.ListDocuments)
	docs.Post("/", s.limitSocialWrites(), s.CreateDocument)
	docs.Post("/:id/increment", s.IncrementField)
	docs.Get("/:id", s.GetDocument)
	docs.Patch("/:id", s.PatchDocument)
	docs.Delete("/:id", s.DeleteDocument)
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "reelshare API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message})
			}
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()
	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional:
// without it the API serves uncached and pushes only to local sockets.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags returns configured feature flags and their state for the acting user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		userID, _ = c.Locals("userID").(string)
	}
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

// IsOnline reports whether userID has an open notification socket on this instance.
func (s *Server) IsOnline(userID string) bool {
	return s.hub.IsOnline(userID)
}
