package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/captionflow/captionflow/internal/archive"
	"github.com/captionflow/captionflow/internal/cache"
	"github.com/captionflow/captionflow/internal/config"
	"github.com/captionflow/captionflow/internal/database"
	"github.com/captionflow/captionflow/internal/logging"
	"github.com/captionflow/captionflow/internal/metrics"
	"github.com/captionflow/captionflow/internal/middleware"
	"github.com/captionflow/captionflow/internal/pipeline"
	"github.com/captionflow/captionflow/internal/queue"
	"github.com/captionflow/captionflow/internal/signals"
	"github.com/captionflow/captionflow/internal/tips"
	"github.com/captionflow/captionflow/internal/tracing"
	"github.com/captionflow/captionflow/internal/webhook"
	"github.com/captionflow/captionflow/internal/workflows"
)

type API struct {
	repo     *database.Repository
	svc      *pipeline.Service
	resolver *tips.Resolver
	registry *workflows.Registry
	archive  *archive.Store
	logger   *logging.Logger
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.ErrorWithErr("Failed to initialize tracer", err)
		} else {
			defer closer.Close()
		}
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize tip cache; the resolver works without it
	var tipCache tips.TipCache
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TipTTL)
	if err != nil {
		logger.ErrorWithErr("Redis unavailable, tip caching disabled", err)
	} else {
		tipCache = redisCache
		defer redisCache.Close()
	}

	resolver := tips.NewResolver(repo, tipCache)

	// Archive storage is optional: nukes only soft-delete, so without it
	// they proceed with no pre-delete snapshot
	var archiver pipeline.Archiver
	archiveStore, err := archive.New(cfg.Archive)
	if err != nil {
		logger.ErrorWithErr("Archive storage unavailable", err)
	} else {
		archiver = archiveStore
	}

	// Signal hub and fan-out
	hub := signals.NewHub()

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.ErrorWithErr("Queue unavailable, signal fan-out disabled", err)
	} else {
		defer q.Close()
		if err := q.SetupDeadLetterQueue(); err != nil {
			logger.ErrorWithErr("Failed to set up dead letter queue", err)
		}
		queue.AttachBridge(hub, q, logger)
	}

	webhookService := webhook.NewService(repo)
	webhook.AttachHub(hub, webhookService)

	// Workflow registry: team videos get the review workflow
	registry := workflows.NewRegistry(workflows.NewDefaultWorkflow())
	registry.RegisterOverride(workflows.TeamOverride)

	svc := pipeline.NewService(repo, resolver, hub, registry, archiver, logger)

	api := &API{
		repo:     repo,
		svc:      svc,
		resolver: resolver,
		registry: registry,
		archive:  archiveStore,
		logger:   logger,
	}

	// Metrics server
	metricsServer := metrics.NewServer(9090)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.ErrorWithErr("Metrics server failed", err)
		}
	}()

	// Setup router
	router := setupRouter(api, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.ErrorWithErr("Metrics server shutdown failed", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	rateLimiter := middleware.NewRateLimiter(50, 100)
	go rateLimiter.Cleanup()

	// Health check
	router.GET("/health", api.healthCheck)

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(rateLimiter))
	{
		// Reads
		v1.GET("/videos/:id", api.getVideo)
		v1.GET("/videos/:id/languages", api.listLanguages)
		v1.GET("/videos/:id/languages/:code/tip", api.getTip)
		v1.GET("/videos/:id/languages/:code/versions", api.listVersions)
		v1.GET("/videos/:id/languages/:code/versions/:number", api.getVersion)
	}

	authed := v1.Group("")
	authed.Use(middleware.OptionalAuth(api.repo))
	{
		// Videos
		authed.POST("/videos", api.createVideo)

		// Subtitle writes
		authed.POST("/videos/:id/languages/:code/versions", api.addSubtitles)
		authed.POST("/videos/:id/languages/:code/versions/:number/rollback", api.rollbackVersion)
		authed.POST("/videos/:id/languages/:code/versions/:number/publish", api.publishVersion)
		authed.POST("/videos/:id/languages/:code/versions/:number/unpublish", api.unpublishVersion)
		authed.GET("/videos/:id/languages/:code/versions/:number/export", api.exportVersion)
		authed.POST("/videos/:id/languages/:code/actions/:name", api.performAction)
		authed.DELETE("/videos/:id/languages/:code", api.deleteLanguage)

		// Editing sessions
		authed.POST("/videos/:id/languages/:code/writelock", api.acquireWritelock)
		authed.DELETE("/videos/:id/languages/:code/writelock", api.releaseWritelock)

		// Webhooks
		authed.POST("/webhooks", api.createWebhook)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// Check database health
	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
