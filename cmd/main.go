package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/internal/clients"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Catalog Management API
// @version 1.0.0
// @description Product selections, guarded bulk operations and variant matrices with multi-tenant support

// @contact.name Catalog API Support
// @contact.email support@example.com

// @host localhost:8087
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Redis is optional; the repository reads through to postgres when it is down
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, using localhost")
		redisOpts = &redis.Options{Addr: "localhost:6379"}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, caching will be degraded")
	} else {
		logger.Info("Redis connected")
	}
	cancel()

	catalogRepo := repository.NewCatalogRepository(db, redisClient)

	// Event publishing only when NATS_URL is set
	var publisher services.EventPublisher
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher, continuing without event publishing")
		} else {
			publisher = eventsPublisher
			logger.Info("Events publisher initialized")
		}
	} else {
		logger.Info("NATS_URL not set, skipping event publishing")
	}
	defer eventsPublisher.Close()

	documentClient := clients.NewDocumentClient(cfg.DocumentServiceURL, logger)

	generator := services.NewUPIDGenerator(cfg.UPIDLength, cfg.UPIDRetryFactor, logger)
	resolver := services.NewSelectionResolver(logger)
	guard := services.NewBulkGuard(catalogRepo, resolver, documentClient, services.BulkLimits{
		MaxAffected:      cfg.BulkMaxAffected,
		PreviewThreshold: cfg.BulkPreviewThreshold,
		RemoveBatchSize:  cfg.StorageRemoveBatchSize,
	}, logger)
	reconciler := services.NewVariantReconciler(generator, logger)
	catalogService := services.NewCatalogService(catalogRepo, resolver, guard, reconciler, publisher, logger)
	importValidator := services.NewImportValidator(catalogRepo, logger)

	catalogHandler := handlers.NewCatalogHandler(catalogService, logger)
	importHandler := handlers.NewImportHandler(importValidator, logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("catalog-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("catalog-service"))
	}
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize tracing, continuing without tracing")
	}

	metrics := gosharedmw.InitGlobalMetrics("tesseract", "catalog_service")
	rbacMw := rbac.NewMiddlewareWithURL(cfg.StaffServiceURL, nil)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("catalog-service"))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gosharedmw.Handler())

	api := router.Group("/api/v1")
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
		api.Use(middleware.TenantMiddleware())
	} else {
		// IstioAuth reads x-jwt-claim-* headers; legacy X-* headers are accepted during migration
		api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
			RequireAuth:        true,
			AllowLegacyHeaders: true,
			Logger:             logrus.NewEntry(logger).WithField("component", "istio_auth"),
		}))
		api.Use(gosharedmw.VendorScopeFilter())
		api.Use(middleware.TenantMiddleware())
	}

	products := api.Group("/products")
	{
		// Read operations
		products.POST("/selection/count", rbacMw.RequirePermission(rbac.PermissionProductsRead), catalogHandler.CountSelection)
		products.GET("/:id/variants", rbacMw.RequirePermission(rbac.PermissionProductsRead), catalogHandler.GetVariants)

		// Create operations
		products.POST("", rbacMw.RequirePermission(rbac.PermissionProductsCreate), catalogHandler.CreateProduct)

		// Update operations
		products.PUT("/:id", rbacMw.RequirePermission(rbac.PermissionProductsUpdate), catalogHandler.UpdateProduct)
		products.PUT("/:id/variants/matrix", rbacMw.RequirePermission(rbac.PermissionProductsUpdate), catalogHandler.SetVariantMatrix)
		products.POST("/bulk/update", rbacMw.RequirePermission(rbac.PermissionProductsUpdate), catalogHandler.BulkUpdate)

		// Delete operations
		products.POST("/bulk/delete", rbacMw.RequirePermission(rbac.PermissionProductsDelete), catalogHandler.BulkDelete)

		// Import
		products.GET("/import/template", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.GetImportTemplate)
		products.POST("/import/validate", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.ValidateImport)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Catalog service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down catalog-service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down tracer provider")
		}
	}

	if err := redisClient.Close(); err != nil {
		logger.WithError(err).Warn("Error closing Redis client")
	}

	logger.Info("Catalog service stopped")
}
