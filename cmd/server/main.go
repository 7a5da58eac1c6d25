package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	classifyapp "github.com/cclastrib/backend/internal/application/classify"
	"github.com/cclastrib/backend/internal/domain/fiscal"
	"github.com/cclastrib/backend/internal/infrastructure/auth"
	"github.com/cclastrib/backend/internal/infrastructure/cache"
	"github.com/cclastrib/backend/internal/infrastructure/config"
	"github.com/cclastrib/backend/internal/infrastructure/logger"
	"github.com/cclastrib/backend/internal/infrastructure/persistence"
	"github.com/cclastrib/backend/internal/infrastructure/tables"
	"github.com/cclastrib/backend/internal/interfaces/http/handler"
	"github.com/cclastrib/backend/internal/interfaces/http/middleware"
	"github.com/cclastrib/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			cClasTrib API
//	@version		1.0
//	@description	Classificação tributária IBS/CBS conforme a LC 214/2025

//	@host		localhost:8000
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting cClasTrib backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("data_dir", cfg.Data.Dir),
	)

	// Load the rule tables. A failed initial load is fatal: the service
	// has nothing to classify against.
	loader := tables.NewLoader(cfg.Data.Dir, log)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 60*time.Second)
	if _, err := loader.Reload(initCtx); err != nil {
		cancelInit()
		log.Fatal("Failed to load rule tables", zap.Error(err))
	}
	cancelInit()

	// Watch the data directory for CSV changes
	var watcher *tables.Watcher
	if cfg.Data.Watch {
		watcher, err = tables.NewWatcher(loader, cfg.Data.Dir, cfg.Data.WatchDebounce, log)
		if err != nil {
			log.Warn("Failed to start table watcher, hot reload disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			log.Info("Table watcher started", zap.Duration("debounce", cfg.Data.WatchDebounce))
		}
	}

	// Result cache: Redis when configured, in-memory otherwise
	cacheFactory := cache.NewResultCacheFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log))
	resultCache, err := cacheFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create result cache", zap.Error(err))
	}
	defer func() {
		if err := resultCache.Close(); err != nil {
			log.Error("Error closing result cache", zap.Error(err))
		}
	}()

	// Audit persistence is optional; without it classification still works
	var db *persistence.Database
	var recordRepo fiscal.ClassificationRecordRepository
	if cfg.Audit.Enabled {
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
		db, err = persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
		if err != nil {
			log.Fatal("Failed to connect to audit database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		if err := db.Migrate(); err != nil {
			log.Fatal("Failed to migrate audit database", zap.Error(err))
		}
		recordRepo = persistence.NewGormClassificationRecordRepository(db.DB)
		log.Info("Audit trail enabled", zap.String("driver", cfg.Database.Driver))
	}

	// Application service
	classifyService := classifyapp.NewService(
		loader,
		resultCache,
		recordRepo,
		cfg.Cache.TTL,
		cfg.Audit.Enabled,
		log,
	)

	// JWT service for the admin endpoints
	jwtService := auth.NewJWTService(cfg.JWT)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(loader, db))

	// Admin endpoints require a valid token; classification is open
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log

	classifyHandler := handler.NewClassifyHandler(classifyService, cfg.HTTP.MaxBatchItems)
	adminHandler := handler.NewAdminHandler(classifyService)
	systemHandler := handler.NewSystemHandler()

	fiscalRoutes := router.NewDomainGroup("fiscal", "/fiscal")
	fiscalRoutes.POST("/classify", classifyHandler.Classify)
	fiscalRoutes.POST("/classify/batch", classifyHandler.ClassifyBatch)

	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig), middleware.RequireAdmin())
	adminRoutes.POST("/reload", adminHandler.Reload)
	adminRoutes.GET("/tables", adminHandler.Tables)
	adminRoutes.GET("/audit", adminHandler.Audit)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(fiscalRoutes).
		Register(adminRoutes).
		Register(systemRoutes)
	r.Setup()

	// Simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports whether a rule table snapshot is loaded and,
// when the audit trail is on, whether its database answers a ping.
func healthHandler(provider fiscal.Provider, db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := provider.Current()
		if snapshot == nil || snapshot.LoadedAt.IsZero() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"time":   time.Now().Format(time.RFC3339),
				"tables": "not loaded",
			})
			return
		}

		body := gin.H{
			"status":    "healthy",
			"time":      time.Now().Format(time.RFC3339),
			"data_dir":  snapshot.BaseDir,
			"loaded_at": snapshot.LoadedAt.Format(time.RFC3339),
			"rows":      snapshot.Stats(),
		}
		if db != nil {
			if err := db.Ping(); err != nil {
				body["status"] = "degraded"
				body["audit"] = "unreachable"
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["audit"] = "ok"
		}
		c.JSON(http.StatusOK, body)
	}
}
