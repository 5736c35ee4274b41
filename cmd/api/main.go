package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sellergate/sellergate_api/internal/cache"
	"github.com/sellergate/sellergate_api/internal/config"
	"github.com/sellergate/sellergate_api/internal/crypto"
	"github.com/sellergate/sellergate_api/internal/database"
	"github.com/sellergate/sellergate_api/internal/handler"
	"github.com/sellergate/sellergate_api/internal/middleware"
	"github.com/sellergate/sellergate_api/internal/repository"
	"github.com/sellergate/sellergate_api/internal/service"
	"github.com/sellergate/sellergate_api/internal/worker"
	"github.com/sellergate/sellergate_api/pkg/httpx"
)

// main is the application entrypoint for the Sellergate marketplace API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Bool("demo_mode", cfg.DemoMode).Msg("starting sellergate api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Initialize credential cipher and caches
	cipher, err := crypto.NewCredentialCipher(cfg.EncryptionSecret)
	if err != nil {
		log.Error().Err(err).Msg("credential cipher initialization failed")
		os.Exit(1)
	}
	categoryCache := cache.NewCategoryCache(cfg.CacheDir)
	attributeCache := cache.NewAttributeCache(redisClient)

	// 5. Initialize repositories
	connectionRepo := repository.NewConnectionRepository(db)
	productRepo := repository.NewProductRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	// 6. Initialize marketplace connectors
	fetcher := httpx.NewFetcher(cfg.Sync.HTTPTimeout)
	registry := service.NewConnectorRegistry()
	registry.Register(service.NewTrendyolConnector(fetcher, cfg.ProxyPool, cfg.DemoMode))
	registry.Register(service.NewHepsiburadaConnector(fetcher, cfg.ProxyPool, cfg.DemoMode))

	// 7. Initialize services
	syncSvc := service.NewSyncService(connectionRepo, productRepo, syncLogRepo, cipher, registry, cfg.Sync.PageSize)
	categorySvc := service.NewCategoryService(categoryCache)
	attributeSvc := service.NewAttributeService(categorySvc, attributeCache)
	statusSvc := service.NewStatusService(connectionRepo, productRepo, syncLogRepo, redisClient)

	// 8. Initialize handlers
	handlers := &Handlers{
		Health:     handler.NewHealthHandler(db, redisClient),
		Sync:       handler.NewSyncHandler(syncSvc, statusSvc, syncLogRepo),
		Category:   handler.NewCategoryHandler(syncSvc, categorySvc),
		Attribute:  handler.NewAttributeHandler(syncSvc, categorySvc, attributeSvc),
		Connection: handler.NewConnectionHandler(syncSvc),
		Product:    handler.NewProductHandler(productRepo),
	}

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	syncLimiter := middleware.NewSyncRateLimiter(0.2, 2)
	setupRoutes(router, handlers, syncLimiter)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go worker.NewSyncWorker(connectionRepo, syncSvc, statusSvc, cfg.Worker.SyncInterval).Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()
	syncLimiter.Stop()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health     *handler.HealthHandler
	Sync       *handler.SyncHandler
	Category   *handler.CategoryHandler
	Attribute  *handler.AttributeHandler
	Connection *handler.ConnectionHandler
	Product    *handler.ProductHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, syncLimiter *middleware.SyncRateLimiter) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	v1 := router.Group("/v1")
	{
		// Synced product catalog
		v1.GET("/products", handlers.Product.GetProducts)

		mp := v1.Group("/marketplaces/:marketplace")
		{
			// Sync runs and run history
			mp.POST("/sync/products", syncLimiter.Middleware(), handlers.Sync.SyncProducts)
			mp.GET("/sync/status", handlers.Sync.GetStatus)
			mp.GET("/sync/history", handlers.Sync.GetHistory)

			// Connection checks
			mp.POST("/connection/test", handlers.Connection.TestConnection)

			// Category tree and resolution
			mp.GET("/categories", handlers.Category.GetCategories)
			mp.GET("/categories/:categoryId/children", handlers.Category.GetChildren)
			mp.GET("/categories/:categoryId/path", handlers.Category.GetPath)
			mp.GET("/categories/:categoryId/resolve-leaf", handlers.Category.ResolveLeaf)

			// Category attributes
			mp.GET("/categories/:categoryId/attributes", handlers.Attribute.GetAttributes)
		}
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
