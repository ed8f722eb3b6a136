// Package main provides the main entry point for the leadflow console API
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/leadflow/app/handlers"
	"github.com/amirphl/leadflow/app/middleware"
	"github.com/amirphl/leadflow/app/router"
	"github.com/amirphl/leadflow/app/services"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/amirphl/leadflow/config"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile := setupLogging(cfg.Logging)
	if logFile != nil {
		defer logFile.Close()
	}

	log.Printf("Starting leadflow %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the process logger to a rotating file when configured
func setupLogging(cfg config.LoggingConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if cfg.Output != "file" && cfg.Output != "both" {
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if cfg.Output == "both" {
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		log.SetOutput(rotator)
	}
	return rotator
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&models.LeadStatusHistory{}, &models.AuditLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis; the returned func stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeDocumentService picks the stored-file backend
func initializeDocumentService(cfg *config.ProductionConfig) (services.DocumentService, error) {
	switch cfg.Documents.Provider {
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return services.NewS3DocumentService(ctx,
			cfg.Documents.S3Endpoint,
			cfg.Documents.S3Region,
			cfg.Documents.S3Bucket,
			cfg.Documents.S3AccessKey,
			cfg.Documents.S3SecretKey,
			cfg.Documents.URLTTL,
		)
	default:
		return services.NewHTTPDocumentService(cfg.LeadAPI.BaseURL, cfg.Documents.ExchangePath, cfg.LeadAPI.Timeout, cfg.Documents.URLTTL), nil
	}
}

func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	historyRepo := repository.NewLeadStatusHistoryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	var drafts businessflow.ReasonDraftStore
	if rc != nil {
		drafts = businessflow.NewRedisReasonDraftStore(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	} else {
		log.Println("Cache disabled, reason dialog drafts are kept in memory")
		drafts = businessflow.NewMemoryReasonDraftStore()
	}

	leadStore := services.NewLeadAPIClient(cfg.LeadAPI.BaseURL, cfg.LeadAPI.Timeout, cfg.LeadAPI.RetryMaxElapsed)

	documents, err := initializeDocumentService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document service: %w", err)
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	leadFlow := businessflow.NewLeadFlow(leadStore, historyRepo, auditRepo)
	conversionFlow := businessflow.NewConversionFlow(leadStore, documents, historyRepo, auditRepo, cfg.LeadAPI)
	reasonFlow := businessflow.NewReasonCaptureFlow(leadStore, drafts, historyRepo, auditRepo, cfg.Cache.ReasonDraftTTL)

	leadHandler := handlers.NewLeadHandler(leadFlow)
	conversionHandler := handlers.NewConversionHandler(conversionFlow)
	reasonDialogHandler := handlers.NewReasonDialogHandler(reasonFlow)
	sessionHandler := handlers.NewSessionHandler(tokenService)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(
		cfg,
		authMiddleware,
		leadHandler,
		conversionHandler,
		reasonDialogHandler,
		sessionHandler,
	)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
