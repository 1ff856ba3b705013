// Package main provides the entry point for the campaign call center API
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/campaign-callcenter/app/handlers"
	"github.com/amirphl/campaign-callcenter/app/middleware"
	"github.com/amirphl/campaign-callcenter/app/router"
	"github.com/amirphl/campaign-callcenter/app/services"
	businessflow "github.com/amirphl/campaign-callcenter/business_flow"
	"github.com/amirphl/campaign-callcenter/config"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	logger    *slog.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logCloser := utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting campaign call center",
		slog.String("environment", cfg.Deployment.Environment),
		slog.String("version", cfg.Deployment.Version),
		slog.String("commit", cfg.Deployment.CommitHash))

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case <-sigChan:
		logger.Info("shutting down gracefully")
	case err := <-serverErr:
		logger.Error("server stopped unexpectedly", slog.Any("error", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", slog.Any("error", err))
	}

	// stop background work and close connections after in-flight requests drain
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	logger.Info("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(cfg, logger),
	})
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

	logger.Info("database connection established",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns))

	return db, nil
}

// newGormLogger routes slow queries into the application log at warn level
func newGormLogger(cfg config.DatabaseConfig, logger *slog.Logger) gormlogger.Interface {
	if !cfg.SlowQueryLog {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(slog.NewLogLogger(logger.Handler(), slog.LevelWarn), gormlogger.Config{
		SlowThreshold:             cfg.SlowQueryTime,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// initializeCache connects to Redis when it is the configured cache provider.
// A nil client means locks fall back to the in-process locker.
func initializeCache(cfg config.CacheConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connection established", slog.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis so connectivity loss shows up in the logs
// before a batch load needs the lock. The returned func stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *slog.Logger) func() {
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
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("redis healthcheck failed", slog.Any("error", err))
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication wires repositories, flows, handlers and the router
func initializeApplication(cfg *config.ProductionConfig, logger *slog.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		stopFuncs = append(stopFuncs, closeWith(sqlDB, "database", logger))
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	var locker services.Locker
	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		locker = services.NewRedisLocker(rc, cfg.Cache.RedisPrefix)
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
		stopFuncs = append(stopFuncs, closeWith(rc, "redis", logger))
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, logger))
	} else {
		logger.Warn("redis disabled, batch locks are process-local")
		locker = services.NewLocalLocker()
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("token service initialized",
		slog.String("issuer", cfg.JWT.Issuer),
		slog.String("audience", cfg.JWT.Audience))

	// Initialize repositories
	tx := repository.NewTransactor(db)
	voterRepo := repository.NewVoterRepository(db)
	assignmentRepo := repository.NewCallAssignmentRepository(db)
	callRepo := repository.NewVerificationCallRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	cc := cfg.CallCenter

	// Initialize flows
	poolFlow := businessflow.NewVoterPoolFlow(voterRepo, cc.MaxAttempts, logger)
	assignmentFlow := businessflow.NewAssignmentFlow(tx, voterRepo, assignmentRepo, auditRepo, logger)
	balancerFlow := businessflow.NewLoadBalancerFlow(tx, voterRepo, assignmentRepo, auditRepo, locker, cc, logger)
	queueFlow := businessflow.NewQueueFlow(assignmentRepo, cc.MaxQueueSize, logger)
	callFlow := businessflow.NewCallFlow(tx, voterRepo, assignmentRepo, callRepo, auditRepo, cc.CallbackDelay, logger)

	// Initialize handlers
	callCenterHandler := handlers.NewCallCenterHandler(poolFlow, assignmentFlow, balancerFlow, queueFlow, callFlow, logger)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	r := router.NewFiberRouter(cfg, callCenterHandler, authMiddleware, healthChecks, logger)

	return &Application{
		router:    r,
		config:    cfg,
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}

func closeWith(c io.Closer, name string, logger *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close connection", slog.String("name", name), slog.Any("error", err))
		}
	}
}
