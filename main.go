// Package main provides the entry point of the lead exchange service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/lead-exchange/app/handlers"
	"github.com/amirphl/lead-exchange/app/router"
	"github.com/amirphl/lead-exchange/app/services"
	businessflow "github.com/amirphl/lead-exchange/business_flow"
	"github.com/amirphl/lead-exchange/config"
	"github.com/amirphl/lead-exchange/repository"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	recorder  businessflow.ResultRecorder
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"version":     cfg.Deployment.Version,
		"commit":      cfg.Deployment.CommitHash,
		"environment": cfg.Deployment.Environment,
	}).Info("Starting lead exchange")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-sigChan
	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}

	// Pending affiliate callbacks get what is left of the shutdown budget
	drained := make(chan struct{})
	go func() {
		app.recorder.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached with affiliate callbacks in flight")
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	logger.Info("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormConfig := &gorm.Config{
		Logger: gormlogger.Discard,
	}
	if cfg.SlowQueryLog {
		gormConfig.Logger = gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
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

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger logrus.FieldLogger) (*redis.Client, error) {
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

	logger.WithField("db", cfg.RedisDB).Info("Redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis until the returned function is called
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger logrus.FieldLogger) func() {
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
					logger.WithError(err).Warn("Redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeCapLocker picks the cap serialization backend. Redis is shared between
// replicas; the in-process locker only protects a single instance.
func initializeCapLocker(cfg config.DistributionConfig, cache config.CacheConfig, rc *redis.Client) services.CapLocker {
	if !cfg.SerializeCaps {
		return nil
	}
	if rc != nil {
		return services.NewRedisCapLocker(rc, cache.RedisPrefix+"cap:", cfg.CapLockTTL, cfg.CapLockWait)
	}
	return services.NewLocalCapLocker(cfg.CapLockWait)
}

func initializeApplication(cfg *config.ProductionConfig, logger *logrus.Logger) (*Application, error) {
	app := &Application{}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.stopFuncs = append(app.stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs,
			startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthEvery, logger),
			func() { _ = rc.Close() },
		)
	}

	// Repositories
	leadRepo := repository.NewLeadRepository(db)
	advertiserRepo := repository.NewAdvertiserRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	ruleRepo := repository.NewDistributionRuleRepository(db)
	settingRepo := repository.NewDistributionSettingRepository(db)
	attemptRepo := repository.NewDistributionAttemptRepository(db)
	rejectionRepo := repository.NewLeadRejectionRepository(db)
	counterRepo := repository.NewConversionCounterRepository(db)
	callbackLogRepo := repository.NewCallbackLogRepository(db)
	integrationRepo := repository.NewCustomIntegrationRepository(db)

	// Outbound delivery
	dist := cfg.Distribution
	var relay services.Transport
	if dist.RelayEndpoint != "" {
		relay = services.NewRelayTransport(dist.RelayEndpoint, dist.RelayTimeout)
	}
	transports := services.NewTransportSelector(
		services.NewDirectTransport(dist.AdapterTimeout),
		relay,
		dist.TransportModes,
		logger,
	)
	adapters := services.NewDefaultAdapterRegistry(services.AdapterDeps{
		Transports:   transports,
		Integrations: integrationRepo,
		Params:       dist.AdapterParams,
	})
	callbackClient := services.NewHTTPCallbackClient(dist.CallbackTimeout)

	// Business flows
	resolver := businessflow.NewEligibilityResolver(ruleRepo, settingRepo, attemptRepo, rejectionRepo, dist.DefaultDailyCap, logger)
	recorder := businessflow.NewResultRecorder(
		attemptRepo, leadRepo, counterRepo, rejectionRepo, callbackLogRepo, callbackClient,
		businessflow.RecorderConfig{
			CallbackTimeout:   dist.CallbackTimeout,
			ResponseMaxLength: dist.ResponseMaxLength,
			ReasonMaxLength:   dist.ReasonMaxLength,
		},
		logger,
	)
	app.recorder = recorder

	var opts []businessflow.DistributionFlowOption
	if locker := initializeCapLocker(dist, cfg.Cache, rc); locker != nil {
		opts = append(opts, businessflow.WithCapLocker(locker))
	}
	if cfg.GeoIP.Enabled {
		geo, err := services.OpenGeoIPResolver(cfg.GeoIP.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open geoip database: %w", err)
		}
		app.stopFuncs = append(app.stopFuncs, func() { _ = geo.Close() })
		opts = append(opts, businessflow.WithCountryResolver(geo))
	}

	flow := businessflow.NewDistributionFlow(
		leadRepo, advertiserRepo, affiliateRepo, attemptRepo,
		resolver, adapters, recorder, logger, opts...,
	)

	// Handlers
	distributionHandler := handlers.NewDistributionHandler(flow, cfg.Server.RequestTimeout, logger)
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}
	healthHandler := handlers.NewHealthHandler(checks)

	app.router = router.NewFiberRouter(cfg, distributionHandler, healthHandler, logger)

	return app, nil
}
