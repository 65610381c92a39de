package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parcelwatch/fraud-screening/internal/geocode"
	"github.com/parcelwatch/fraud-screening/internal/orders"
	"github.com/parcelwatch/fraud-screening/internal/screening"
	"github.com/parcelwatch/fraud-screening/internal/tracking"
	"github.com/parcelwatch/fraud-screening/pkg/common"
	"github.com/parcelwatch/fraud-screening/pkg/config"
	"github.com/parcelwatch/fraud-screening/pkg/database"
	"github.com/parcelwatch/fraud-screening/pkg/eventbus"
	"github.com/parcelwatch/fraud-screening/pkg/health"
	"github.com/parcelwatch/fraud-screening/pkg/logger"
	"github.com/parcelwatch/fraud-screening/pkg/middleware"
	"github.com/parcelwatch/fraud-screening/pkg/redis"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
	"github.com/parcelwatch/fraud-screening/pkg/secrets"
	"github.com/parcelwatch/fraud-screening/pkg/tracing"
)

const (
	serviceName    = "screening"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Server.Environment)
	defer logger.Sync()

	// Error reporting
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Server.Environment,
			Release:          serviceName + "@" + serviceVersion,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Distributed tracing
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(context.Background(), serviceName, serviceVersion, &cfg.Tracing)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("Tracing shutdown failed", zap.Error(err))
			}
		}()
	}

	// Resolve upstream API keys from the secret manager when *_REF
	// references are configured
	if err := resolveSecrets(context.Background(), cfg); err != nil {
		log.Fatalf("Failed to resolve secrets: %v", err)
	}

	// Connect to PostgreSQL
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(&cfg.Database); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}
	dbPool, err := database.NewDBPool(&cfg.Database, serviceName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()
	log.Println("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.NewRedisClient(&cfg.Redis, &cfg.Timeouts)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Event bus
	var bus *eventbus.Bus
	if cfg.PubSub.Enabled {
		bus, err = eventbus.NewBus(cfg.PubSub.URL, serviceName)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer bus.Close()
		log.Println("Connected to NATS")
	}

	// Upstream clients, each behind its own circuit breaker
	trackingBreaker := resilience.NewCircuitBreaker(
		resilience.BuildSettings("tracking-api", 0, 0, 5, 2), nil)
	geocodeBreaker := resilience.NewCircuitBreaker(
		resilience.BuildSettings("geocoding-api", 0, 0, 5, 2), nil)

	tracker := tracking.NewClient(&cfg.Tracking, trackingBreaker)
	geocoder := geocode.NewClient(&cfg.Geocoding, redisClient, geocodeBreaker)

	// Duplicate-order detector
	var store orders.Store
	switch cfg.Orders.StoreDriver {
	case "memory":
		store = orders.NewMemoryStore(nil)
	default:
		store = orders.NewPGStore(dbPool.Primary)
	}
	detector := orders.NewDetector(store, cfg.Screening.DuplicateOrderThreshold)

	// Screening engine and HTTP layer
	repo := screening.NewRepository(dbPool)

	var events screening.EventPublisher
	if bus != nil {
		events = bus
	}
	engine := screening.NewEngine(tracker, geocoder, detector, repo, events,
		screening.PolicyFromConfig(&cfg.Screening))
	handler := screening.NewHandler(engine, repo)

	logger.Info("Screening policy loaded",
		zap.String("drop_off_scan_policy", cfg.Screening.DropOffScanPolicy),
		zap.Float64("distance_threshold_miles", cfg.Screening.DistanceThresholdMiles),
		zap.Int("duplicate_order_threshold", cfg.Screening.DuplicateOrderThreshold),
	)

	// Feed newly created orders into the duplicate detector
	if bus != nil {
		if err := screening.SubscribeOrderEvents(context.Background(), bus, engine); err != nil {
			log.Fatalf("Failed to subscribe to order events: %v", err)
		}
	}

	// Set up Gin router
	router := gin.New()
	router.Use(middleware.Recovery())
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders())
	if cfg.Tracing.Enabled {
		router.Use(middleware.Tracing(serviceName))
	}
	router.Use(middleware.Timeout(time.Duration(cfg.Server.WriteTimeout) * time.Second))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	router.GET("/healthz", common.HealthCheck(serviceName, serviceVersion))
	router.GET("/health/ready", common.HealthCheckWithDeps(serviceName, serviceVersion, map[string]func() error{
		"database": health.PoolChecker(dbPool.Primary),
		"redis":    health.RedisChecker(redisClient.Client),
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	handler.RegisterRoutes(router)

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Screening service listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down screening service")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	if bus != nil {
		if err := bus.Drain(); err != nil {
			logger.Warn("Event bus drain failed", zap.Error(err))
		}
	}

	logger.Info("Screening service stopped")
}

// resolveSecrets swaps *_REF references for their secret values. Plain API
// keys from the environment are left as-is.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	if cfg.Secrets.Provider == "" {
		return nil
	}
	if cfg.Tracking.APIKeyRef == "" && cfg.Geocoding.APIKeyRef == "" {
		return nil
	}

	manager, err := secrets.NewManager(secrets.Config{
		Provider: secrets.ProviderType(cfg.Secrets.Provider),
		Vault: secrets.VaultConfig{
			Address:   cfg.Secrets.VaultAddress,
			Token:     cfg.Secrets.VaultToken,
			MountPath: cfg.Secrets.VaultMount,
		},
		AWS: secrets.AWSConfig{Region: cfg.Secrets.AWSRegion},
		GCP: secrets.GCPConfig{ProjectID: cfg.Secrets.GCPProject},
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	if cfg.Tracking.APIKeyRef != "" {
		ref, err := secrets.ParseReference("tracking-api-key", secrets.SecretTrackingAPI, cfg.Tracking.APIKeyRef)
		if err != nil {
			return fmt.Errorf("parse TRACKING_API_KEY_REF: %w", err)
		}
		value, err := manager.GetString(ctx, ref)
		if err != nil {
			return fmt.Errorf("resolve tracking API key: %w", err)
		}
		cfg.Tracking.APIKey = value
	}

	if cfg.Geocoding.APIKeyRef != "" {
		ref, err := secrets.ParseReference("geocoding-api-key", secrets.SecretGeocodingAPI, cfg.Geocoding.APIKeyRef)
		if err != nil {
			return fmt.Errorf("parse GEOCODING_API_KEY_REF: %w", err)
		}
		value, err := manager.GetString(ctx, ref)
		if err != nil {
			return fmt.Errorf("resolve geocoding API key: %w", err)
		}
		cfg.Geocoding.APIKey = value
	}

	return nil
}
