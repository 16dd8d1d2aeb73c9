package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clearway-webhooks/config"
	httpHandler "clearway-webhooks/internal/adapter/http/handler"
	"clearway-webhooks/internal/adapter/messaging"
	pgStorage "clearway-webhooks/internal/adapter/storage/postgres"
	redisStorage "clearway-webhooks/internal/adapter/storage/redis"
	"clearway-webhooks/internal/core/ports"
	"clearway-webhooks/internal/metrics"
	"clearway-webhooks/internal/service"
	"clearway-webhooks/pkg/logger"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	issueToken := flag.String("issue-token", "", "print a management API token for the given owner UUID and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Clearway webhook service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		applied, err := pgStorage.Migrate(ctx, pool, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Int("applied", applied).Msg("Migrations up to date")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	endpointRepo := pgStorage.NewEndpointRepo(pool)
	deliveryRepo := pgStorage.NewDeliveryRepo(pool)
	inboundLogRepo := pgStorage.NewInboundLogRepo(pool)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	appMetrics := metrics.New()

	transport := service.NewHTTPTransport(&http.Client{}, service.TransportConfig{
		Timeout:            cfg.Webhook.Timeout,
		BreakerMaxFailures: cfg.Webhook.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.Webhook.BreakerOpenTimeout,
	}, logger.Component(log, "transport"))

	// Internal event bus for routed inbound events
	bus := messaging.NewEventBus(logger.Component(log, "eventbus"))
	defer bus.Close()
	consumers, err := messaging.NewRouter(bus.Subscriber(), logger.Component(log, "consumer"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build event consumers")
	}
	go func() {
		if err := consumers.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Event consumers stopped")
		}
	}()
	<-consumers.Running()

	// Initialize business services
	webhookSvc := service.NewWebhookService(
		endpointRepo,
		deliveryRepo,
		encSvc,
		sigSvc,
		transport,
		appMetrics,
		logger.Component(log, "webhook"),
	)
	eventRouter := service.NewEventRouter(bus, logger.Component(log, "router"))
	inboundSvc := service.NewInboundService(
		inboundLogRepo,
		sigSvc,
		eventRouter,
		appMetrics,
		cfg.Inbound.Secret,
		cfg.Inbound.Tolerance,
		logger.Component(log, "inbound"),
	)

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.RateLimit.Enabled {
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	deps := httpHandler.RouterDeps{
		WebhookSvc:     webhookSvc,
		InboundSvc:     inboundSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		Metrics:        appMetrics.Handler(),
		Mode:           cfg.Server.Mode,
		Logger:         log,
	}
	if rateLimitStore != nil {
		deps.RateLimitStore = rateLimitStore
	}
	router := httpHandler.SetupRouter(deps)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := consumers.Close(); err != nil {
		log.Error().Err(err).Msg("Event consumers forced to close")
	}

	log.Info().Msg("Server exited")
}

// printToken writes a signed management token for ownerID to stdout.
func printToken(cfg *config.Config, ownerID string) error {
	id, err := uuid.Parse(ownerID)
	if err != nil {
		return fmt.Errorf("invalid owner id: %w", err)
	}
	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer).Generate(id)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
