package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intent-payment-gateway/config"
	httpHandler "intent-payment-gateway/internal/adapter/http/handler"
	"intent-payment-gateway/internal/adapter/provider"
	pgStorage "intent-payment-gateway/internal/adapter/storage/postgres"
	redisStorage "intent-payment-gateway/internal/adapter/storage/redis"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/internal/service"
	"intent-payment-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Intent Payment Gateway")

	// An empty webhook secret means unsigned webhooks are accepted. Tolerable
	// locally, never in release mode.
	if cfg.Provider.WebhookSecret == "" && cfg.Server.Mode == "release" {
		log.Fatal().Msg("provider.webhook_secret must be set in release mode")
	}

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	apiKeyRepo := pgStorage.NewAPIKeyRepo(pool)
	webhookRepo := pgStorage.NewWebhookEventRepo(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()

	// Provider adapter
	providerClient := provider.NewClient(cfg.Provider, log)
	tokenCatalog := provider.NewTokenCatalog(cfg.Provider, log)

	// Initialize business services
	authSvc := service.NewAuthService(apiKeyRepo, hashSvc, encSvc, sigSvc, nonceStore, log)
	paymentSvc := service.NewPaymentService(paymentRepo, providerClient, tokenCatalog, log)
	reconcileSvc := service.NewReconcileService(paymentRepo, webhookRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background reconciler: expiry, execution retry, status polling
	reconciler := service.NewReconciler(
		paymentRepo,
		providerClient,
		cfg.Reconciler.Interval,
		cfg.Reconciler.BatchSize,
		cfg.Reconciler.PaymentExpiry,
		log,
	)
	reconcilerCtx, stopReconciler := context.WithCancel(ctx)
	go reconciler.Run(reconcilerCtx)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		ReconcileSvc:   reconcileSvc,
		Auth:           authSvc,
		SigSvc:         sigSvc,
		WebhookRepo:    webhookRepo,
		IdemCache:      idempotencyCache,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		WebhookSecret:  cfg.Provider.WebhookSecret,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
