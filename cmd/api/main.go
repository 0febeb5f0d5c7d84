package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sevapay/config"
	"sevapay/internal/adapter/aggregator"
	"sevapay/internal/adapter/gateway"
	httpHandler "sevapay/internal/adapter/http/handler"
	pgStorage "sevapay/internal/adapter/storage/postgres"
	redisStorage "sevapay/internal/adapter/storage/redis"
	"sevapay/internal/core/ports"
	"sevapay/internal/metrics"
	"sevapay/internal/service"
	"sevapay/pkg/logger"
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
		Msg("Starting SevaPay wallet core")

	ctx := context.Background()

	metrics.Init()

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
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	appRepo := pgStorage.NewApplicationRepo(pool)
	orderRepo := pgStorage.NewRechargeOrderRepo(pool)
	topupRepo := pgStorage.NewTopupOrderRepo(pool)
	operatorRepo := pgStorage.NewOperatorRepo(pool)
	feeRepo := pgStorage.NewFeeConfigRepo(pool, ports.FeeConfig{
		GSTBps:      cfg.Fees.GSTBps,
		PlatformFee: cfg.Fees.PlatformFee,
	})
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	callbackDedupe := redisStorage.NewCallbackDedupe(rdb)
	planCache := redisStorage.NewPlanCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize external clients
	aggregatorClient := aggregator.NewClient(cfg.Aggregator, log)
	gatewayClient := gateway.NewClient(cfg.Gateway, log)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	notifier := service.NewChannelBalanceNotifier()

	// Initialize business services
	walletSvc := service.NewWalletService(walletRepo, ledgerRepo, transactor, notifier, log)
	feeSvc := service.NewFeeService(feeRepo)
	settlementSvc := service.NewSettlementService(appRepo, walletSvc, feeSvc, transactor, log)
	rechargeSvc := service.NewRechargeService(
		orderRepo,
		operatorRepo,
		walletSvc,
		aggregatorClient,
		planCache,
		cfg.Reconcile.MinAge,
		cfg.Reconcile.Batch,
		log,
	)
	topupSvc := service.NewTopupService(walletSvc, feeSvc, topupRepo, gatewayClient, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		TopupSvc:       topupSvc,
		SettlementSvc:  settlementSvc,
		RechargeSvc:    rechargeSvc,
		TokenSvc:       tokenSvc,
		Notifier:       notifier,
		CallbackDedupe: callbackDedupe,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// Reconciliation loop: sweep stale PENDING_CONFIRMATION orders through
	// the aggregator's status API. Webhooks normally win the race; the sweep
	// covers deliveries that never arrive.
	reconcileCtx, stopReconcile := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.Reconcile.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-reconcileCtx.Done():
				return
			case <-ticker.C:
				resolved, err := rechargeSvc.ResolvePending(reconcileCtx)
				if err != nil {
					log.Error().Err(err).Msg("pending-confirmation sweep failed")
					continue
				}
				if resolved > 0 {
					log.Info().Int("resolved", resolved).Msg("pending-confirmation sweep")
				}
			}
		}
	}()

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

	stopReconcile()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
