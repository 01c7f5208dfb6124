package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mpesa-subscription-billing/internal/config"
	payAdapters "mpesa-subscription-billing/internal/infra/adapters/payment"
	pg "mpesa-subscription-billing/internal/infra/db/postgres"
	httpapi "mpesa-subscription-billing/internal/infra/http"
	"mpesa-subscription-billing/internal/infra/logging"
	"mpesa-subscription-billing/internal/infra/metrics"
	red "mpesa-subscription-billing/internal/infra/redis"
	"mpesa-subscription-billing/internal/infra/sched"
	"mpesa-subscription-billing/internal/infra/web"
	"mpesa-subscription-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	if err := pg.RunMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	tokenRepo := pg.NewTokenRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Gateway ----
	gateway, err := payAdapters.NewDarajaGateway(
		cfg.Mpesa.Environment,
		cfg.Mpesa.ConsumerKey,
		cfg.Mpesa.ConsumerSecret,
		cfg.Mpesa.Shortcode,
		cfg.Mpesa.Passkey,
		cfg.Mpesa.CallbackURL,
		cfg.Mpesa.Timeout,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("daraja gateway init failed")
	}

	// ---- Use cases ----
	tokenUC := usecase.NewTokenUseCase(tokenRepo, gateway, logger)
	paymentUC := usecase.NewPaymentUseCase(payRepo, subRepo, planRepo, tokenUC, gateway, tm, rateLimiter, cfg.RateLimit, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, tm, logger)
	userUC := usecase.NewUserUseCase(userRepo, tm, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, subRepo, payRepo, logger)

	// ---- Public payment API ----
	apiServer := httpapi.NewServer(cfg, paymentUC, planUC, logger)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("payment API stopped")
		}
	}()

	// ---- Admin API ----
	adminServer := web.NewServer(cfg, statsUC, userUC, subUC, planUC, paymentUC, logger)
	go func() {
		if err := adminServer.Start(cfg.Admin.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin API stopped")
		}
	}()

	// ---- Workers ----
	expiryWorker := sched.NewExpiryWorker(cfg.Worker.ExpiryInterval, subUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	staleWorker := sched.NewStalePaymentWorker(cfg.Worker.StalePaymentInterval, cfg.Worker.StalePaymentAge, paymentUC, logger)
	go func() { _ = staleWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("payment API shutdown")
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin API shutdown")
	}
}
