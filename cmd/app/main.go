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

	"vidnag-tracker/internal/config"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/infra/adapters/gateway"
	"vidnag-tracker/internal/infra/adapters/telegram"
	"vidnag-tracker/internal/infra/api"
	"vidnag-tracker/internal/infra/logging"
	"vidnag-tracker/internal/infra/metrics"
	red "vidnag-tracker/internal/infra/redis"
	"vidnag-tracker/internal/infra/registry"
	"vidnag-tracker/internal/infra/sched"
	"vidnag-tracker/internal/infra/worker"
	"vidnag-tracker/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted URLs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Session + gateway ----
	session, err := gateway.ParseSession(cfg.Gateway.SessionToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("session token")
	}
	if session.Expired(time.Now()) {
		logger.Warn().Time("expired_at", session.ExpiresAt).Msg("session token already expired; every server call will fail")
	}
	ctx = logging.WithSessID(ctx, session.Key())
	gw := gateway.NewHTTPGateway(cfg.Gateway.BaseURL, session, cfg.Gateway.Visibility, cfg.Gateway.Timeout, logger)

	// ---- Registry ----
	reg := registry.NewMemoryRegistry()
	reg.Watch(func(snapshot []model.Job) {
		counts := map[string]int{}
		for _, j := range snapshot {
			counts[string(j.Kind)]++
		}
		metrics.SetRegistryJobs(counts,
			string(model.JobKindProvisional), string(model.JobKindTracked), string(model.JobKindLocalError))
	})

	// ---- Notifications ----
	pool := worker.NewPool(cfg.Workers.Notifications, logger)
	pool.Start(ctx)
	defer pool.Stop()

	var notifier adapter.Notifier = telegram.NewNoopNotifier(logger)
	if cfg.Telegram.Token != "" {
		tn, err := telegram.NewRealNotifier(&cfg.Telegram)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier unavailable; logging notifications instead")
		} else {
			notifier = tn
		}
	}

	// ---- Redis (optional submission limiter) ----
	limit := usecase.SubmitLimit{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window, SessionKey: session.Key()}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Error().Err(err).Msg("redis unavailable; submissions are not rate limited")
		} else {
			defer redisClient.Close()
			limit.Limiter = red.NewRateLimiter(redisClient)
		}
	}

	// ---- Use cases + poller ----
	reconcileUC := usecase.NewReconcileUseCase(reg, gw, notifier, pool, cfg.Poller.MaxConcurrent, logger)
	poller := sched.NewPoller(cfg.Poller.Interval, reconcileUC, reg, logger)
	submissionUC := usecase.NewSubmissionUseCase(reg, gw, poller, limit, cfg.Poller.MaxConcurrent, cfg.Runtime.Dev, logger)
	cancelUC := usecase.NewCancelUseCase(reg, gw, logger)
	recoveryUC := usecase.NewRecoveryUseCase(reg, gw, poller, logger)

	poller.Start(ctx)
	defer poller.Stop()

	recoverCtx, recoverCancel := context.WithTimeout(logging.WithTraceID(ctx, ""), cfg.Gateway.Timeout)
	if n, err := recoveryUC.Recover(recoverCtx); err != nil {
		logger.Error().Err(err).Msg("startup recovery failed; starting with an empty registry")
	} else {
		logger.Info().Int("jobs", n).Msg("startup recovery done")
	}
	recoverCancel()

	// ---- HTTP API ----
	srv := api.NewServer(reg, submissionUC, cancelUC, 0, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
