// Package main wires together the channel liveness service.
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

	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/api"
	"github.com/JakeFAU/channel-liveness/internal/app"
	"github.com/JakeFAU/channel-liveness/internal/clock/system"
	"github.com/JakeFAU/channel-liveness/internal/config"
	"github.com/JakeFAU/channel-liveness/internal/controller"
	"github.com/JakeFAU/channel-liveness/internal/id/uuid"
	"github.com/JakeFAU/channel-liveness/internal/logging"
	"github.com/JakeFAU/channel-liveness/internal/metrics"
	"github.com/JakeFAU/channel-liveness/internal/policy/ratelimit"
	"github.com/JakeFAU/channel-liveness/internal/prober"
	"github.com/JakeFAU/channel-liveness/internal/progress"
	"github.com/JakeFAU/channel-liveness/internal/scheduler"
	"github.com/JakeFAU/channel-liveness/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	telemetry.Init()
	reportLoc, err := cfg.ReportLocation()
	if err != nil {
		return err
	}
	clock := system.New()

	stores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	sinkList, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")}, sinkList...)

	var probeOpts []prober.Option
	probeOpts = append(probeOpts, prober.WithLogger(logger.Named("prober")))
	if cfg.RateLimit.Enabled {
		probeOpts = append(probeOpts, prober.WithLimiter(ratelimit.New(ratelimit.Config{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		})))
	}
	probe := prober.New(cfg.ProberConfig(), probeOpts...)

	ctrl := controller.New(probe,
		controller.WithBatchSize(cfg.Controller.BatchSize),
		controller.WithClock(clock),
		controller.WithIDGenerator(uuid.New()),
		controller.WithResultWriter(stores.writer),
		controller.WithEmitter(hub),
		controller.WithLogger(logger.Named("controller")),
	)

	archive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	delivery, err := buildNotifiers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer delivery.close()

	svcOpts := []app.Option{
		app.WithNotifier(delivery.multi),
		app.WithWebhooks(delivery.webhooks),
		app.WithLocation(reportLoc),
		app.WithClock(clock),
		app.WithLogger(logger),
	}
	if archive != nil {
		svcOpts = append(svcOpts, app.WithArchive(archive))
	}
	svc := app.New(stores.lister, ctrl, svcOpts...)

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched, err = buildScheduler(cfg, svc, clock, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	apiServer := api.NewServer(svc, ctrl, stores.states, api.Options{
		APIKey:         apiKey,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
		Ready:          stores.ready,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
	if ctrl.CancelRun() {
		logger.Info("active run cancelled for shutdown")
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		logger.Warn("pending reports not delivered before shutdown", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
