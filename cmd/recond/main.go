package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/goods-receipt/internal/app"
	"github.com/joseph-ayodele/goods-receipt/internal/async"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/ingest"
)

func main() {
	inmem := flag.Bool("inmem", false, "use the in-memory store instead of Postgres")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, false)
	slog.SetDefault(logger)

	if err := cfg.Validate(!*inmem); err != nil {
		logger.Error("recond.config.invalid", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{InMemory: *inmem, Migrate: true}, logger)
	if err != nil {
		logger.Error("recond.init.failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := os.MkdirAll(cfg.Pipeline.InboxDir, 0o755); err != nil {
		logger.Error("recond.inbox.failed", "dir", cfg.Pipeline.InboxDir, "error", err)
		os.Exit(1)
	}

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
	)
	feeder := ingest.NewFeeder(a.Ingestor, queue, a.Store.Repos().Results, cfg.Pipeline.InboxDir, logger)

	events, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Pipeline.InboxDir},
		InitialScan: true,
		Debounce:    2 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("recond.watcher.failed", "error", err)
		os.Exit(1)
	}
	go feeder.Run(ctx, events)

	stopRescan, err := feeder.ScheduleRescan(ctx, cfg.Pipeline.RescanSchedule)
	if err != nil {
		logger.Error("recond.rescan.failed", "error", err)
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("recond.listen.failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("recond.grpc.serve_failed", "error", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("recond.metrics.serve_failed", "error", err)
		}
	}()

	logger.Info("recond.started",
		"inbox", cfg.Pipeline.InboxDir,
		"grpc", cfg.Server.GRPCAddr,
		"metrics", cfg.Server.MetricsAddr,
		"workers", cfg.Pipeline.Workers,
		"strategies", a.Cascade.Strategies(),
	)

	<-ctx.Done()
	logger.Info("recond.stopping")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	stopRescan()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("recond.metrics.shutdown_failed", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("recond.stopped")
}
