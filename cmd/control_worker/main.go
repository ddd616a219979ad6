package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mamang/control_services/internal/bootstrap"
	"github.com/mamang/control_services/internal/platform/config"
	"github.com/mamang/control_services/internal/platform/logger"
	"github.com/mamang/control_services/internal/platform/messagebroker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load("control_worker")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Control worker starting...", "log_level", cfg.LogLevel, "queue_group", cfg.WorkerQueueGroup)

	if cfg.StoreDriver == config.StoreDriverMemory {
		appLogger.Error("The worker needs a shared store; STORE_DRIVER=memory runs the workers inside control_api")
		os.Exit(1)
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, "control-worker", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	comps, err := bootstrap.Build(mainCtx, cfg, natsClient, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialise components", "error", err)
		os.Exit(1)
	}
	defer comps.Close()

	// gRPC health endpoint for orchestrator probes.
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.WorkerHealthGRPCPort))
	if err != nil {
		appLogger.Error("Failed to listen for gRPC health", "port", cfg.WorkerHealthGRPCPort, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		return comps.MessageJobs.Start(groupCtx, cfg.WorkerQueueGroup)
	})
	g.Go(func() error {
		return comps.SubscriptionJobs.Start(groupCtx, cfg.WorkerQueueGroup)
	})
	g.Go(func() error {
		appLogger.Info("gRPC health server listening", "port", cfg.WorkerHealthGRPCPort)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		appLogger.Info("Metrics server listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown error", "error", err)
		}
		return nil
	})

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	appLogger.Info("Control worker ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var groupErr error
	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case groupErr = <-watchGroup(g):
		appLogger.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Error during graceful shutdown", "error", err)
	}
	appLogger.Info("Control worker shut down.")
}

func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
