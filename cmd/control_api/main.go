package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mamang/control_services/internal/bootstrap"
	"github.com/mamang/control_services/internal/platform/config"
	"github.com/mamang/control_services/internal/platform/logger"
	"github.com/mamang/control_services/internal/platform/messagebroker"
)

const (
	shutdownTimeout      = 15 * time.Second
	consumerReadyTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load("control_api")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Control API starting...", "log_level", cfg.LogLevel, "store_driver", cfg.StoreDriver)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// With the memory store the workers run in this process, on a local bus.
	inProcess := cfg.StoreDriver == config.StoreDriverMemory
	var broker messagebroker.Broker
	var bus *messagebroker.LocalBus
	if inProcess {
		bus = messagebroker.NewLocalBus()
		defer bus.Close()
		broker = bus
	} else {
		natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, "control-api", appLogger)
		if err != nil {
			appLogger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		appLogger.Info("Successfully connected to NATS")
		broker = natsClient
	}

	comps, err := bootstrap.Build(mainCtx, cfg, broker, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialise components", "error", err)
		os.Exit(1)
	}
	defer comps.Close()

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ControlAPIPort),
		Handler:           comps.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	if inProcess {
		g.Go(func() error { return comps.MessageJobs.Start(groupCtx, cfg.WorkerQueueGroup) })
		g.Go(func() error { return comps.SubscriptionJobs.Start(groupCtx, cfg.WorkerQueueGroup) })

		readyCtx, readyCancel := context.WithTimeout(groupCtx, consumerReadyTimeout)
		err := bus.WaitForSubscribers(readyCtx, bootstrap.ConsumerSubjects()...)
		readyCancel()
		if err != nil {
			appLogger.Error("In-process workers did not start", "error", err)
			mainCancel()
			_ = g.Wait()
			os.Exit(1)
		}
		appLogger.Info("In-process workers ready")
	}
	g.Go(func() error {
		appLogger.Info("Control API listening", "port", cfg.ControlAPIPort)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control API server: %w", err)
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Control API shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown error", "error", err)
		}
		return nil
	})

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
	appLogger.Info("Control API shut down.")
}

func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
