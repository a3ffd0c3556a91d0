// Command feather runs the account service HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/feather-app/feather/pkg/accounts"
	"github.com/feather-app/feather/pkg/api"
	"github.com/feather-app/feather/pkg/auth"
	"github.com/feather-app/feather/pkg/avatars"
	"github.com/feather-app/feather/pkg/config"
	"github.com/feather-app/feather/pkg/facebook"
	"github.com/feather-app/feather/pkg/httputil"
	"github.com/feather-app/feather/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.LogLevel), os.Stdout)
	subsystemLog := logrus.New()
	subsystemLog.SetFormatter(&logrus.JSONFormatter{})

	otelProviders, err := observability.InitOTel(context.Background(), observability.OTelConfig{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: cfg.OTelServiceVersion,
		Insecure:       cfg.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("telemetry setup failed")
		os.Exit(1)
	}

	db, err := accounts.Open(cfg)
	if err != nil {
		logger.WithError(err).Error("database connection failed")
		os.Exit(1)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := accounts.EnsureSchema(ctx, db); err != nil {
			cancel()
			logger.WithError(err).Error("schema setup failed")
			os.Exit(1)
		}
		cancel()
	}

	avatarStore, err := avatars.NewS3Store(context.Background(), cfg, subsystemLog)
	if err != nil {
		logger.WithError(err).Error("avatar store setup failed")
		os.Exit(1)
	}

	store := accounts.NewStore(db, avatarStore, cfg.BcryptCost, logger)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	graph := facebook.NewClient(cfg.FacebookGraphURL, cfg.FacebookTimeout, subsystemLog)
	local := auth.NewLocalStrategy(store)
	delegated := auth.NewFacebookStrategy(graph, store, tokens, avatarStore)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	server := api.NewServer(db, store, tokens, local, delegated, graph, avatarStore, logger, metrics)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
		httputil.RecoveryMiddleware(logger),
		httputil.CORSMiddleware([]string{"*"}),
		httputil.MaxBytesMiddleware(1<<20),
	)(server)
	handler = otelhttp.NewHandler(handler, "feather-api")

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", observability.MetricsHandler(registry))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr(),
		Handler: metricsMux,
	}

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.ObserveDBPool(db)
		}
	}()

	go func() {
		logger.WithField("addr", metricsServer.Addr).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("shutdown incomplete")
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("metrics shutdown incomplete")
	}
	if err := observability.ShutdownOTel(ctx, otelProviders, logger); err != nil {
		logger.WithError(err).Warn("telemetry shutdown incomplete")
	}
}
