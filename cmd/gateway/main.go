// Package main is the entrypoint for the protocol gateway.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/linkgate/linkgate/internal/config"
	"github.com/linkgate/linkgate/internal/gateway"
	"github.com/linkgate/linkgate/internal/grpcapi"
	"github.com/linkgate/linkgate/internal/handler"
	"github.com/linkgate/linkgate/internal/logging"
	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/server"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg.LoggingOptions())
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.GatewayConfig, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	linkClient, err := grpcapi.Dial(cfg.LinkGRPCAddr)
	if err != nil {
		return err
	}
	qrClient := linkClient
	if cfg.QRGRPCAddr != cfg.LinkGRPCAddr {
		if qrClient, err = grpcapi.Dial(cfg.QRGRPCAddr); err != nil {
			_ = linkClient.Close()
			return err
		}
	}

	gw := gateway.New(
		gateway.NewRESTBackend(&http.Client{}, cfg.LinkRESTURL, cfg.QRRESTURL),
		gateway.NewGRPCBackend(linkClient, qrClient),
		gateway.Config{Timeout: cfg.BackendTimeout, Logger: logger, Metrics: recorder},
	)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(middleware.DefaultSecurityConfig().MaxRequestBodySize))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)
	r.Method(http.MethodGet, "/metrics", handler.NewMetricsHandler(registry, nil))
	gw.Routes(r)

	srv := server.New(r, cfg.Port, cfg.ReadTimeout, cfg.WriteTimeout, cfg.ShutdownTimeout, logger)
	srv.OnShutdown("grpc_clients", func(context.Context) error {
		if qrClient != linkClient {
			_ = qrClient.Close()
		}
		return linkClient.Close()
	})

	logger.Info("starting gateway",
		"port", cfg.Port,
		"link_rest", cfg.LinkRESTURL,
		"qr_rest", cfg.QRRESTURL,
		"link_grpc", cfg.LinkGRPCAddr,
		"qr_grpc", cfg.QRGRPCAddr,
		"backend_timeout", cfg.BackendTimeout,
	)
	return srv.Run()
}
