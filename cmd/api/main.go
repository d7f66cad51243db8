// Package main is the entrypoint for the link and QR service. It serves the
// REST API and the gRPC API from one process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/linkgate/linkgate/internal/analytics"
	"github.com/linkgate/linkgate/internal/cache"
	"github.com/linkgate/linkgate/internal/config"
	"github.com/linkgate/linkgate/internal/grpcapi"
	"github.com/linkgate/linkgate/internal/handler"
	"github.com/linkgate/linkgate/internal/logging"
	"github.com/linkgate/linkgate/internal/metrics"
	"github.com/linkgate/linkgate/internal/middleware"
	"github.com/linkgate/linkgate/internal/qr"
	"github.com/linkgate/linkgate/internal/ratelimit"
	"github.com/linkgate/linkgate/internal/server"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/shortcode"
	"github.com/linkgate/linkgate/internal/store"
	"github.com/linkgate/linkgate/internal/store/migrations"
	"github.com/linkgate/linkgate/internal/tracker"
	"github.com/linkgate/linkgate/internal/validation"
)

const serviceName = "linkgate"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg.LoggingOptions())
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	gen, err := shortcode.NewGenerator(cfg.ShortCodeLength)
	if err != nil {
		return err
	}

	var shutdown []namedShutdown
	checks := map[string]handler.HealthChecker{}

	backend, err := openStore(ctx, cfg, gen, logger)
	if err != nil {
		return err
	}
	if backend.close != nil {
		shutdown = append(shutdown, namedShutdown{"store", backend.close})
	}
	if backend.pinger != nil {
		checks[cfg.StoreDriver] = backend.pinger
	}

	var geo tracker.GeoLocator = tracker.NoopLocator{}
	if cfg.GeoIPDatabase != "" {
		db, err := tracker.OpenGeoIP(cfg.GeoIPDatabase)
		if err != nil {
			return err
		}
		geo = db
		shutdown = append(shutdown, namedShutdown{"geoip", func(context.Context) error { return db.Close() }})
		logger.Info("geoip_loaded", "path", cfg.GeoIPDatabase)
	}

	clicks := tracker.New(backend.events, tracker.Config{
		Geo:           geo,
		Device:        tracker.UserAgentParser{},
		EnrichTimeout: cfg.EnrichTimeout,
		Logger:        logger,
		Metrics:       recorder,
	})
	linkService := service.NewLinkService(backend.links, clicks, analytics.New(backend.events), service.Config{
		BaseURL: cfg.BaseURL,
		Logger:  logger,
		Metrics: recorder,
	})
	qrService := qr.NewService(logger, recorder, qr.WithRetention(cfg.QRRetention), qr.WithMaxStored(cfg.QRMaxStored))

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewLocal()
		if cfg.RedisURL != "" {
			cacheClient, err := cache.New(ctx, cfg.RedisURL)
			if err != nil {
				logger.Error(
					"failed to connect to Redis",
					slog.String("error", sanitizeError(err, cfg.RedisURL)),
					slog.String("redis_url", redactURL(cfg.RedisURL)),
				)
				return fmt.Errorf("connect redis: %w", err)
			}
			limiter = cacheClient
			checks["redis"] = cacheClient
			shutdown = append(shutdown, namedShutdown{"redis", func(context.Context) error { return cacheClient.Close() }})
			logger.Info("connected to Redis")
		}
	}

	validate := validation.New()
	router := setupRouter(routerDeps{
		links:    handler.NewLinkHandler(linkService, validate, logger),
		qrs:      handler.NewQRHandler(qrService, validate, logger),
		live:     handler.NewLiveHandler(linkService, cfg.LiveAnalyticsInterval, middleware.OriginChecker(cfg.GetCORSAllowedOrigins()), logger),
		health:   handler.NewHealthHandler(serviceName, linkService, checks),
		metrics:  handler.NewMetricsHandler(registry, nil),
		recorder: recorder,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	})

	grpcServer := grpcapi.NewServer(
		grpcapi.NewLinkServer(linkService, validate, logger),
		grpcapi.NewQRServer(qrService, validate, logger),
		logger,
	)

	srv := server.New(
		router,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)
	for _, s := range shutdown {
		srv.OnShutdown(s.name, s.fn)
	}
	srv.Go("grpc", func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return err
		}
		logger.Info("grpc_listening", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})
	srv.OnShutdown("grpc", stopGRPC(grpcServer))

	logger.Info("starting server",
		"port", cfg.AppPort,
		"grpc_port", cfg.GRPCPort,
		"store", cfg.StoreDriver,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)
	return srv.Run()
}

type namedShutdown struct {
	name string
	fn   server.ShutdownFunc
}

type storeBackend struct {
	links  store.LinkStore
	events tracker.EventLog
	pinger handler.HealthChecker
	close  server.ShutdownFunc
}

// openStore builds the link store and click log for the configured driver.
func openStore(ctx context.Context, cfg *config.Config, gen shortcode.Source, logger *slog.Logger) (storeBackend, error) {
	if cfg.StoreDriver != config.StorePostgres {
		events := tracker.NewMemoryLog()
		links := store.NewMemory(gen, store.WithMaxRetries(cfg.MaxCodeRetries), store.WithPurger(events))
		logger.Info("using in-memory store")
		return storeBackend{links: links, events: events}, nil
	}

	if cfg.RunMigrations {
		if err := migrations.Run(cfg.DatabaseURL, logger); err != nil {
			return storeBackend{}, fmt.Errorf("migrate: %s", sanitizeError(err, cfg.DatabaseURL))
		}
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return storeBackend{}, fmt.Errorf("connect database: %s", sanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("connected to database")

	pg := store.NewPostgres(pool, gen, cfg.MaxCodeRetries)
	return storeBackend{
		links:  pg,
		events: pg,
		pinger: pg,
		close: func(context.Context) error {
			pg.Close()
			return nil
		},
	}, nil
}

// stopGRPC drains in-flight calls and forces a stop when ctx expires.
func stopGRPC(s *grpc.Server) server.ShutdownFunc {
	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		}
	}
}

type routerDeps struct {
	links    *handler.LinkHandler
	qrs      *handler.QRHandler
	live     *handler.LiveHandler
	health   *handler.HealthHandler
	metrics  http.Handler
	recorder metrics.Recorder
	limiter  ratelimit.Limiter
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Metrics(d.recorder))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      d.cfg.IsDevelopment(),
		MaxRequestBodySize: d.cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", d.health.Health)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Method(http.MethodGet, "/metrics", d.metrics)

	limit := func(rule ratelimit.Rule) func(http.Handler) http.Handler {
		if d.limiter == nil {
			return nil
		}
		return middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: d.limiter,
			Rule:    rule,
			Logger:  d.logger,
			Metrics: d.recorder,
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		if general := limit(ratelimit.General); general != nil {
			r.Use(general)
		}
		limits := handler.Limits{Bulk: limit(ratelimit.Bulk), QR: limit(ratelimit.QR)}
		d.links.Routes(r, limits, d.live)
		d.qrs.Routes(r, limits)
	})

	d.links.PublicRoutes(r)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
