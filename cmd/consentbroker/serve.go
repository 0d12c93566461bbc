package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"consentbroker/internal/admin"
	consenthandler "consentbroker/internal/consent/handler"
	consentservice "consentbroker/internal/consent/service"
	jwttoken "consentbroker/internal/jwt_token"
	"consentbroker/internal/platform/config"
	"consentbroker/internal/platform/health"
	"consentbroker/internal/platform/kafka"
	"consentbroker/internal/platform/kafka/producer"
	"consentbroker/internal/platform/middleware"
	outboxmetrics "consentbroker/pkg/platform/audit/outbox/metrics"
	outboxpg "consentbroker/pkg/platform/audit/outbox/store/postgres"
	"consentbroker/pkg/platform/audit/outbox/worker"
	"consentbroker/pkg/validation"
)

const (
	shutdownTimeout   = 10 * time.Second
	redisStatsEvery   = 15 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audit outbox worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := buildCore(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer c.Close()

	consent := consentservice.New(c.records, c.tx, c.auditLog, c.directory, logger,
		consentservice.WithMetrics(c.metrics),
		consentservice.WithTracer(c.tracer),
		consentservice.WithFetcher(blobRouter(ctx, cfg, logger)),
	)

	healthHandler := health.New(cfg.Env)
	if c.pool != nil {
		healthHandler.RegisterCheck("postgres", c.pool.Health)
	}
	if c.redis != nil {
		healthHandler.RegisterCheck("redis", c.redis.Health)
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.pool != nil {
		publisher, closePublisher, err := auditPublisher(cfg, logger)
		if err != nil {
			return err
		}
		defer closePublisher()
		if cfg.KafkaBrokers != "" {
			healthHandler.RegisterCheck("kafka", publisher.Healthy)
		}
		w := worker.New(outboxpg.New(c.pool.DB()), publisher,
			worker.WithTopic(cfg.AuditTopic),
			worker.WithPollInterval(cfg.OutboxPollInterval),
			worker.WithRetention(cfg.OutboxRetention),
			worker.WithMetrics(outboxmetrics.NewWithRegisterer(reg)),
			worker.WithLogger(logger),
		)
		g.Go(func() error { return w.Run(gctx) })
	}
	if c.redis != nil {
		g.Go(func() error { return c.redis.RunPoolStats(gctx, redisStatsEvery) })
	}

	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, defaultTokenTTL))
	router := newRouter(routerDeps{
		logger:    logger,
		registry:  reg,
		validator: validator,
		health:    healthHandler,
		consent:   consenthandler.New(consent, logger),
		admin:     admin.New(c.reconciler(logger), logger),
		timeout:   cfg.BlobFetchTimeout + 2*cfg.ConsentTxTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// healthyPublisher is an outbox publisher that can report broker health.
type healthyPublisher interface {
	worker.Publisher
	Healthy(ctx context.Context) error
}

// auditPublisher returns the Kafka producer, or a discarding one when no
// brokers are configured.
func auditPublisher(cfg *config.Config, logger *slog.Logger) (healthyPublisher, func(), error) {
	if cfg.KafkaBrokers == "" {
		logger.Warn("KAFKA_BROKERS not set, audit entries will not be published")
		return producer.NewNoopProducer(logger), func() {}, nil
	}
	p, err := producer.New(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

type routerDeps struct {
	logger    *slog.Logger
	registry  *prometheus.Registry
	validator middleware.TokenValidator
	health    *health.Handler
	consent   *consenthandler.Handler
	admin     *admin.Handler
	timeout   time.Duration
}

func newRouter(d routerDeps) chi.Router {
	httpMetrics := middleware.NewMetrics(d.registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.logger))
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.BodyLimit(validation.MaxBodySize))
	r.Use(httpMetrics.Instrument)

	d.health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.validator, d.logger))
		r.Use(middleware.Timeout(d.timeout))
		d.consent.Register(r)
		d.admin.Register(r)
	})
	return r
}
