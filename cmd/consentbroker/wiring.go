package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"consentbroker/internal/audit"
	"consentbroker/internal/blob"
	consentmetrics "consentbroker/internal/consent/metrics"
	consentservice "consentbroker/internal/consent/service"
	consentstore "consentbroker/internal/consent/store"
	"consentbroker/internal/directory"
	dircache "consentbroker/internal/directory/cache"
	dirmetrics "consentbroker/internal/directory/metrics"
	"consentbroker/internal/platform/config"
	"consentbroker/internal/platform/database"
	redisclient "consentbroker/internal/platform/redis"
	"consentbroker/internal/platform/tracer"
	"consentbroker/internal/reconcile"
)

// core holds the stores and services shared by serve and the operator
// commands. Postgres backs everything when DATABASE_URL is set; otherwise
// state lives in memory for the life of the process.
type core struct {
	pool      *database.Pool
	redis     *redisclient.Client
	records   consentstore.Store
	tx        consentservice.ConsentStoreTx
	auditLog  consentservice.AuditReader
	directory directory.Store
	metrics   *consentmetrics.Metrics
	tracer    tracer.Tracer
}

func buildCore(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*core, error) {
	c := &core{
		metrics: consentmetrics.NewWithRegisterer(reg),
		tracer:  tracer.NewOTel(),
	}

	pool, err := database.New(ctx, database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	c.pool = pool

	var source directory.Store
	if pool != nil {
		db := pool.DB()
		c.records = consentstore.NewPostgres(db)
		c.auditLog = audit.NewPostgres(db)
		c.tx = consentservice.NewPostgresTx(db, cfg.ConsentTxTimeout)
		pgDirectory := directory.NewPostgresStore(db)
		if cfg.DirectorySeedFile != "" {
			if err := seedPostgres(ctx, pgDirectory, cfg.DirectorySeedFile); err != nil {
				c.Close()
				return nil, err
			}
		}
		source = pgDirectory
		logger.Info("using postgres stores")
	} else {
		records := consentstore.New()
		auditLog := audit.NewInMemoryStore()
		c.records = records
		c.auditLog = auditLog
		c.tx = consentservice.NewMemoryTx(records, auditLog,
			consentservice.WithMemoryTxTimeout(cfg.ConsentTxTimeout),
			consentservice.WithMemoryTxMetrics(c.metrics),
		)
		memDirectory := directory.NewInMemoryStore()
		if cfg.DirectorySeedFile != "" {
			if err := memDirectory.LoadSeedFile(cfg.DirectorySeedFile); err != nil {
				return nil, fmt.Errorf("load directory seed: %w", err)
			}
		}
		source = memDirectory
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if cfg.RedisURL != "" {
		client, err := redisclient.New(ctx, redisclient.DefaultConfig(cfg.RedisURL, cfg.RedisPoolSize), reg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.redis = client
	}

	c.directory, err = c.cachedDirectory(cfg, logger, reg, source)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *core) cachedDirectory(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer, source directory.Store) (directory.Store, error) {
	var backend dircache.Backend
	switch cfg.DirectoryCache {
	case config.CacheNone:
		return source, nil
	case config.CacheMemory:
		backend = dircache.NewLRUBackend(cfg.DirectoryCacheMax, cfg.DirectoryCacheTTL)
	case config.CacheRedis:
		if c.redis == nil {
			return nil, errors.New("redis directory cache needs REDIS_URL")
		}
		backend = dircache.NewRedisBackend(c.redis.Client, cfg.DirectoryCacheTTL)
	default:
		return nil, fmt.Errorf("unknown directory cache %q", cfg.DirectoryCache)
	}
	logger.Info("directory cache enabled", "backend", cfg.DirectoryCache, "ttl", cfg.DirectoryCacheTTL)
	return dircache.New(source, backend,
		dircache.WithMetrics(dirmetrics.NewWithRegisterer(reg)),
		dircache.WithLogger(logger),
	), nil
}

func seedPostgres(ctx context.Context, store *directory.PostgresStore, path string) error {
	parties, items, err := directory.ParseSeedFile(path)
	if err != nil {
		return fmt.Errorf("load directory seed: %w", err)
	}
	if err := store.Upsert(ctx, parties, items); err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}
	return nil
}

// reconciler wires owner reconciliation over the shared stores.
func (c *core) reconciler(logger *slog.Logger) *reconcile.Service {
	return reconcile.New(c.records, c.directory, logger,
		reconcile.WithMetrics(c.metrics),
		reconcile.WithTracer(c.tracer),
	)
}

// blobRouter registers every backend that can be constructed in this
// environment. Cloud backends whose credentials are missing are skipped.
func blobRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger) *blob.Router {
	httpClient := &http.Client{Timeout: cfg.BlobFetchTimeout}
	backends := []blob.Backend{blob.NewHTTPBackend(httpClient)}
	if !cfg.IsProduction() {
		backends = append(backends, blob.NewInsecureHTTPBackend(httpClient))
	}

	s3Client, err := blob.NewS3Client(ctx, blob.S3Config{Region: cfg.AWSRegion, Endpoint: cfg.S3Endpoint})
	if err != nil {
		logger.Warn("s3 blob backend disabled", "error", err)
	} else {
		backends = append(backends, blob.NewS3Backend(s3Client))
	}

	gcsClient, err := blob.NewGCSClient(ctx)
	if err != nil {
		logger.Warn("gcs blob backend disabled", "error", err)
	} else {
		backends = append(backends, blob.NewGCSBackend(blob.GCSClientOpener{Client: gcsClient}))
	}

	return blob.NewRouter(backends,
		blob.WithTimeout(cfg.BlobFetchTimeout),
		blob.WithLogger(logger),
	)
}

func (c *core) Close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.pool != nil {
		_ = c.pool.Close()
	}
}
