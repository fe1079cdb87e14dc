// Command apiserver serves the vehicle test record API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/application/records"
	"github.com/turtacn/vehicle-test-records/internal/config"
	"github.com/turtacn/vehicle-test-records/internal/domain/expiry"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/postgres"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/redis"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/vehicle-test-records/internal/interfaces/http"
	"github.com/turtacn/vehicle-test-records/internal/interfaces/http/handlers"
	"github.com/turtacn/vehicle-test-records/internal/interfaces/http/middleware"
	"github.com/turtacn/vehicle-test-records/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const poolStatsInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the configuration file (default: search ./configs and .)")
	watch := flag.Bool("watch-config", false, "log configuration file changes")
	flag.Parse()

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	logging.SetDefault(logger)

	logger.Info("starting test record API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.String("addr", cfg.Server.Addr()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if watch && configPath != "" {
		if err := config.Watch(configPath, logger, func(next *config.Config) {
			logger.Info("configuration changed; restart to apply",
				logging.String("addr", next.Server.Addr()),
				logging.String("log_level", next.Log.Level))
		}); err != nil {
			logger.Warn("configuration watch disabled", logging.Err(err))
		}
	}

	if a.metrics != nil {
		go reportPoolStats(ctx, a.db, a.metrics)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := a.server.Stop(context.Background()); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	logger.Info("server stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(config.WithConfigPath(path))
	}
	cfg, err := config.Load(config.WithSearchPaths("configs", "."))
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, config.ErrConfigFileNotFound) {
		return config.LoadFromEnv()
	}
	return nil, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Wiring
// ─────────────────────────────────────────────────────────────────────────────

type app struct {
	db       *postgres.Connection
	cache    *redis.Client
	producer *kafka.Producer
	metrics  *prometheus.AppMetrics
	server   *httpserver.Server
	logger   logging.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	var (
		collector prometheus.MetricsCollector
		err       error
	)
	if cfg.Monitoring.Enabled {
		collector, err = prometheus.NewMetricsCollector(cfg.Monitoring.Prometheus, logger)
		if err != nil {
			return nil, err
		}
		a.metrics = prometheus.NewAppMetrics(collector)
	}

	a.db, err = postgres.NewConnection(ctx, cfg.Database.Postgres, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err = a.db.RunMigrations(); err != nil {
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	repo := repositories.NewTestRecordRepository(a.db, logger)

	classification, err := a.classificationLookup(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	testNumbers, err := newServiceClient("test-number", cfg.Services.TestNumber, a.metrics, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := a.eventPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	expirySvc, err := newExpiryService(cfg.Expiry, repo, a.metrics, logger)
	if err != nil {
		return nil, err
	}

	recordOpts := []records.Option{
		records.WithLogger(logger),
		records.WithLookupConcurrency(cfg.Expiry.LookupConcurrency),
	}
	if a.metrics != nil {
		recordOpts = append(recordOpts, records.WithObserver(a.metrics))
	}
	svc := records.NewService(records.Dependencies{
		Repository:     repo,
		Classification: classification,
		TestNumbers:    client.NewTestNumberClient(testNumbers),
		Expiry:         expirySvc,
		Publisher:      publisher,
	}, recordOpts...)

	checkers := []handlers.HealthChecker{postgresChecker{a.db}}
	if a.cache != nil {
		checkers = append(checkers, redisChecker{a.cache})
	}
	var healthOpts []handlers.HealthOption
	if a.metrics != nil {
		m := a.metrics
		healthOpts = append(healthOpts, handlers.WithHealthObserver(func(component string, up bool) {
			prometheus.RecordHealth(m, component, up)
		}))
	}

	maxBody := cfg.Server.MaxBodyBytes
	router := httpserver.NewRouter(httpserver.RouterConfig{
		RecordsHandler:   handlers.NewRecordsHandler(svc, logger, handlers.WithMaxBodyBytes(maxBody)),
		HealthHandler:    handlers.NewHealthHandler(version, checkers, healthOpts...),
		Logger:           logger,
		LoggingConfig:    middleware.DefaultLoggingConfig(),
		Metrics:          a.metrics,
		MetricsCollector: collector,
	})
	a.server = httpserver.NewServer(cfg.Server, router, logger)
	ready = true
	return a, nil
}

// classificationLookup returns the classification client, fronted by the
// Redis cache when it is enabled.
func (a *app) classificationLookup(ctx context.Context, cfg *config.Config, logger logging.Logger) (testrecord.ClassificationLookup, error) {
	base, err := newServiceClient("classification", cfg.Services.Classification, a.metrics, logger)
	if err != nil {
		return nil, err
	}
	var lookup testrecord.ClassificationLookup = client.NewClassificationClient(base)
	if !cfg.Cache.Enabled {
		return lookup, nil
	}

	a.cache, err = redis.NewClient(&cfg.Cache.Redis, logger)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Ping(ctx); err != nil {
		logger.Warn("redis unreachable at startup; lookups fall through to the service", logging.Err(err))
	}
	cache := redis.NewRedisCache(a.cache, logger, redis.WithPrefix("vtr:"))
	return redis.NewCachedClassificationLookup(lookup, cache, cfg.Cache.ClassificationTTL), nil
}

// eventPublisher returns nil when messaging is disabled; the record service
// then skips publication.
func (a *app) eventPublisher(ctx context.Context, cfg *config.Config, logger logging.Logger) (testrecord.EventPublisher, error) {
	kc := cfg.Messaging.Kafka
	if !kc.Enabled {
		return nil, nil
	}

	if kc.EnsureTopics {
		tm, err := kafka.NewTopicManager(kc.Brokers, logger)
		if err != nil {
			return nil, err
		}
		err = tm.EnsureDefaultTopics(ctx, kc.ReplicationFactor)
		_ = tm.Close()
		if err != nil {
			return nil, err
		}
	}

	var err error
	a.producer, err = kafka.NewProducer(kc.ProducerConfig, logger)
	if err != nil {
		return nil, err
	}
	return kafka.NewRecordEventPublisher(a.producer, kc.Source, logger), nil
}

func newServiceClient(name string, ec config.EndpointConfig, m *prometheus.AppMetrics, logger logging.Logger) (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(ec.Timeout),
		client.WithAPIKey(ec.APIKey),
		client.WithRetryMax(ec.RetryMax),
		client.WithLogger(logger),
		client.WithUserAgent("vtr-apiserver/" + version),
	}
	if m != nil {
		opts = append(opts, client.WithObserver(func(dep string, elapsed time.Duration, err error) {
			prometheus.RecordDependencyCall(m, dep, elapsed, err)
		}))
	}
	return client.NewClient(name, ec.BaseURL, opts...)
}

func newExpiryService(cfg config.ExpiryConfig, lookup testrecord.RecordLookup, m *prometheus.AppMetrics, logger logging.Logger) (expiry.Service, error) {
	rules := expiry.DefaultRulesFS()
	if cfg.RulesDir != "" {
		rules = os.DirFS(cfg.RulesDir)
	}

	table, catalog, err := expiry.LoadRules(rules)
	if err != nil {
		return nil, err
	}
	source := cfg.RulesDir
	if source == "" {
		source = "embedded"
	}
	logger.Info("expiry rules loaded", logging.String("source", source))

	opts := []expiry.ServiceOption{expiry.WithLogger(logger.Named("expiry"))}
	if m != nil {
		opts = append(opts, expiry.WithObserver(m))
	}
	return expiry.NewService(expiry.NewSelector(table), catalog, expiry.NewRecordHistory(lookup), opts...), nil
}

func reportPoolStats(ctx context.Context, db *postgres.Connection, m *prometheus.AppMetrics) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := db.Stats()
			prometheus.RecordPoolStats(m, s.TotalConns(), s.AcquiredConns(), s.IdleConns())
		}
	}
}

func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
