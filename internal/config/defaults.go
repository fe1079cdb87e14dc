package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "vtr"
	DefaultDBUser     = "vtr"
	DefaultDBMaxConns = 25

	DefaultRedisMode = "standalone"
	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaSource = "vehicle-test-records"

	DefaultClassificationURL = "http://localhost:8081"
	DefaultTestNumberURL     = "http://localhost:8082"

	DefaultMetricsNamespace = "vtr"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills zero-value fields of cfg. Explicit values win.
// Booleans cannot be told apart from unset here; their defaults are
// registered on viper instead (see setViperDefaults).
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 20 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pg := &cfg.Database.Postgres
	if pg.Host == "" {
		pg.Host = DefaultDBHost
	}
	if pg.Port == 0 {
		pg.Port = DefaultDBPort
	}
	if pg.Database == "" {
		pg.Database = DefaultDBName
	}
	if pg.Username == "" {
		pg.Username = DefaultDBUser
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}
	if pg.MaxConns == 0 {
		pg.MaxConns = DefaultDBMaxConns
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.Redis.Mode == "" {
		cfg.Cache.Redis.Mode = DefaultRedisMode
	}
	if cfg.Cache.Redis.Addr == "" && cfg.Cache.Redis.Mode == DefaultRedisMode {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.ClassificationTTL == 0 {
		cfg.Cache.ClassificationTTL = 6 * time.Hour
	}

	// ── Messaging ─────────────────────────────────────────────────────────────
	k := &cfg.Messaging.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.Source == "" {
		k.Source = DefaultKafkaSource
	}
	if k.Acks == "" {
		k.Acks = "all"
	}
	if k.ReplicationFactor == 0 {
		k.ReplicationFactor = 1
	}

	// ── Services ──────────────────────────────────────────────────────────────
	if cfg.Services.Classification.BaseURL == "" {
		cfg.Services.Classification.BaseURL = DefaultClassificationURL
	}
	if cfg.Services.TestNumber.BaseURL == "" {
		cfg.Services.TestNumber.BaseURL = DefaultTestNumberURL
	}
	for _, ep := range []*EndpointConfig{&cfg.Services.Classification, &cfg.Services.TestNumber} {
		if ep.Timeout == 0 {
			ep.Timeout = 5 * time.Second
		}
		if ep.RetryMax == 0 {
			ep.RetryMax = 2
		}
	}

	// ── Expiry ────────────────────────────────────────────────────────────────
	if cfg.Expiry.LookupConcurrency == 0 {
		cfg.Expiry.LookupConcurrency = 4
	}

	// ── Monitoring ────────────────────────────────────────────────────────────
	if cfg.Monitoring.Prometheus.Namespace == "" {
		cfg.Monitoring.Prometheus.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// setViperDefaults registers the defaults that ApplyDefaults cannot express.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("cache.enabled", true)
	v.SetDefault("messaging.kafka.enabled", true)
	v.SetDefault("messaging.kafka.ensure_topics", false)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.prometheus.enable_go_metrics", true)
	v.SetDefault("monitoring.prometheus.enable_process_metrics", true)
}
