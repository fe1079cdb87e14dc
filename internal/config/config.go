// Package config defines the configuration of the test record service. The
// infrastructure sections reuse the configuration types of the packages they
// configure.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/postgres"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/redis"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/prometheus"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr renders host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres    postgres.PostgresConfig `mapstructure:"postgres"`
	AutoMigrate bool                    `mapstructure:"auto_migrate"`
}

// CacheConfig controls the classification answer cache. A disabled cache
// sends every lookup to the classification service.
type CacheConfig struct {
	Enabled           bool              `mapstructure:"enabled"`
	ClassificationTTL time.Duration     `mapstructure:"classification_ttl"`
	Redis             redis.RedisConfig `mapstructure:"redis"`
}

// KafkaConfig extends the producer settings with topic provisioning.
type KafkaConfig struct {
	kafka.ProducerConfig `mapstructure:",squash"`
	Enabled              bool   `mapstructure:"enabled"`
	Source               string `mapstructure:"source"`
	EnsureTopics         bool   `mapstructure:"ensure_topics"`
	ReplicationFactor    int    `mapstructure:"replication_factor"`
}

type MessagingConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// EndpointConfig addresses one collaborating HTTP service.
type EndpointConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max"`
}

type ServicesConfig struct {
	Classification EndpointConfig `mapstructure:"classification"`
	TestNumber     EndpointConfig `mapstructure:"test_number"`
}

// ExpiryConfig locates the rule tables. An empty RulesDir uses the tables
// compiled into the binary.
type ExpiryConfig struct {
	RulesDir          string `mapstructure:"rules_dir"`
	LookupConcurrency int    `mapstructure:"lookup_concurrency"`
}

type MonitoringConfig struct {
	Enabled    bool                       `mapstructure:"enabled"`
	Prometheus prometheus.CollectorConfig `mapstructure:"prometheus"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration of the service.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Messaging  MessagingConfig   `mapstructure:"messaging"`
	Services   ServicesConfig    `mapstructure:"services"`
	Expiry     ExpiryConfig      `mapstructure:"expiry"`
	Monitoring MonitoringConfig  `mapstructure:"monitoring"`
	Log        logging.LogConfig `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate returns the first semantic problem of a defaulted Config.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", c.Server.Port)
	}

	pg := c.Database.Postgres
	if pg.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return fmt.Errorf("database.postgres.port %d is out of range [1, 65535]", pg.Port)
	}
	if pg.Username == "" {
		return fmt.Errorf("database.postgres.username is required")
	}
	if pg.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if pg.MinConns > pg.MaxConns {
		return fmt.Errorf("database.postgres.min_conns %d exceeds max_conns %d", pg.MinConns, pg.MaxConns)
	}

	if c.Cache.Enabled {
		switch c.Cache.Redis.Mode {
		case "standalone":
			if c.Cache.Redis.Addr == "" {
				return fmt.Errorf("cache.redis.addr is required")
			}
		case "sentinel":
			if c.Cache.Redis.MasterName == "" || len(c.Cache.Redis.SentinelAddrs) == 0 {
				return fmt.Errorf("cache.redis sentinel mode needs master_name and sentinel_addrs")
			}
		case "cluster":
			if len(c.Cache.Redis.ClusterAddrs) == 0 {
				return fmt.Errorf("cache.redis.cluster_addrs is required in cluster mode")
			}
		default:
			return fmt.Errorf("cache.redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Cache.Redis.Mode)
		}
	}

	if c.Messaging.Kafka.Enabled {
		if err := kafka.ValidateProducerConfig(c.Messaging.Kafka.ProducerConfig); err != nil {
			return fmt.Errorf("messaging.kafka: %v", err)
		}
	}

	endpoints := []struct {
		name string
		ep   EndpointConfig
	}{
		{"services.classification", c.Services.Classification},
		{"services.test_number", c.Services.TestNumber},
	}
	for _, e := range endpoints {
		name, ep := e.name, e.ep
		if ep.BaseURL == "" {
			return fmt.Errorf("%s.base_url is required", name)
		}
		if u, err := url.Parse(ep.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s.base_url %q must be an http(s) url", name, ep.BaseURL)
		}
	}

	if c.Expiry.LookupConcurrency < 1 {
		return fmt.Errorf("expiry.lookup_concurrency must be >= 1, got %d", c.Expiry.LookupConcurrency)
	}

	if c.Monitoring.Enabled && c.Monitoring.Prometheus.Namespace == "" {
		return fmt.Errorf("monitoring.prometheus.namespace is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is invalid; expected json|console", c.Log.Format)
	}
	return nil
}
