package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/config"
)

// validConfig returns a defaulted Config that passes Validate.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Cache.Enabled = true
	cfg.Messaging.Kafka.Enabled = true
	cfg.Monitoring.Enabled = true
	return cfg
}

func TestConfig_Validate_Valid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"server port zero", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"server port too large", func(c *config.Config) { c.Server.Port = 65536 }, "server.port"},
		{"db host", func(c *config.Config) { c.Database.Postgres.Host = "" }, "database.postgres.host"},
		{"db user", func(c *config.Config) { c.Database.Postgres.Username = "" }, "database.postgres.username"},
		{"db name", func(c *config.Config) { c.Database.Postgres.Database = "" }, "database.postgres.database"},
		{"db pool", func(c *config.Config) { c.Database.Postgres.MinConns = 100 }, "min_conns"},
		{"redis addr", func(c *config.Config) { c.Cache.Redis.Addr = "" }, "cache.redis.addr"},
		{"redis mode", func(c *config.Config) { c.Cache.Redis.Mode = "ring" }, "cache.redis.mode"},
		{"redis sentinel", func(c *config.Config) { c.Cache.Redis.Mode = "sentinel" }, "sentinel"},
		{"redis cluster", func(c *config.Config) { c.Cache.Redis.Mode = "cluster" }, "cluster_addrs"},
		{"kafka brokers", func(c *config.Config) { c.Messaging.Kafka.Brokers = nil }, "messaging.kafka"},
		{"classification url", func(c *config.Config) { c.Services.Classification.BaseURL = "" }, "services.classification.base_url"},
		{"test number scheme", func(c *config.Config) { c.Services.TestNumber.BaseURL = "ftp://x" }, "services.test_number.base_url"},
		{"lookup concurrency", func(c *config.Config) { c.Expiry.LookupConcurrency = 0 }, "expiry.lookup_concurrency"},
		{"metrics namespace", func(c *config.Config) { c.Monitoring.Prometheus.Namespace = "" }, "monitoring.prometheus.namespace"},
		{"log level", func(c *config.Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate_DisabledSectionsSkipped(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.Redis.Mode = "bogus"
	cfg.Messaging.Kafka.Enabled = false
	cfg.Messaging.Kafka.Brokers = nil
	cfg.Monitoring.Enabled = false
	cfg.Monitoring.Prometheus.Namespace = ""
	assert.NoError(t, cfg.Validate())
}

func TestServerConfig_Addr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "127.0.0.1:9000", config.ServerConfig{Host: "127.0.0.1", Port: 9000}.Addr())
}
