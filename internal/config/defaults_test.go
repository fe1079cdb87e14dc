package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDBName, cfg.Database.Postgres.Database)
	assert.Equal(t, int32(DefaultDBMaxConns), cfg.Database.Postgres.MaxConns)
	assert.Equal(t, DefaultRedisAddr, cfg.Cache.Redis.Addr)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, DefaultClassificationURL, cfg.Services.Classification.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Services.TestNumber.Timeout)
	assert.Equal(t, 4, cfg.Expiry.LookupConcurrency)
	assert.Equal(t, "", cfg.Expiry.RulesDir)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Cache.ClassificationTTL = time.Minute
	cfg.Services.TestNumber.RetryMax = 7
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Cache.ClassificationTTL)
	assert.Equal(t, 7, cfg.Services.TestNumber.RetryMax)
}

func TestApplyDefaults_NoRedisAddrOutsideStandalone(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.Redis.Mode = "cluster"
	ApplyDefaults(cfg)
	assert.Empty(t, cfg.Cache.Redis.Addr)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
