package main

import (
	"context"

	"github.com/turtacn/vehicle-test-records/internal/application/records"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/postgres"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/redis"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/vehicle-test-records/internal/interfaces/http/handlers"
)

// Readiness adapters for the HealthHandler.

type postgresChecker struct {
	conn *postgres.Connection
}

func (postgresChecker) Name() string { return "postgres" }

func (c postgresChecker) Check(ctx context.Context) error {
	return c.conn.HealthCheck(ctx)
}

type redisChecker struct {
	client *redis.Client
}

func (redisChecker) Name() string { return "redis" }

func (c redisChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx)
}

var (
	_ handlers.HealthChecker = postgresChecker{}
	_ handlers.HealthChecker = redisChecker{}
	_ records.Observer       = (*prometheus.AppMetrics)(nil)
)
