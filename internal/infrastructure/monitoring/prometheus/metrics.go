package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/expiry"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
)

// AppMetrics holds every metric the service exports.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Records
	RecordOperationsTotal    CounterVec
	RecordOperationDuration  HistogramVec
	CodeRegenerationsTotal   CounterVec
	ExpiryStrategiesSelected CounterVec
	ExpiryFailuresTotal      CounterVec

	// Collaborators
	DependencyRequestsTotal   CounterVec
	DependencyRequestDuration HistogramVec

	// Infrastructure
	DBPoolConnections GaugeVec
	HealthCheckStatus GaugeVec
}

var (
	DefaultHTTPDurationBuckets       = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDependencyDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
)

// NewAppMetrics registers the service metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.RecordOperationsTotal = collector.RegisterCounter("record_operations_total", "Record service operations by outcome", "operation", "outcome")
	m.RecordOperationDuration = collector.RegisterHistogram("record_operation_duration_seconds", "Record service operation duration", nil, "operation")
	m.CodeRegenerationsTotal = collector.RegisterCounter("record_code_regenerations_total", "Test type codes recomputed on update", "regenerated")
	m.ExpiryStrategiesSelected = collector.RegisterCounter("expiry_strategy_selected_total", "Expiry strategies applied", "vehicle_type", "strategy")
	m.ExpiryFailuresTotal = collector.RegisterCounter("expiry_failures_total", "Expiry computations that failed", "vehicle_type", "code")

	m.DependencyRequestsTotal = collector.RegisterCounter("dependency_requests_total", "Calls to collaborating services", "dependency", "outcome")
	m.DependencyRequestDuration = collector.RegisterHistogram("dependency_request_duration_seconds", "Collaborator call duration", DefaultDependencyDurationBuckets, "dependency")

	m.DBPoolConnections = collector.RegisterGauge("db_pool_connections", "Database pool connections by state", "state")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.GetCode(err))
}

// RecordHTTPRequest counts one served request.
func RecordHTTPRequest(m *AppMetrics, method, route string, statusCode int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordDependencyCall counts one outbound call. Errors are labelled by code.
func RecordDependencyCall(m *AppMetrics, dependency string, elapsed time.Duration, err error) {
	m.DependencyRequestsTotal.WithLabelValues(dependency, outcome(err)).Inc()
	m.DependencyRequestDuration.WithLabelValues(dependency).Observe(elapsed.Seconds())
}

// RecordPoolStats publishes database pool occupancy.
func RecordPoolStats(m *AppMetrics, total, acquired, idle int32) {
	m.DBPoolConnections.WithLabelValues("total").Set(float64(total))
	m.DBPoolConnections.WithLabelValues("acquired").Set(float64(acquired))
	m.DBPoolConnections.WithLabelValues("idle").Set(float64(idle))
}

func RecordHealth(m *AppMetrics, component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain observers
// ─────────────────────────────────────────────────────────────────────────────

// ObserveStrategy implements expiry.SelectionObserver.
func (m *AppMetrics) ObserveStrategy(vt testrecord.VehicleType, strategy expiry.StrategyName) {
	m.ExpiryStrategiesSelected.WithLabelValues(string(vt), string(strategy)).Inc()
}

// ObserveFailure implements expiry.SelectionObserver.
func (m *AppMetrics) ObserveFailure(vt testrecord.VehicleType, code errors.ErrorCode) {
	m.ExpiryFailuresTotal.WithLabelValues(string(vt), string(code)).Inc()
}

// ObserveOperation implements records.Observer.
func (m *AppMetrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.RecordOperationsTotal.WithLabelValues(op, outcome(err)).Inc()
	m.RecordOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRegeneration implements records.Observer.
func (m *AppMetrics) ObserveRegeneration(regenerated bool) {
	m.CodeRegenerationsTotal.WithLabelValues(strconv.FormatBool(regenerated)).Inc()
}

var _ expiry.SelectionObserver = (*AppMetrics)(nil)
