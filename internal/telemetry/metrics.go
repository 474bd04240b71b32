package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

const meterName = "github.com/mozilla-ai/mcpreg"

// Metrics records registry, health and failover measurements.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	checks          metric.Int64Counter
	checkFailures   metric.Int64Counter
	checkDuration   metric.Float64Histogram
	healthScore     metric.Float64Gauge
	failoverActions metric.Int64Counter
	alerts          metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	checks, err := meter.Int64Counter(
		"mcpreg.health.checks",
		metric.WithDescription("Number of health checks performed"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkFailures, err := meter.Int64Counter(
		"mcpreg.health.check_failures",
		metric.WithDescription("Number of health checks whose liveness probe failed"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		"mcpreg.health.check.duration",
		metric.WithDescription("Duration of a health probe in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	healthScore, err := meter.Float64Gauge(
		"mcpreg.health.score",
		metric.WithDescription("Most recent health score of a server"),
	)
	if err != nil {
		return nil, err
	}

	failoverActions, err := meter.Int64Counter(
		"mcpreg.failover.actions",
		metric.WithDescription("Number of failover actions executed"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	alerts, err := meter.Int64Counter(
		"mcpreg.alerts",
		metric.WithDescription("Number of alerts emitted"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checks:          checks,
		checkFailures:   checkFailures,
		checkDuration:   checkDuration,
		healthScore:     healthScore,
		failoverActions: failoverActions,
		alerts:          alerts,
	}, nil
}

// NoopMetrics returns Metrics backed by a no-op meter.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

// RecordCheck records the outcome of one health check.
func (m *Metrics) RecordCheck(
	ctx context.Context,
	server string,
	status domain.HealthStatus,
	score float64,
	duration time.Duration,
	failed bool,
) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("server", server),
		attribute.String("status", string(status)),
	)
	m.checks.Add(ctx, 1, attrs)
	if failed {
		m.checkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("server", server)))
	}
	m.checkDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("server", server)))
	m.healthScore.Record(ctx, score, metric.WithAttributes(attribute.String("server", server)))
}

// RecordFailoverAction records an executed failover action and whether it resolved the failure.
func (m *Metrics) RecordFailoverAction(ctx context.Context, server string, action domain.FailoverAction, resolved bool) {
	if m == nil {
		return
	}

	m.failoverActions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("server", server),
		attribute.String("action", string(action)),
		attribute.Bool("resolved", resolved),
	))
}

// RecordAlert records an emitted alert.
func (m *Metrics) RecordAlert(ctx context.Context, severity domain.Severity) {
	if m == nil {
		return
	}

	m.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", string(severity))))
}
