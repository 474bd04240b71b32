package domain

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	HealthStatusUnknown     HealthStatus = "unknown"
	HealthStatusRegistering HealthStatus = "registering"
	HealthStatusHealthy     HealthStatus = "healthy"
	HealthStatusDegraded    HealthStatus = "degraded"
	HealthStatusUnhealthy   HealthStatus = "unhealthy"
	HealthStatusOffline     HealthStatus = "offline"
)

const (
	// MetricResponseTime is the probe round trip, in seconds.
	MetricResponseTime = "response_time"

	// MetricErrorRate is the percentage of failed requests reported by the server or a metric probe.
	MetricErrorRate = "error_rate"

	// MetricMemoryUsage is the memory usage of the server, as a percentage.
	MetricMemoryUsage = "memory_usage"

	// MetricConnectionCount is the number of open connections reported by the server.
	MetricConnectionCount = "connection_count"
)

const (
	// HealthyScoreThreshold is the minimum score classified as HEALTHY.
	HealthyScoreThreshold = 0.8

	// DegradedScoreThreshold is the minimum score classified as DEGRADED.
	DegradedScoreThreshold = 0.5
)

// HealthStatus represents the internal state of a tool server's availability.
type HealthStatus string

// AllHealthStatuses returns every HealthStatus in state machine order.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusUnknown,
		HealthStatusRegistering,
		HealthStatusHealthy,
		HealthStatusDegraded,
		HealthStatusUnhealthy,
		HealthStatusOffline,
	}
}

// ParseHealthStatus converts a string into a HealthStatus, rejecting unknown values.
func ParseHealthStatus(s string) (HealthStatus, error) {
	status := HealthStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case HealthStatusUnknown,
		HealthStatusRegistering,
		HealthStatusHealthy,
		HealthStatusDegraded,
		HealthStatusUnhealthy,
		HealthStatusOffline:
		return status, nil
	default:
		return "", fmt.Errorf("unknown health status '%s'", s)
	}
}

// Checked reports whether the status is the outcome of a health check.
func (s HealthStatus) Checked() bool {
	switch s {
	case HealthStatusHealthy, HealthStatusDegraded, HealthStatusUnhealthy:
		return true
	case HealthStatusUnknown, HealthStatusRegistering, HealthStatusOffline:
		return false
	default:
		return false
	}
}

// StatusForScore maps a health score onto HEALTHY, DEGRADED or UNHEALTHY.
func StatusForScore(score float64) HealthStatus {
	switch {
	case score >= HealthyScoreThreshold:
		return HealthStatusHealthy
	case score >= DegradedScoreThreshold:
		return HealthStatusDegraded
	default:
		return HealthStatusUnhealthy
	}
}

// DefaultMetricThresholds returns the thresholds below which each metric is considered healthy.
func DefaultMetricThresholds() map[string]float64 {
	return map[string]float64{
		MetricResponseTime:    5,
		MetricErrorRate:       10,
		MetricMemoryUsage:     80,
		MetricConnectionCount: 100,
	}
}

// HealthMetric is a single named measurement taken during a check.
// Status is HEALTHY when Value is below Threshold, otherwise DEGRADED. A metric is never UNHEALTHY on its own.
type HealthMetric struct {
	Name      string       `json:"name"`
	Value     float64      `json:"value"`
	Threshold float64      `json:"threshold"`
	Status    HealthStatus `json:"status"`
}

// NewHealthMetric builds a HealthMetric and derives its status.
func NewHealthMetric(name string, value float64, threshold float64) HealthMetric {
	status := HealthStatusDegraded
	if value < threshold {
		status = HealthStatusHealthy
	}
	return HealthMetric{
		Name:      name,
		Value:     value,
		Threshold: threshold,
		Status:    status,
	}
}

// Healthy reports whether the metric passed its threshold.
func (m HealthMetric) Healthy() bool {
	return m.Status == HealthStatusHealthy
}

// ServerHealthReport tracks the internal health state for a tool server.
type ServerHealthReport struct {
	ServerName          string
	Status              HealthStatus
	HealthScore         float64
	Metrics             map[string]HealthMetric
	ConsecutiveFailures int
	UptimeSeconds       float64
	ErrorCount          int
	CheckCount          int
	LastError           string
	Latency             *time.Duration
	LastCheck           *time.Time
	LastSuccessful      *time.Time
}

// Clone returns a copy of the report that shares no mutable state with the original.
func (r ServerHealthReport) Clone() ServerHealthReport {
	out := r
	out.Metrics = maps.Clone(r.Metrics)
	if r.Latency != nil {
		l := *r.Latency
		out.Latency = &l
	}
	if r.LastCheck != nil {
		t := *r.LastCheck
		out.LastCheck = &t
	}
	if r.LastSuccessful != nil {
		t := *r.LastSuccessful
		out.LastSuccessful = &t
	}
	return out
}

// MetricValue returns the value of the named metric, if it was measured in the last check.
func (r ServerHealthReport) MetricValue(name string) (float64, bool) {
	m, ok := r.Metrics[name]
	if !ok {
		return 0, false
	}
	return m.Value, true
}

// MetricsSnapshot is an entry in a server's rolling metrics history.
type MetricsSnapshot struct {
	Timestamp   time.Time               `json:"timestamp"`
	Status      HealthStatus            `json:"status"`
	HealthScore float64                 `json:"healthScore"`
	Failed      bool                    `json:"failed"`
	Metrics     map[string]HealthMetric `json:"metrics,omitempty"`
}
