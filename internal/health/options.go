package health

import (
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

// Option configures a Monitor.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*options) error

type options struct {
	interval      time.Duration
	timeout       time.Duration
	maxConcurrent int
	historySize   int
	retainOffline int
	clock         contracts.Clock
	metricProbe   contracts.MetricProbe
	metrics       *telemetry.Metrics
	thresholds    map[string]float64
}

// DefaultCheckInterval is the default time between health check cycles.
func DefaultCheckInterval() time.Duration {
	return 30 * time.Second
}

// DefaultCheckTimeout is the default bound on a single health probe.
func DefaultCheckTimeout() time.Duration {
	return 5 * time.Second
}

// DefaultMaxConcurrentChecks is the default number of probes allowed in flight at once.
func DefaultMaxConcurrentChecks() int {
	return 16
}

// DefaultHistorySize is the default number of snapshots kept per server.
func DefaultHistorySize() int {
	return 100
}

// DefaultOfflineRetention is the default number of OFFLINE reports kept after their servers are unregistered.
func DefaultOfflineRetention() int {
	return 32
}

func getDefaultOptions() options {
	return options{
		interval:      DefaultCheckInterval(),
		timeout:       DefaultCheckTimeout(),
		maxConcurrent: DefaultMaxConcurrentChecks(),
		historySize:   DefaultHistorySize(),
		retainOffline: DefaultOfflineRetention(),
		clock:         contracts.SystemClock(),
		thresholds:    domain.DefaultMetricThresholds(),
	}
}

func getOpts(opts ...Option) (options, error) {
	opt := getDefaultOptions()
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(&opt); err != nil {
			return options{}, err
		}
	}
	return opt, nil
}

// WithCheckInterval configures how often every registered server is checked.
func WithCheckInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return fmt.Errorf("health check interval must be positive, got %v", interval)
		}
		o.interval = interval
		return nil
	}
}

// WithCheckTimeout configures the maximum time a single probe may take before the check is failed.
func WithCheckTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("health check timeout must be positive, got %v", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// WithMaxConcurrentChecks bounds how many probes run at once within a cycle.
func WithMaxConcurrentChecks(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("max concurrent checks must be positive, got %d", n)
		}
		o.maxConcurrent = n
		return nil
	}
}

// WithHistorySize configures how many snapshots are kept in each server's rolling history.
func WithHistorySize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("history size must be positive, got %d", n)
		}
		o.historySize = n
		return nil
	}
}

// WithOfflineRetention bounds how many reports of unregistered servers stay queryable.
// The oldest are dropped first. Zero drops them at the start of the next check cycle.
func WithOfflineRetention(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("offline retention cannot be negative, got %d", n)
		}
		o.retainOffline = n
		return nil
	}
}

// WithClock sets the clock used to timestamp checks.
func WithClock(clock contracts.Clock) Option {
	return func(o *options) error {
		if clock == nil || reflect.ValueOf(clock).IsNil() {
			return fmt.Errorf("clock cannot be nil")
		}
		o.clock = clock
		return nil
	}
}

// WithMetricProbe sets a collaborator that supplies additional metrics after a successful liveness probe.
func WithMetricProbe(probe contracts.MetricProbe) Option {
	return func(o *options) error {
		if probe == nil || reflect.ValueOf(probe).IsNil() {
			return fmt.Errorf("metric probe cannot be nil")
		}
		o.metricProbe = probe
		return nil
	}
}

// WithTelemetry sets the instruments that record each check.
func WithTelemetry(metrics *telemetry.Metrics) Option {
	return func(o *options) error {
		o.metrics = metrics
		return nil
	}
}

// WithMetricThresholds overrides the thresholds of the named metrics.
// Metrics not named keep their default threshold.
func WithMetricThresholds(thresholds map[string]float64) Option {
	return func(o *options) error {
		for name, v := range thresholds {
			if v <= 0 {
				return fmt.Errorf("threshold for metric '%s' must be positive, got %v", name, v)
			}
		}
		maps.Copy(o.thresholds, thresholds)
		return nil
	}
}
