package daemon

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/mozilla-ai/mcpreg/internal/alert"
	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/health"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// MonitorOptions contains functional options for the health monitor.
	MonitorOptions []health.Option

	// AlertHandlers are added to the dispatcher after the log and history handlers, in order.
	AlertHandlers []NamedAlertHandler

	// AlertHistorySize bounds the alert history exposed by the API.
	AlertHistorySize int

	// AlertHandlerTimeout bounds each alert handler invocation.
	AlertHandlerTimeout time.Duration

	// Telemetry is optional. When nil no metrics are recorded.
	Telemetry *telemetry.Provider

	// TelemetryShutdownTimeout specifies how long to wait for the telemetry provider to flush.
	TelemetryShutdownTimeout time.Duration

	// DiscoveryInterval re-runs discovery periodically after startup. Zero disables it.
	DiscoveryInterval time.Duration
}

// NamedAlertHandler pairs an alert handler with the name it is registered under.
type NamedAlertHandler struct {
	Name    string
	Handler contracts.AlertHandler
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := defaultOptions()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithMonitorOptions configures the health monitor.
// Replaces all previous monitor configuration.
func WithMonitorOptions(monitorOpts ...health.Option) Option {
	return func(o *Options) error {
		o.MonitorOptions = monitorOpts
		return nil
	}
}

// WithAlertHandler adds an alert handler under the given name.
func WithAlertHandler(name string, handler contracts.AlertHandler) Option {
	return func(o *Options) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("alert handler name cannot be empty")
		}
		if handler == nil || reflect.ValueOf(handler).IsNil() {
			return fmt.Errorf("alert handler '%s' cannot be nil", name)
		}
		o.AlertHandlers = append(o.AlertHandlers, NamedAlertHandler{Name: name, Handler: handler})
		return nil
	}
}

// WithAlertHistorySize configures how many alerts are retained for the API.
func WithAlertHistorySize(size int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return fmt.Errorf("alert history size must be positive, got %d", size)
		}
		o.AlertHistorySize = size
		return nil
	}
}

// WithAlertHandlerTimeout configures how long a single alert handler may run.
func WithAlertHandlerTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("alert handler timeout must be positive, got %v", timeout)
		}
		o.AlertHandlerTimeout = timeout
		return nil
	}
}

// WithTelemetry records metrics through the provider and serves /metrics when it exposes a handler.
// The daemon shuts the provider down when it stops.
func WithTelemetry(provider *telemetry.Provider) Option {
	return func(o *Options) error {
		if provider == nil {
			return fmt.Errorf("telemetry provider cannot be nil")
		}
		o.Telemetry = provider
		return nil
	}
}

// WithDiscoveryInterval configures how often discovery is re-run after startup.
func WithDiscoveryInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("discovery interval must be positive, got %v", interval)
		}
		o.DiscoveryInterval = interval
		return nil
	}
}

// DefaultTelemetryShutdownTimeout is the default time allowed for flushing telemetry on shutdown.
func DefaultTelemetryShutdownTimeout() time.Duration {
	return 5 * time.Second
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		AlertHistorySize:         alert.DefaultHistorySize(),
		AlertHandlerTimeout:      alert.DefaultHandlerTimeout(),
		TelemetryShutdownTimeout: DefaultTelemetryShutdownTimeout(),
	}
}

// metricsHandler returns the telemetry scrape handler, if any.
func (o Options) metricsHandler() http.Handler {
	if o.Telemetry == nil {
		return nil
	}
	return o.Telemetry.Handler()
}
