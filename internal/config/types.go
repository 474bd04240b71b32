package config

import (
	"fmt"
	"time"
)

var (
	_ Provider = (*DefaultLoader)(nil)
	_ Loader   = (*validatingLoader)(nil)
)

type Loader interface {
	Load(path string) (*Config, error)
}

type Initializer interface {
	Init(path string) error
}

type Provider interface {
	Initializer
	Loader
}

type DefaultLoader struct{}

// Config represents the .mcpreg.toml file structure.
type Config struct {
	Monitor   *MonitorConfigSection   `json:"monitor,omitempty" toml:"monitor,omitempty" yaml:"monitor,omitempty"`
	API       *APIConfigSection       `json:"api,omitempty" toml:"api,omitempty" yaml:"api,omitempty"`
	Telemetry *TelemetryConfigSection `json:"telemetry,omitempty" toml:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Discovery *DiscoveryConfigSection `json:"discovery,omitempty" toml:"discovery,omitempty" yaml:"discovery,omitempty"`
	Alerts    *AlertsConfigSection    `json:"alerts,omitempty" toml:"alerts,omitempty" yaml:"alerts,omitempty"`
	Servers   []ServerEntry           `json:"servers" toml:"servers" yaml:"servers"`

	configFilePath string
}

// Manifest is the structure of a server manifest file read by file discovery.
// It carries only server entries.
type Manifest struct {
	Servers []ServerEntry `json:"servers" toml:"servers" yaml:"servers"`
}

// MonitorConfigSection contains health monitor settings.
type MonitorConfigSection struct {
	// CheckInterval is the delay between health check cycles.
	CheckInterval *Duration `json:"checkInterval,omitempty" toml:"check_interval,omitempty" yaml:"check_interval,omitempty"`

	// CheckTimeout bounds a single liveness probe.
	CheckTimeout *Duration `json:"checkTimeout,omitempty" toml:"check_timeout,omitempty" yaml:"check_timeout,omitempty"`

	// MaxConcurrentChecks limits how many servers are probed at once.
	MaxConcurrentChecks *int `json:"maxConcurrentChecks,omitempty" toml:"max_concurrent_checks,omitempty" yaml:"max_concurrent_checks,omitempty"`

	// HistorySize is the number of metric snapshots kept per server.
	HistorySize *int `json:"historySize,omitempty" toml:"history_size,omitempty" yaml:"history_size,omitempty"`

	// Thresholds overrides the default per-metric thresholds, e.g. response_time = 2.0
	Thresholds map[string]float64 `json:"thresholds,omitempty" toml:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// APIConfigSection contains API server configuration settings.
type APIConfigSection struct {
	// Address to bind the API server (e.g., "0.0.0.0:8090")
	// Maps to CLI flag --addr
	Addr *string `json:"addr,omitempty" toml:"addr,omitempty" yaml:"addr,omitempty"`

	// ShutdownTimeout for graceful API server shutdown.
	ShutdownTimeout *Duration `json:"shutdownTimeout,omitempty" toml:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`

	// MetricsPath mounts the Prometheus scrape endpoint, "/metrics" when unset.
	MetricsPath *string `json:"metricsPath,omitempty" toml:"metrics_path,omitempty" yaml:"metrics_path,omitempty"`

	// Nested CORS configuration for cross-origin requests
	CORS *CORSConfigSection `json:"cors,omitempty" toml:"cors,omitempty" yaml:"cors,omitempty"`
}

// CORSConfigSection contains Cross-Origin Resource Sharing (CORS) configuration.
type CORSConfigSection struct {
	Enable        *bool     `json:"enable,omitempty" toml:"enable,omitempty" yaml:"enable,omitempty"`
	Origins       []string  `json:"allowOrigins,omitempty" toml:"allow_origins,omitempty" yaml:"allow_origins,omitempty"`
	Headers       []string  `json:"allowHeaders,omitempty" toml:"allow_headers,omitempty" yaml:"allow_headers,omitempty"`
	ExposeHeaders []string  `json:"exposeHeaders,omitempty" toml:"expose_headers,omitempty" yaml:"expose_headers,omitempty"`
	MaxAge        *Duration `json:"maxAge,omitempty" toml:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// TelemetryConfigSection selects how metrics are exported.
type TelemetryConfigSection struct {
	// MetricsExporter is one of prometheus, stdout or none.
	MetricsExporter string `json:"metricsExporter,omitempty" toml:"metrics_exporter,omitempty" yaml:"metrics_exporter,omitempty"`
}

// DiscoveryConfigSection configures the discovery sources consulted in addition to [[servers]].
type DiscoveryConfigSection struct {
	// Files are manifest files (TOML or YAML) re-read on every discovery round.
	Files []string `json:"files,omitempty" toml:"files,omitempty" yaml:"files,omitempty"`

	// MCPManifests enables capability discovery from http servers speaking MCP.
	MCPManifests bool `json:"mcpManifests,omitempty" toml:"mcp_manifests,omitempty" yaml:"mcp_manifests,omitempty"`

	// Timeout bounds each MCP tools listing.
	Timeout *Duration `json:"timeout,omitempty" toml:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Interval re-runs discovery periodically, registering servers that appeared since the last round.
	// When unset discovery only runs at startup.
	Interval *Duration `json:"interval,omitempty" toml:"interval,omitempty" yaml:"interval,omitempty"`
}

// AlertsConfigSection configures alert handlers beyond the built-in log handler.
type AlertsConfigSection struct {
	// HistorySize is the number of alerts retained for the API.
	HistorySize *int `json:"historySize,omitempty" toml:"history_size,omitempty" yaml:"history_size,omitempty"`

	Webhooks []WebhookEntry `json:"webhooks,omitempty" toml:"webhooks,omitempty" yaml:"webhooks,omitempty"`
}

// WebhookEntry configures a single webhook alert handler.
type WebhookEntry struct {
	URL         string            `json:"url" toml:"url" yaml:"url"`
	MinSeverity string            `json:"minSeverity,omitempty" toml:"min_severity,omitempty" yaml:"min_severity,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" toml:"headers,omitempty" yaml:"headers,omitempty"`
}

// ServerEntry represents the configuration of a single tool server.
type ServerEntry struct {
	// Name is the unique key of the server.
	// e.g. 'fraud-db-b'
	Name string `json:"name" toml:"name" yaml:"name"`

	// Transport is either 'stdio' or 'http'.
	Transport string `json:"transport" toml:"transport" yaml:"transport"`

	// Endpoint is the base URL (http) or command (stdio).
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// HealthURL overrides {endpoint}/health.
	HealthURL string `json:"healthUrl,omitempty" toml:"health_url,omitempty" yaml:"health_url,omitempty"`

	ServiceType string            `json:"serviceType,omitempty" toml:"service_type,omitempty" yaml:"service_type,omitempty"`
	Priority    int               `json:"priority,omitempty" toml:"priority,omitempty" yaml:"priority,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" toml:"metadata,omitempty" yaml:"metadata,omitempty"`

	Capabilities []CapabilityEntry `json:"capabilities,omitempty" toml:"capabilities,omitempty" yaml:"capabilities,omitempty"`

	// Rules replaces the default failover rules when present.
	Rules []RuleEntry `json:"rules,omitempty" toml:"rules,omitempty" yaml:"rules,omitempty"`
}

// CapabilityEntry declares a capability of a server.
type CapabilityEntry struct {
	Name        string         `json:"name" toml:"name" yaml:"name"`
	Description string         `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Category    string         `json:"category,omitempty" toml:"category,omitempty" yaml:"category,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" toml:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// RuleEntry declares a failover rule.
type RuleEntry struct {
	Trigger   string    `json:"trigger" toml:"trigger" yaml:"trigger"`
	Threshold float64   `json:"threshold" toml:"threshold" yaml:"threshold"`
	Action    string    `json:"action" toml:"action" yaml:"action"`
	Cooldown  *Duration `json:"cooldown,omitempty" toml:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

// Duration is a custom time.Duration type that provides improved marshaling.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler for Duration.
func (d *Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// String returns a human-readable string representation of the duration.
func (d *Duration) String() string {
	if d == nil {
		return ""
	}

	duration := time.Duration(*d)
	if duration == 0 {
		return "0s"
	}

	units := []struct {
		unit   time.Duration
		suffix string
	}{
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
		{time.Millisecond, "ms"},
		{time.Microsecond, "µs"},
	}

	for _, u := range units {
		if duration%u.unit == 0 {
			return fmt.Sprintf("%d%s", duration/u.unit, u.suffix)
		}
	}

	return fmt.Sprintf("%dns", duration)
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// DurationOr returns d as a time.Duration, or fallback when d is nil.
func DurationOr(d *Duration, fallback time.Duration) time.Duration {
	if d == nil {
		return fallback
	}
	return time.Duration(*d)
}
