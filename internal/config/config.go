package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/perms"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

// skeleton is written by Init.
const skeleton = `# mcpreg configuration
servers = []

[monitor]
check_interval = "30s"
check_timeout = "5s"

[api]
addr = "0.0.0.0:8090"

[telemetry]
metrics_exporter = "prometheus"
`

// Init creates the base skeleton configuration file for the mcpreg project.
func (d *DefaultLoader) Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	content := skeleton
	if isYAML(path) {
		content = "servers: []\n"
	}

	if err := os.WriteFile(path, []byte(content), perms.RegularFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Load reads and strictly validates the configuration file at path.
// The format is chosen by extension: .yaml and .yml are YAML, anything else is TOML.
func (d *DefaultLoader) Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrConfigLoadFailed)
	}

	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file cannot be found, run: 'mcpreg init'", ErrConfigLoadFailed)
		}
		return nil, fmt.Errorf("%w: failed to stat config file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: failed to validate config (%s): %w", ErrConfigLoadFailed, path, err)
	}

	// Update the path that loaded this file to track it.
	cfg.configFilePath = path

	return &cfg, nil
}

// LoadManifest reads and validates a server manifest file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := decodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest (%s): %w", path, err)
	}
	if err := validateServers(m.Servers); err != nil {
		return nil, fmt.Errorf("invalid manifest (%s): %w", path, err)
	}
	return &m, nil
}

// ConfigFilePath returns the path the configuration was loaded from.
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// ListServers returns a copy of the currently configured server entries.
func (c *Config) ListServers() []ServerEntry {
	return slices.Clone(c.Servers)
}

// Descriptors converts every server entry into a domain.ServerDescriptor.
func (c *Config) Descriptors() ([]domain.ServerDescriptor, error) {
	return descriptors(c.Servers)
}

// Descriptors converts every server entry into a domain.ServerDescriptor.
func (m *Manifest) Descriptors() ([]domain.ServerDescriptor, error) {
	return descriptors(m.Servers)
}

func descriptors(entries []ServerEntry) ([]domain.ServerDescriptor, error) {
	out := make([]domain.ServerDescriptor, 0, len(entries))
	for _, e := range entries {
		d, err := e.ToDescriptor()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ToDescriptor converts the entry into a domain.ServerDescriptor.
// A nil Rules slice yields a descriptor that uses the default failover rules.
func (e *ServerEntry) ToDescriptor() (domain.ServerDescriptor, error) {
	transport, err := domain.ParseTransportKind(e.Transport)
	if err != nil {
		return domain.ServerDescriptor{}, fmt.Errorf("server '%s': %w", e.Name, err)
	}

	d := domain.ServerDescriptor{
		Name:        strings.TrimSpace(e.Name),
		Transport:   transport,
		Endpoint:    e.Endpoint,
		HealthURL:   e.HealthURL,
		ServiceType: e.ServiceType,
		Priority:    e.Priority,
		Metadata:    e.Metadata,
	}

	for _, c := range e.Capabilities {
		d.Capabilities = append(d.Capabilities, domain.Capability{
			Name:        c.Name,
			Description: c.Description,
			Category:    c.Category,
			Parameters:  c.Parameters,
		})
	}

	if e.Rules != nil {
		d.Rules = make([]domain.FailoverRule, 0, len(e.Rules))
		for i, r := range e.Rules {
			rule, err := r.ToRule()
			if err != nil {
				return domain.ServerDescriptor{}, fmt.Errorf("server '%s' rule %d: %w", e.Name, i, err)
			}
			d.Rules = append(d.Rules, rule)
		}
	}

	if err := d.Validate(); err != nil {
		return domain.ServerDescriptor{}, err
	}

	return d, nil
}

// ToRule converts the entry into a validated domain.FailoverRule.
// A missing cooldown defaults to domain.DefaultRuleCooldown.
func (r *RuleEntry) ToRule() (domain.FailoverRule, error) {
	trigger, err := domain.ParseTriggerCondition(r.Trigger)
	if err != nil {
		return domain.FailoverRule{}, err
	}
	action, err := domain.ParseFailoverAction(r.Action)
	if err != nil {
		return domain.FailoverRule{}, err
	}

	rule := domain.FailoverRule{
		Trigger:   trigger,
		Threshold: r.Threshold,
		Action:    action,
		Cooldown:  DurationOr(r.Cooldown, domain.DefaultRuleCooldown),
	}
	if err := rule.Validate(); err != nil {
		return domain.FailoverRule{}, err
	}

	return rule, nil
}

// MonitorSection returns the monitor section, or an empty one when absent.
func (c *Config) MonitorSection() MonitorConfigSection {
	if c.Monitor == nil {
		return MonitorConfigSection{}
	}
	return *c.Monitor
}

// APISection returns the api section, or an empty one when absent.
func (c *Config) APISection() APIConfigSection {
	if c.API == nil {
		return APIConfigSection{}
	}
	return *c.API
}

// DiscoverySection returns the discovery section, or an empty one when absent.
func (c *Config) DiscoverySection() DiscoveryConfigSection {
	if c.Discovery == nil {
		return DiscoveryConfigSection{}
	}
	return *c.Discovery
}

// AlertsSection returns the alerts section, or an empty one when absent.
func (c *Config) AlertsSection() AlertsConfigSection {
	if c.Alerts == nil {
		return AlertsConfigSection{}
	}
	return *c.Alerts
}

// MetricsExporter returns the configured exporter, defaulting to none.
func (c *Config) MetricsExporter() telemetry.Exporter {
	if c.Telemetry == nil {
		return telemetry.ExporterNone
	}
	// Validated at load.
	e, _ := telemetry.ParseExporter(c.Telemetry.MetricsExporter)
	return e
}

// Validate orchestrates validation of configuration structure.
func (c *Config) Validate() error {
	var errs []error

	if err := validateServers(c.Servers); err != nil {
		errs = append(errs, err)
	}
	if c.Monitor != nil {
		if err := c.Monitor.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("monitor configuration error: %w", err))
		}
	}
	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("api configuration error: %w", err))
		}
	}
	if c.Telemetry != nil {
		if _, err := telemetry.ParseExporter(c.Telemetry.MetricsExporter); err != nil {
			errs = append(errs, fmt.Errorf("telemetry configuration error: %w", err))
		}
	}
	if c.Discovery != nil {
		if err := c.Discovery.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("discovery configuration error: %w", err))
		}
	}
	if c.Alerts != nil {
		if err := c.Alerts.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("alerts configuration error: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate implements validation for MonitorConfigSection.
func (m *MonitorConfigSection) Validate() error {
	var errs []error

	if m.CheckInterval != nil && *m.CheckInterval <= 0 {
		errs = append(errs, NewErrInvalidValue("monitor.check_interval", m.CheckInterval.String()))
	}
	if m.CheckTimeout != nil && *m.CheckTimeout <= 0 {
		errs = append(errs, NewErrInvalidValue("monitor.check_timeout", m.CheckTimeout.String()))
	}
	if m.MaxConcurrentChecks != nil && *m.MaxConcurrentChecks <= 0 {
		errs = append(errs, NewErrInvalidValue("monitor.max_concurrent_checks", fmt.Sprint(*m.MaxConcurrentChecks)))
	}
	if m.HistorySize != nil && *m.HistorySize <= 0 {
		errs = append(errs, NewErrInvalidValue("monitor.history_size", fmt.Sprint(*m.HistorySize)))
	}
	for name, v := range m.Thresholds {
		if v <= 0 {
			errs = append(errs, NewErrInvalidValue("monitor.thresholds."+name, fmt.Sprint(v)))
		}
	}

	return errors.Join(errs...)
}

// Validate implements validation for APIConfigSection.
func (a *APIConfigSection) Validate() error {
	var errs []error

	if a.Addr != nil {
		if _, _, err := net.SplitHostPort(*a.Addr); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", NewErrInvalidValue("api.addr", *a.Addr), err))
		}
	}
	if a.ShutdownTimeout != nil && *a.ShutdownTimeout <= 0 {
		errs = append(errs, NewErrInvalidValue("api.shutdown_timeout", a.ShutdownTimeout.String()))
	}
	if a.MetricsPath != nil && !strings.HasPrefix(*a.MetricsPath, "/") {
		errs = append(errs, NewErrInvalidValue("api.metrics_path", *a.MetricsPath))
	}
	if a.CORS != nil && a.CORS.Enable != nil && *a.CORS.Enable && len(a.CORS.Origins) == 0 {
		errs = append(errs, fmt.Errorf("api.cors.allow_origins must be set when CORS is enabled"))
	}
	if a.CORS != nil && a.CORS.MaxAge != nil && *a.CORS.MaxAge < 0 {
		errs = append(errs, NewErrInvalidValue("api.cors.max_age", a.CORS.MaxAge.String()))
	}

	return errors.Join(errs...)
}

// Validate implements validation for DiscoveryConfigSection.
func (s *DiscoveryConfigSection) Validate() error {
	var errs []error

	for i, f := range s.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("discovery.files[%d] is empty", i))
		}
	}
	if s.Timeout != nil && *s.Timeout <= 0 {
		errs = append(errs, NewErrInvalidValue("discovery.timeout", s.Timeout.String()))
	}
	if s.Interval != nil && *s.Interval <= 0 {
		errs = append(errs, NewErrInvalidValue("discovery.interval", s.Interval.String()))
	}

	return errors.Join(errs...)
}

// Validate implements validation for AlertsConfigSection.
func (s *AlertsConfigSection) Validate() error {
	var errs []error

	if s.HistorySize != nil && *s.HistorySize <= 0 {
		errs = append(errs, NewErrInvalidValue("alerts.history_size", fmt.Sprint(*s.HistorySize)))
	}

	for i, w := range s.Webhooks {
		u, err := url.Parse(strings.TrimSpace(w.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, NewErrInvalidValue(fmt.Sprintf("alerts.webhooks[%d].url", i), w.URL))
		}
		if w.MinSeverity != "" {
			if _, err := domain.ParseSeverity(w.MinSeverity); err != nil {
				errs = append(errs, fmt.Errorf("alerts.webhooks[%d]: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}

// validateServers ensures every entry has a unique name and converts to a valid descriptor.
func validateServers(entries []ServerEntry) error {
	var errs []error
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("server entry has empty name"))
			continue
		}
		if _, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("duplicate server name '%s'", name))
			continue
		}
		seen[name] = struct{}{}

		if _, err := entry.ToDescriptor(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// decodeFile decodes path into v, rejecting keys that do not map to a field.
func decodeFile(path string, v any) error {
	if isYAML(path) {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}

	md, err := toml.DecodeFile(path, v)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys: %s", ErrInvalidKey, strings.Join(keys, ", "))
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
