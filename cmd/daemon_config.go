package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/alert"
	"github.com/mozilla-ai/mcpreg/internal/cmd"
	"github.com/mozilla-ai/mcpreg/internal/config"
	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/daemon"
	"github.com/mozilla-ai/mcpreg/internal/discovery"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/health"
	"github.com/mozilla-ai/mcpreg/internal/probe"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

// newDaemon assembles a daemon from the loaded configuration.
// Stdout metrics, when selected, are written to out.
func newDaemon(logger hclog.Logger, cfg *config.Config, addr string, out io.Writer) (*daemon.Daemon, error) {
	probes, err := probe.NewDefaultFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create health probes: %w", err)
	}

	sources, err := discoverySources(logger, cfg)
	if err != nil {
		return nil, err
	}

	deps, err := daemon.NewDependencies(logger, addr, probes, sources...)
	if err != nil {
		return nil, err
	}

	opts, err := daemonOptions(cfg, probes)
	if err != nil {
		return nil, err
	}

	var provider *telemetry.Provider
	if exporter := cfg.MetricsExporter(); exporter != telemetry.ExporterNone {
		provider, err = telemetry.NewProvider(exporter, cmd.Version(), out)
		if err != nil {
			return nil, err
		}
		opts = append(opts, daemon.WithTelemetry(provider))
	}

	d, err := daemon.NewDaemon(deps, opts...)
	if err != nil {
		if provider != nil {
			_ = provider.Shutdown(context.Background())
		}
		return nil, err
	}

	return d, nil
}

// discoverySources returns the configured servers as a static source followed by
// one source per manifest file and, when enabled, MCP capability discovery.
func discoverySources(logger hclog.Logger, cfg *config.Config) ([]contracts.DiscoverySource, error) {
	descriptors, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}

	sources := []contracts.DiscoverySource{discovery.NewStaticSource("config", descriptors...)}

	d := cfg.DiscoverySection()
	for _, path := range d.Files {
		fs, err := discovery.NewFileSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, fs)
	}

	if d.MCPManifests {
		mcp, err := discovery.NewMCPSource(
			logger,
			descriptors,
			discovery.WithTimeout(config.DurationOr(d.Timeout, discovery.DefaultMCPTimeout())),
			discovery.WithClientVersion(cmd.Version()),
		)
		if err != nil {
			return nil, err
		}
		sources = append(sources, mcp)
	}

	return sources, nil
}

// daemonOptions maps the monitor, api, alerts and discovery sections onto daemon options.
func daemonOptions(cfg *config.Config, probes *probe.Factory) ([]daemon.Option, error) {
	m := cfg.MonitorSection()
	monitorOpts := []health.Option{
		health.WithCheckInterval(config.DurationOr(m.CheckInterval, health.DefaultCheckInterval())),
		health.WithCheckTimeout(config.DurationOr(m.CheckTimeout, health.DefaultCheckTimeout())),
	}
	if m.MaxConcurrentChecks != nil {
		monitorOpts = append(monitorOpts, health.WithMaxConcurrentChecks(*m.MaxConcurrentChecks))
	}
	if m.HistorySize != nil {
		monitorOpts = append(monitorOpts, health.WithHistorySize(*m.HistorySize))
	}
	if len(m.Thresholds) > 0 {
		monitorOpts = append(monitorOpts, health.WithMetricThresholds(m.Thresholds))
	}
	if mp, ok := probes.MetricProbe(); ok {
		monitorOpts = append(monitorOpts, health.WithMetricProbe(mp))
	}

	opts := []daemon.Option{
		daemon.WithMonitorOptions(monitorOpts...),
		daemon.WithAPIOptions(apiOptions(cfg.APISection())...),
	}

	a := cfg.AlertsSection()
	if a.HistorySize != nil {
		opts = append(opts, daemon.WithAlertHistorySize(*a.HistorySize))
	}
	for i, w := range a.Webhooks {
		handler, err := webhookHandler(w)
		if err != nil {
			return nil, fmt.Errorf("alerts.webhooks[%d]: %w", i, err)
		}
		opts = append(opts, daemon.WithAlertHandler(fmt.Sprintf("webhook-%d", i), handler))
	}

	if interval := cfg.DiscoverySection().Interval; interval != nil {
		opts = append(opts, daemon.WithDiscoveryInterval(config.DurationOr(interval, 0)))
	}

	return opts, nil
}

func apiOptions(api config.APIConfigSection) []daemon.APIOption {
	opts := []daemon.APIOption{
		daemon.WithShutdownTimeout(config.DurationOr(api.ShutdownTimeout, daemon.DefaultAPIShutdownTimeout())),
	}
	if api.MetricsPath != nil {
		opts = append(opts, daemon.WithMetricsPath(*api.MetricsPath))
	}

	cors := api.CORS
	if cors == nil || cors.Enable == nil || !*cors.Enable {
		return opts
	}

	opts = append(opts,
		daemon.WithCORSEnabled(true),
		daemon.WithCORSAllowOrigins(cors.Origins),
		daemon.WithCORSMaxAge(config.DurationOr(cors.MaxAge, daemon.DefaultCORSMaxAge())),
	)
	if len(cors.Headers) > 0 {
		opts = append(opts, daemon.WithCORSAllowHeaders(cors.Headers))
	}
	if len(cors.ExposeHeaders) > 0 {
		opts = append(opts, daemon.WithCORSExposeHeaders(cors.ExposeHeaders))
	}

	return opts
}

func webhookHandler(w config.WebhookEntry) (*alert.WebhookHandler, error) {
	minSeverity := domain.SeverityInfo
	if w.MinSeverity != "" {
		sev, err := domain.ParseSeverity(w.MinSeverity)
		if err != nil {
			return nil, err
		}
		minSeverity = sev
	}

	return alert.NewWebhookHandler(alert.WebhookConfig{
		URL:         w.URL,
		MinSeverity: minSeverity,
		Headers:     w.Headers,
	})
}
