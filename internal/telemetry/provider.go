// Package telemetry exports OpenTelemetry metrics for the registry daemon.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	ExporterPrometheus Exporter = "prometheus"
	ExporterStdout     Exporter = "stdout"
	ExporterNone       Exporter = "none"
)

// Exporter names a metrics exporter.
type Exporter string

// ParseExporter converts a string into an Exporter. An empty string selects ExporterNone.
func ParseExporter(s string) (Exporter, error) {
	e := Exporter(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case "":
		return ExporterNone, nil
	case ExporterPrometheus, ExporterStdout, ExporterNone:
		return e, nil
	default:
		return "", fmt.Errorf("unknown metrics exporter: %q", s)
	}
}

// Provider owns the meter provider and, for the prometheus exporter, the scrape handler.
type Provider struct {
	exporter Exporter
	mp       *sdkmetric.MeterProvider
	handler  http.Handler
}

// NewProvider creates a meter provider for the named exporter.
// The stdout exporter writes to w, or os.Stdout when w is nil.
func NewProvider(exporter Exporter, version string, w io.Writer) (*Provider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "mcpreg"),
		attribute.String("service.version", version),
	)

	p := &Provider{exporter: exporter}

	var reader sdkmetric.Reader
	switch exporter {
	case ExporterPrometheus:
		reg := prom.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exp
		p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	case ExporterNone:
		// A provider without readers drops every measurement.
	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", exporter)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	p.mp = sdkmetric.NewMeterProvider(opts...)

	return p, nil
}

// Meter returns the registry daemon's meter.
func (p *Provider) Meter() metric.Meter {
	return p.mp.Meter(meterName)
}

// Handler returns the Prometheus scrape handler, or nil when the exporter is not prometheus.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Exporter returns the configured exporter.
func (p *Provider) Exporter() Exporter {
	return p.exporter
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
