// Package probe provides the transport specific health probes used by the health monitor.
package probe

import (
	"fmt"
	"reflect"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// Factory chooses the HealthProbe for a server once, at registration.
type Factory struct {
	stdio contracts.HealthProbe
	http  contracts.HealthProbe
}

// NewFactory creates a Factory from one probe per transport kind.
func NewFactory(stdio contracts.HealthProbe, http contracts.HealthProbe) (*Factory, error) {
	if stdio == nil || reflect.ValueOf(stdio).IsNil() {
		return nil, fmt.Errorf("stdio probe cannot be nil")
	}
	if http == nil || reflect.ValueOf(http).IsNil() {
		return nil, fmt.Errorf("http probe cannot be nil")
	}
	return &Factory{stdio: stdio, http: http}, nil
}

// NewDefaultFactory creates a Factory with a ProcessProbe reading /proc and an HTTPProbe using a default client.
func NewDefaultFactory() (*Factory, error) {
	processProbe, err := NewProcessProbe("")
	if err != nil {
		return nil, err
	}
	return NewFactory(processProbe, NewHTTPProbe(nil))
}

// ProbeFor returns the probe matching the server's transport, or nil for an unknown transport.
func (f *Factory) ProbeFor(server domain.ServerDescriptor) contracts.HealthProbe {
	switch server.Transport {
	case domain.TransportStdio:
		return f.stdio
	case domain.TransportHTTP:
		return f.http
	default:
		return nil
	}
}

// MetricProbe returns the stdio probe as a MetricProbe when it supports metric collection.
func (f *Factory) MetricProbe() (contracts.MetricProbe, bool) {
	mp, ok := f.stdio.(contracts.MetricProbe)
	return mp, ok
}
