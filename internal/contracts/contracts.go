package contracts

import (
	"context"
	"time"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// ProbeResult is the outcome of a single liveness check.
type ProbeResult struct {
	// Healthy is the probe's liveness classification.
	Healthy bool

	// Message describes the outcome, e.g. the HTTP status or the matched process.
	Message string

	// Metrics holds optional named measurements reported alongside the check (e.g. memory_usage).
	Metrics map[string]float64
}

// HealthProbe performs one liveness check for a single transport kind.
// Implementations must honor ctx cancellation and must be safe for concurrent use.
type HealthProbe interface {
	// Probe checks the server once. A returned error is classified as a failed check.
	Probe(ctx context.Context, server domain.ServerDescriptor) (ProbeResult, error)
}

// ProbeFunc adapts a function to the HealthProbe interface.
type ProbeFunc func(ctx context.Context, server domain.ServerDescriptor) (ProbeResult, error)

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, server domain.ServerDescriptor) (ProbeResult, error) {
	return f(ctx, server)
}

// MetricProbe supplies named metric values (e.g. memory_usage, connection_count) for a server.
// Metrics it cannot measure are simply omitted from the returned map.
type MetricProbe interface {
	Collect(ctx context.Context, server domain.ServerDescriptor) (map[string]float64, error)
}

// DiscoverySource yields candidate server descriptors keyed by name.
type DiscoverySource interface {
	// Name identifies the source in logs.
	Name() string

	// Discover returns the descriptors the source currently knows about.
	Discover(ctx context.Context) (map[string]domain.ServerDescriptor, error)
}

// AlertHandler receives alert events. It may be called concurrently.
type AlertHandler interface {
	Handle(ctx context.Context, event domain.AlertEvent) error
}

// AlertHandlerFunc adapts a function to the AlertHandler interface.
type AlertHandlerFunc func(ctx context.Context, event domain.AlertEvent) error

// Handle calls f.
func (f AlertHandlerFunc) Handle(ctx context.Context, event domain.AlertEvent) error {
	return f(ctx, event)
}

// AlertEmitter sends an alert to every registered handler.
type AlertEmitter interface {
	Emit(ctx context.Context, event domain.AlertEvent)
}

// HealthReader provides read-only access to health reports.
type HealthReader interface {
	// Status returns the current status of the named server, or HealthStatusUnknown.
	Status(name string) domain.HealthStatus

	// GetHealthScore returns the last computed health score of the named server.
	GetHealthScore(name string) (float64, error)

	// Report returns a copy of the named server's health report.
	Report(name string) (domain.ServerHealthReport, error)
}

// Target is a registered server paired with the probe chosen for it at registration.
type Target struct {
	Descriptor domain.ServerDescriptor
	Probe      HealthProbe
}

// TargetLister lists what the health monitor should check in a cycle.
type TargetLister interface {
	Targets() []Target
}

// Evaluator is invoked after a server's health report has been updated.
type Evaluator interface {
	Evaluate(ctx context.Context, report domain.ServerHealthReport)
}

// RegistryObserver is notified of registry membership changes.
type RegistryObserver interface {
	ServerRegistered(name string)
	ServerUnregistered(name string)
}

// PrimaryController is the subset of the registry the failover engine mutates.
type PrimaryController interface {
	// Server returns a copy of the named server's descriptor.
	Server(name string) (domain.ServerDescriptor, bool)

	// ServiceTypesWithPrimary returns the service types whose primary is the named server.
	ServiceTypesWithPrimary(name string) []string

	// ElectPrimary picks the highest priority healthy, in-pool server for serviceType, excluding the
	// named servers, and records it as primary. It returns the new primary, if any.
	ElectPrimary(serviceType string, exclude ...string) (string, bool)

	// RepairPrimary re-elects the primary for serviceType when the recorded primary is no longer registered.
	RepairPrimary(serviceType string) (string, bool)

	// RemoveFromPool excludes the server from healthy/selection results without unregistering it.
	RemoveFromPool(name string) bool
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
