package daemon

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/api"
)

// APIDependencies contains the required external dependencies for the API server.
// NewAPIDependencies should be used to create instances of APIDependencies.
type APIDependencies struct {
	// Addr specifies the network address to bind (e.g., "0.0.0.0:8090").
	Addr string

	// Registry is the read-only view of registered servers.
	Registry api.RegistryReader

	// Monitor is the read-only view of server health.
	Monitor api.HealthReader

	// Alerts gives access to recently emitted alerts.
	Alerts api.AlertReader

	// MetricsHandler is optional, when set it is mounted at /metrics.
	MetricsHandler http.Handler

	// Logger for API server operations.
	Logger hclog.Logger
}

// NewAPIDependencies creates and validates APIDependencies.
func NewAPIDependencies(
	logger hclog.Logger,
	registry api.RegistryReader,
	monitor api.HealthReader,
	alerts api.AlertReader,
	metrics http.Handler,
	addr string,
) (APIDependencies, error) {
	deps := APIDependencies{
		Addr:           addr,
		Registry:       registry,
		Monitor:        monitor,
		Alerts:         alerts,
		MetricsHandler: metrics,
		Logger:         logger,
	}

	if err := deps.Validate(); err != nil {
		return APIDependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
	}
	if d.Registry == nil || reflect.ValueOf(d.Registry).IsNil() {
		return fmt.Errorf("registry cannot be nil")
	}
	if d.Monitor == nil || reflect.ValueOf(d.Monitor).IsNil() {
		return fmt.Errorf("health monitor cannot be nil")
	}
	if d.Alerts == nil || reflect.ValueOf(d.Alerts).IsNil() {
		return fmt.Errorf("alert history cannot be nil")
	}
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}
