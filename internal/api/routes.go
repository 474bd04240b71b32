// Package api exposes the read-only query surface of the registry, health monitor and alert history over HTTP.
package api

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/health"
	"github.com/mozilla-ai/mcpreg/internal/registry"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// RegistryReader is the read-only view of the registry used by the API.
type RegistryReader interface {
	ListServers() []domain.ServerDescriptor
	GetServer(name string) (domain.ServerDescriptor, error)
	GetHealthyServers() []domain.ServerDescriptor
	GetServersByCapability(capability string) []domain.ServerDescriptor
	Capabilities() []string
	GetPrimaryServer(serviceType string) (string, error)
	GetRegistryStats() registry.Stats
	InPool(name string) bool
}

// HealthReader is the read-only view of the health monitor used by the API.
type HealthReader interface {
	Status(name string) domain.HealthStatus
	Report(name string) (domain.ServerHealthReport, error)
	History(name string) ([]domain.MetricsSnapshot, error)
	GetHealthSummary() health.Summary
}

// AlertReader gives access to recently emitted alerts.
type AlertReader interface {
	Filter(server string, min domain.Severity) []domain.AlertEvent
}

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(router huma.API, servers RegistryReader, monitor HealthReader, alerts AlertReader) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if servers == nil || reflect.ValueOf(servers).IsNil() {
		return "", fmt.Errorf("registry cannot be nil")
	}
	if monitor == nil || reflect.ValueOf(monitor).IsNil() {
		return "", fmt.Errorf("health monitor cannot be nil")
	}
	if alerts == nil || reflect.ValueOf(alerts).IsNil() {
		return "", fmt.Errorf("alert history cannot be nil")
	}

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", APIVersion)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterServerRoutes(versionedGroup, servers, monitor, "/servers")
	RegisterCapabilityRoutes(versionedGroup, servers, monitor, "/capabilities")
	RegisterRegistryRoutes(versionedGroup, servers)
	RegisterHealthRoutes(versionedGroup, monitor, "/health")
	RegisterAlertRoutes(versionedGroup, alerts, "/alerts")

	return apiPathPrefix, nil
}
