//go:build docsgen_api

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/api"
	"github.com/mozilla-ai/mcpreg/internal/cmd"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/health"
	"github.com/mozilla-ai/mcpreg/internal/registry"
)

// stubRegistry satisfies api.RegistryReader; only route definitions matter for the OpenAPI document.
type stubRegistry struct{}

func (*stubRegistry) ListServers() []domain.ServerDescriptor {
	return nil
}

func (*stubRegistry) GetServer(string) (domain.ServerDescriptor, error) {
	return domain.ServerDescriptor{}, nil
}

func (*stubRegistry) GetHealthyServers() []domain.ServerDescriptor {
	return nil
}

func (*stubRegistry) GetServersByCapability(string) []domain.ServerDescriptor {
	return nil
}

func (*stubRegistry) Capabilities() []string {
	return nil
}

func (*stubRegistry) GetPrimaryServer(string) (string, error) {
	return "", nil
}

func (*stubRegistry) GetRegistryStats() registry.Stats {
	return registry.Stats{}
}

func (*stubRegistry) InPool(string) bool {
	return true
}

type stubMonitor struct{}

func (*stubMonitor) Status(string) domain.HealthStatus {
	return domain.HealthStatusUnknown
}

func (*stubMonitor) Report(string) (domain.ServerHealthReport, error) {
	return domain.ServerHealthReport{}, nil
}

func (*stubMonitor) History(string) ([]domain.MetricsSnapshot, error) {
	return nil, nil
}

func (*stubMonitor) GetHealthSummary() health.Summary {
	return health.Summary{}
}

type stubAlerts struct{}

func (*stubAlerts) Filter(string, domain.Severity) []domain.AlertEvent {
	return nil
}

// main writes the OpenAPI specification of the mcpreg API.
// It assumes it is run from the repository root.
func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mcpreg.docsgen.api",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	outputPath := "./docs/api/openapi.yaml"

	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)
	router := humachi.New(mux, huma.DefaultConfig("mcpreg docs", cmd.Version()))

	prefix, err := api.RegisterRoutes(router, &stubRegistry{}, &stubMonitor{}, &stubAlerts{})
	if err != nil {
		logger.Error("failed to register API routes", "error", err)
		os.Exit(1)
	}
	logger.Info("Routes registered", "prefix", prefix)

	yamlBytes, err := router.OpenAPI().YAML()
	if err != nil {
		logger.Error("failed to generate OpenAPI YAML", "error", err)
		os.Exit(1)
	}

	docsDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		logger.Error("failed to create docs directory", "path", docsDir, "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, yamlBytes, 0o644); err != nil {
		logger.Error("failed to write OpenAPI spec", "path", outputPath, "error", err)
		os.Exit(1)
	}

	logger.Info("OpenAPI spec generated", "path", outputPath, "size", fmt.Sprintf("%d bytes", len(yamlBytes)))
}
