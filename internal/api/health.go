package api

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/health"
)

// DomainServerHealth is a wrapper that allows receivers to be declared in the API package that deal with domain types.
type DomainServerHealth domain.ServerHealthReport

// DomainSnapshot wraps domain.MetricsSnapshot for API conversion.
type DomainSnapshot domain.MetricsSnapshot

// HealthStatus represents the current status of a particular server when establishing its health.
type HealthStatus string

// HealthMetric is a single measurement taken during the last check.
type HealthMetric struct {
	Name      string       `json:"name"`
	Value     float64      `json:"value"`
	Threshold float64      `json:"threshold"`
	Status    HealthStatus `json:"status"`
}

// ServerHealth is the health report of a single server.
type ServerHealth struct {
	Name                string         `json:"name"`
	Status              HealthStatus   `json:"status"`
	HealthScore         float64        `json:"healthScore"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	UptimeSeconds       float64        `json:"uptimeSeconds"`
	CheckCount          int            `json:"checkCount"`
	ErrorCount          int            `json:"errorCount"`
	LastError           string         `json:"lastError,omitempty"`
	Latency             *string        `json:"latency,omitempty"`
	LastChecked         *time.Time     `json:"lastChecked,omitempty"`
	LastSuccessful      *time.Time     `json:"lastSuccessful,omitempty"`
	Metrics             []HealthMetric `json:"metrics"`
}

// Snapshot is an entry of a server's rolling metrics history.
type Snapshot struct {
	Timestamp   time.Time      `json:"timestamp"`
	Status      HealthStatus   `json:"status"`
	HealthScore float64        `json:"healthScore"`
	Failed      bool           `json:"failed"`
	Metrics     []HealthMetric `json:"metrics"`
}

// HealthSummaryResponse is the response for GET /health
type HealthSummaryResponse struct {
	Body health.Summary
}

// ServerHealthRequest represents the incoming request for obtaining ServerHealth.
type ServerHealthRequest struct {
	Name string `doc:"Name of the server to check" example:"fraud-db-b" path:"name"`
}

// ServerHealthResponse represents the wrapped API response for a ServerHealth.
type ServerHealthResponse struct {
	Body ServerHealth
}

// ServerHistoryResponse represents the wrapped API response for a server's metrics history.
type ServerHistoryResponse struct {
	Body struct {
		History []Snapshot `doc:"Rolling metrics history, oldest first" json:"history"`
	}
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainServerHealth) ToAPIType() (ServerHealth, error) {
	status, err := parseHealthStatus(d.Status)
	if err != nil {
		return ServerHealth{}, err
	}

	metrics, err := convertMetrics(d.Metrics)
	if err != nil {
		return ServerHealth{}, err
	}

	var latency *string
	if d.Latency != nil {
		s := d.Latency.String()
		latency = &s
	}

	return ServerHealth{
		Name:                d.ServerName,
		Status:              status,
		HealthScore:         d.HealthScore,
		ConsecutiveFailures: d.ConsecutiveFailures,
		UptimeSeconds:       d.UptimeSeconds,
		CheckCount:          d.CheckCount,
		ErrorCount:          d.ErrorCount,
		LastError:           d.LastError,
		Latency:             latency,
		LastChecked:         d.LastCheck,
		LastSuccessful:      d.LastSuccessful,
		Metrics:             metrics,
	}, nil
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainSnapshot) ToAPIType() (Snapshot, error) {
	status, err := parseHealthStatus(d.Status)
	if err != nil {
		return Snapshot{}, err
	}

	metrics, err := convertMetrics(d.Metrics)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Timestamp:   d.Timestamp,
		Status:      status,
		HealthScore: d.HealthScore,
		Failed:      d.Failed,
		Metrics:     metrics,
	}, nil
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(routerAPI huma.API, monitor HealthReader, apiPathPrefix string) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getHealthSummary",
			Method:      http.MethodGet,
			Summary:     "Summarize the health of all tracked servers",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*HealthSummaryResponse, error) {
			return &HealthSummaryResponse{Body: monitor.GetHealthSummary()}, nil
		},
	)

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getServerHealth",
			Method:      http.MethodGet,
			Path:        "/servers/{name}",
			Summary:     "Get the health report of a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerHealthRequest) (*ServerHealthResponse, error) {
			return handleHealthServer(monitor, input.Name)
		},
	)

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getServerHealthHistory",
			Method:      http.MethodGet,
			Path:        "/servers/{name}/history",
			Summary:     "Get the rolling metrics history of a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerHealthRequest) (*ServerHistoryResponse, error) {
			return handleHealthHistory(monitor, input.Name)
		},
	)
}

// handleHealthServer is the handler for retrieving the current health of the specified server.
func handleHealthServer(monitor HealthReader, name string) (*ServerHealthResponse, error) {
	report, err := monitor.Report(name)
	if err != nil {
		return nil, err
	}

	data, err := DomainServerHealth(report).ToAPIType()
	if err != nil {
		return nil, err
	}

	return &ServerHealthResponse{Body: data}, nil
}

func handleHealthHistory(monitor HealthReader, name string) (*ServerHistoryResponse, error) {
	history, err := monitor.History(name)
	if err != nil {
		return nil, err
	}

	snapshots := make([]DomainSnapshot, 0, len(history))
	for _, s := range history {
		snapshots = append(snapshots, DomainSnapshot(s))
	}
	out, err := convertAll[Snapshot](snapshots)
	if err != nil {
		return nil, err
	}

	resp := &ServerHistoryResponse{}
	resp.Body.History = out
	return resp, nil
}

func convertMetrics(in map[string]domain.HealthMetric) ([]HealthMetric, error) {
	out := make([]HealthMetric, 0, len(in))
	for _, name := range slices.Sorted(maps.Keys(in)) {
		m := in[name]
		status, err := parseHealthStatus(m.Status)
		if err != nil {
			return nil, fmt.Errorf("metric '%s': %w", name, err)
		}
		out = append(out, HealthMetric{
			Name:      m.Name,
			Value:     m.Value,
			Threshold: m.Threshold,
			Status:    status,
		})
	}
	return out, nil
}

func parseHealthStatus(status domain.HealthStatus) (HealthStatus, error) {
	parsed, err := domain.ParseHealthStatus(string(status))
	if err != nil {
		return "", fmt.Errorf("unknown health status: %s", status)
	}
	return HealthStatus(parsed), nil
}
