package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

// maxHealthBodyBytes bounds how much of a health response body is read.
const maxHealthBodyBytes = 64 * 1024

var _ contracts.HealthProbe = (*HTTPProbe)(nil)

// HTTPProbe checks http servers with GET {endpoint}/health (or the descriptor's HealthURL).
// A 2xx response is healthy unless the JSON body reports "status": "unhealthy".
type HTTPProbe struct {
	client *http.Client
}

// healthPayload is the optional JSON body returned by a server's health endpoint.
type healthPayload struct {
	Status  string         `json:"status"`
	Metrics map[string]any `json:"metrics"`
}

// NewHTTPProbe creates an HTTPProbe. A nil client uses a client without its own timeout;
// the probe deadline comes from the context supplied by the health monitor.
func NewHTTPProbe(client *http.Client) *HTTPProbe {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProbe{client: client}
}

// HealthURL returns the URL probed for the server.
func HealthURL(server domain.ServerDescriptor) (string, error) {
	if u := strings.TrimSpace(server.HealthURL); u != "" {
		return u, nil
	}
	endpoint := strings.TrimSpace(server.Endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("server '%s' has no endpoint", server.Name)
	}
	return url.JoinPath(endpoint, "health")
}

// Probe implements contracts.HealthProbe.
func (p *HTTPProbe) Probe(ctx context.Context, server domain.ServerDescriptor) (contracts.ProbeResult, error) {
	target, err := HealthURL(server)
	if err != nil {
		return contracts.ProbeResult{}, fmt.Errorf("%w: %w", errors.ErrHealthCheck, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return contracts.ProbeResult{}, fmt.Errorf("%w: building request for %s: %w", errors.ErrHealthCheck, target, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return contracts.ProbeResult{}, fmt.Errorf("%w: GET %s: %w", errors.ErrHealthCheck, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBodyBytes))
	if err != nil {
		return contracts.ProbeResult{}, fmt.Errorf("%w: reading body from %s: %w", errors.ErrHealthCheck, target, err)
	}

	result := contracts.ProbeResult{
		Healthy: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Message: resp.Status,
	}

	var payload healthPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		// An explicit "unhealthy" wins over the status code.
		if strings.EqualFold(strings.TrimSpace(payload.Status), string(domain.HealthStatusUnhealthy)) {
			result.Healthy = false
			result.Message = fmt.Sprintf("%s (reported unhealthy)", resp.Status)
		}
		result.Metrics = numericMetrics(payload.Metrics)
	}

	return result, nil
}

// numericMetrics keeps the numeric entries of a decoded metrics object.
func numericMetrics(in map[string]any) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}
