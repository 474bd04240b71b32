package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

var _ contracts.AlertHandler = (*WebhookHandler)(nil)

// HTTPClient abstracts outbound HTTP execution.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookConfig configures a WebhookHandler.
type WebhookConfig struct {
	// URL receives a JSON POST of each alert.
	URL string

	// MinSeverity drops alerts below this severity. Defaults to INFO.
	MinSeverity domain.Severity

	// Headers are added to every request.
	Headers map[string]string

	// Client performs the requests. Defaults to http.DefaultClient.
	Client HTTPClient
}

// WebhookHandler posts alerts as JSON to an HTTP endpoint.
type WebhookHandler struct {
	cfg WebhookConfig
}

// NewWebhookHandler validates the configuration and creates a WebhookHandler.
func NewWebhookHandler(cfg WebhookConfig) (*WebhookHandler, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url '%s': %w", cfg.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook url '%s' must use http or https", cfg.URL)
	}

	if cfg.MinSeverity == "" {
		cfg.MinSeverity = domain.SeverityInfo
	}
	if _, err := domain.ParseSeverity(string(cfg.MinSeverity)); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}

	return &WebhookHandler{cfg: cfg}, nil
}

// Handle implements contracts.AlertHandler.
func (h *WebhookHandler) Handle(ctx context.Context, event domain.AlertEvent) error {
	if !event.Severity.AtLeast(h.cfg.MinSeverity) {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
