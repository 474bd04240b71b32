package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (h *recordingHandler) Handle(_ context.Context, event domain.AlertEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) received() []domain.AlertEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.AlertEvent(nil), h.events...)
}

func fixedClock(t time.Time) contracts.Clock {
	return contracts.ClockFunc(func() time.Time { return t })
}

func TestNewDispatcher(t *testing.T) {
	t.Parallel()

	_, err := NewDispatcher(nil)
	require.ErrorContains(t, err, "logger cannot be nil")

	_, err = NewDispatcher(hclog.NewNullLogger(), WithHandlerTimeout(0))
	require.ErrorContains(t, err, "handler timeout must be positive")

	_, err = NewDispatcher(hclog.NewNullLogger(), WithClock(nil))
	require.ErrorContains(t, err, "clock cannot be nil")

	d, err := NewDispatcher(hclog.NewNullLogger())
	require.NoError(t, err)
	require.Empty(t, d.Handlers())
}

func TestDispatcher_AddHandler(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(hclog.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, d.AddHandler("one", &recordingHandler{}))
	require.ErrorContains(t, d.AddHandler("one", &recordingHandler{}), "already registered")
	require.ErrorContains(t, d.AddHandler(" ", &recordingHandler{}), "handler name is required")
	require.ErrorContains(t, d.AddHandler("nil", nil), "cannot be nil")

	var typedNil *recordingHandler
	require.ErrorContains(t, d.AddHandler("typed-nil", typedNil), "cannot be nil")

	require.NoError(t, d.AddHandler("two", &recordingHandler{}))
	require.Equal(t, []string{"one", "two"}, d.Handlers())
}

func TestDispatcher_Emit_IsolatesHandlers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, err := NewDispatcher(hclog.NewNullLogger(), WithClock(fixedClock(now)))
	require.NoError(t, err)

	first := &recordingHandler{}
	last := &recordingHandler{}

	require.NoError(t, d.AddHandler("first", first))
	require.NoError(t, d.AddHandler("erroring", contracts.AlertHandlerFunc(func(context.Context, domain.AlertEvent) error {
		return fmt.Errorf("smtp unavailable")
	})))
	require.NoError(t, d.AddHandler("panicking", contracts.AlertHandlerFunc(func(context.Context, domain.AlertEvent) error {
		panic("nil map")
	})))
	require.NoError(t, d.AddHandler("last", last))

	require.NotPanics(t, func() {
		d.Emit(context.Background(), domain.AlertEvent{
			ServerName: "b",
			Severity:   domain.SeverityCritical,
			Message:    "primary switched",
		})
	})

	for _, h := range []*recordingHandler{first, last} {
		got := h.received()
		require.Len(t, got, 1)
		require.NotEmpty(t, got[0].ID)
		require.Equal(t, now, got[0].Timestamp)
		require.Equal(t, "b", got[0].ServerName)
		require.Equal(t, domain.SeverityCritical, got[0].Severity)
	}
	require.Equal(t, first.received()[0].ID, last.received()[0].ID)
}

func TestDispatcher_Emit_KeepsProvidedFields(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(hclog.NewNullLogger())
	require.NoError(t, err)
	h := &recordingHandler{}
	require.NoError(t, d.AddHandler("h", h))

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.Emit(context.Background(), domain.AlertEvent{ID: "fixed", Timestamp: ts, Severity: domain.SeverityInfo})

	got := h.received()
	require.Len(t, got, 1)
	require.Equal(t, "fixed", got[0].ID)
	require.Equal(t, ts, got[0].Timestamp)
}

func TestDispatcher_Emit_HandlerTimeout(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(hclog.NewNullLogger(), WithHandlerTimeout(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, d.AddHandler("slow", contracts.AlertHandlerFunc(func(ctx context.Context, _ domain.AlertEvent) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), domain.AlertEvent{Severity: domain.SeverityWarning})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit did not return after the handler timed out")
	}
}

func TestDispatcher_NewEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, err := NewDispatcher(hclog.NewNullLogger(), WithClock(fixedClock(now)))
	require.NoError(t, err)

	a := d.NewEvent("a", domain.SeverityWarning, "condition fired")
	b := d.NewEvent("a", domain.SeverityWarning, "condition fired")

	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, now, a.Timestamp)
	require.Equal(t, "a", a.ServerName)
	require.Equal(t, "condition fired", a.Message)
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity domain.Severity
		want     string
	}{
		{severity: domain.SeverityInfo, want: "[INFO]"},
		{severity: domain.SeverityWarning, want: "[WARN]"},
		{severity: domain.SeverityCritical, want: "[ERROR]"},
	}

	for _, tc := range tests {
		t.Run(string(tc.severity), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Trace})
			h, err := NewLogHandler(logger)
			require.NoError(t, err)

			require.NoError(t, h.Handle(context.Background(), domain.AlertEvent{
				ID:         "1",
				ServerName: "a",
				Severity:   tc.severity,
				Message:    "something happened",
			}))

			out := buf.String()
			require.Contains(t, out, tc.want)
			require.Contains(t, out, "something happened")
			require.Contains(t, out, "server=a")
		})
	}

	_, err := NewLogHandler(nil)
	require.Error(t, err)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	_, err := NewHistory(0)
	require.Error(t, err)

	h, err := NewHistory(3)
	require.NoError(t, err)

	severities := []domain.Severity{
		domain.SeverityInfo,
		domain.SeverityWarning,
		domain.SeverityCritical,
		domain.SeverityWarning,
		domain.SeverityCritical,
	}
	for i, sev := range severities {
		server := "a"
		if i%2 == 1 {
			server = "b"
		}
		require.NoError(t, h.Handle(context.Background(), domain.AlertEvent{
			ID:         fmt.Sprintf("%d", i),
			ServerName: server,
			Severity:   sev,
		}))
	}

	events := h.Events()
	require.Len(t, events, 3)
	require.Equal(t, "2", events[0].ID)
	require.Equal(t, "4", events[2].ID)

	critical := h.Filter("", domain.SeverityCritical)
	require.Len(t, critical, 2)

	forB := h.Filter("b", domain.SeverityInfo)
	require.Len(t, forB, 1)
	require.Equal(t, "3", forB[0].ID)

	// Events returns a copy.
	events[0].ID = "mutated"
	require.Equal(t, "2", h.Events()[0].ID)
}

func TestNewWebhookHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     WebhookConfig
		wantErr string
	}{
		{name: "valid", cfg: WebhookConfig{URL: "https://hooks.example/alerts"}},
		{name: "missing url", cfg: WebhookConfig{}, wantErr: "webhook url is required"},
		{name: "bad scheme", cfg: WebhookConfig{URL: "ftp://hooks.example"}, wantErr: "must use http or https"},
		{name: "bad severity", cfg: WebhookConfig{URL: "http://x", MinSeverity: "LOUD"}, wantErr: "unknown severity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h, err := NewWebhookHandler(tc.cfg)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, domain.SeverityInfo, h.cfg.MinSeverity)
		})
	}
}

func TestWebhookHandler_Handle(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []domain.AlertEvent
		headers  []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/alerts" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var e domain.AlertEvent
		if err := json.Unmarshal(body, &e); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, e)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	h, err := NewWebhookHandler(WebhookConfig{
		URL:         srv.URL + "/alerts",
		MinSeverity: domain.SeverityWarning,
		Headers:     map[string]string{"X-Token": "secret"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, domain.AlertEvent{ID: "info", Severity: domain.SeverityInfo}))
	require.NoError(t, h.Handle(ctx, domain.AlertEvent{ID: "crit", ServerName: "b", Severity: domain.SeverityCritical}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, "crit", received[0].ID)
	require.Equal(t, "b", received[0].ServerName)
	require.Equal(t, "application/json", headers[0].Get("Content-Type"))
	require.Equal(t, "secret", headers[0].Get("X-Token"))
}

func TestWebhookHandler_Handle_Failures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	h, err := NewWebhookHandler(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)
	err = h.Handle(context.Background(), domain.AlertEvent{Severity: domain.SeverityCritical})
	require.ErrorContains(t, err, "unexpected status code: 502")

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()

	h, err = NewWebhookHandler(WebhookConfig{URL: url})
	require.NoError(t, err)
	err = h.Handle(context.Background(), domain.AlertEvent{Severity: domain.SeverityCritical})
	require.ErrorContains(t, err, "webhook request failed")
}
