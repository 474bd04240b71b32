package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcpreg/internal/errors"
	"github.com/mozilla-ai/mcpreg/internal/telemetry"
)

func newTestAPIDependencies(t *testing.T) APIDependencies {
	t.Helper()

	d := newTestDaemon(t, newSwitchableProbes())
	deps, err := NewAPIDependencies(hclog.NewNullLogger(), d.Registry(), d.Monitor(), d.Alerts(), nil, "localhost:8090")
	require.NoError(t, err)
	return deps
}

func TestNewAPIServer_AppliesDefaults(t *testing.T) {
	t.Parallel()

	deps := newTestAPIDependencies(t)

	// Test with no options - should get defaults
	server, err := NewAPIServer(deps)
	require.NoError(t, err)
	require.Equal(t, DefaultAPIShutdownTimeout(), server.shutdownTimeout)
	require.False(t, server.cors.Enabled)

	// Test with some options - should get defaults + overrides
	server, err = NewAPIServer(deps, WithShutdownTimeout(10*time.Second), WithCORSEnabled(true))
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, server.shutdownTimeout)
	require.True(t, server.cors.Enabled)

	// Test with nil options - should still work
	server, err = NewAPIServer(deps, nil, WithShutdownTimeout(3*time.Second), nil)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, server.shutdownTimeout)

	_, err = NewAPIServer(APIDependencies{})
	require.ErrorContains(t, err, "invalid dependencies for API server")
}

func TestAPIServer_Routes(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, newSwitchableProbes())
	ctx := context.Background()
	d.Registry().DiscoverServers(ctx)
	d.Monitor().RunCycle(ctx)

	handler, prefix, err := d.apiServer.Handler()
	require.NoError(t, err)
	require.Equal(t, "/api/v1", prefix)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "list servers",
			path:       "/api/v1/servers",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Len(t, body["servers"], 2)
			},
		},
		{
			name:       "trailing slash",
			path:       "/api/v1/servers/",
			wantStatus: http.StatusOK,
		},
		{
			name:       "healthy servers",
			path:       "/api/v1/servers/healthy",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Len(t, body["servers"], 2)
			},
		},
		{
			name:       "get server",
			path:       "/api/v1/servers/db-a",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "db-a", body["name"])
				require.Equal(t, "healthy", body["status"])
				require.Equal(t, true, body["inPool"])
			},
		},
		{
			name:       "unknown server",
			path:       "/api/v1/servers/missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "capability servers",
			path:       "/api/v1/capabilities/write/servers",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Len(t, body["servers"], 1)
			},
		},
		{
			name:       "capabilities",
			path:       "/api/v1/capabilities",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.ElementsMatch(t, []any{"query", "write"}, body["capabilities"])
			},
		},
		{
			name:       "primary",
			path:       "/api/v1/primary/db",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "db-a", body["server"])
			},
		},
		{
			name:       "no primary",
			path:       "/api/v1/primary/cache",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "stats",
			path:       "/api/v1/stats",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.EqualValues(t, 2, body["totalServers"])
				require.EqualValues(t, 2, body["totalCapabilities"])
			},
		},
		{
			name:       "health summary",
			path:       "/api/v1/health",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.EqualValues(t, 2, body["totalServers"])
			},
		},
		{
			name:       "server health",
			path:       "/api/v1/health/servers/db-b",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Equal(t, "healthy", body["status"])
				require.EqualValues(t, 1, body["checkCount"])
			},
		},
		{
			name:       "server health history",
			path:       "/api/v1/health/servers/db-b/history",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Len(t, body["history"], 1)
			},
		},
		{
			name:       "untracked server health",
			path:       "/api/v1/health/servers/missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "alerts",
			path:       "/api/v1/alerts?severity=WARNING",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				require.Empty(t, body["alerts"])
			},
		},
		{
			name:       "alerts with invalid severity",
			path:       "/api/v1/alerts?severity=LOUD",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "metrics not exported",
			path:       "/metrics",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, err := http.Get(srv.URL + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tc.wantStatus, resp.StatusCode)
			if tc.check == nil {
				return
			}

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			tc.check(t, body)
		})
	}
}

func TestAPIServer_Metrics(t *testing.T) {
	t.Parallel()

	provider, err := telemetry.NewProvider(telemetry.ExporterPrometheus, "test", nil)
	require.NoError(t, err)

	d := newTestDaemon(t, newSwitchableProbes(), WithTelemetry(provider))
	ctx := context.Background()
	d.Registry().DiscoverServers(ctx)
	d.Monitor().RunCycle(ctx)

	handler, _, err := d.apiServer.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "mcpreg")
}

func TestAPIServer_CORS(t *testing.T) {
	t.Parallel()

	deps := newTestAPIDependencies(t)

	tests := []struct {
		name            string
		options         []APIOption
		origin          string
		wantAllowOrigin string
	}{
		{
			name:            "disabled",
			options:         nil,
			origin:          "http://localhost:3000",
			wantAllowOrigin: "",
		},
		{
			name: "allowed origin",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"http://localhost:3000", "https://app.example.com"}),
			},
			origin:          "http://localhost:3000",
			wantAllowOrigin: "http://localhost:3000",
		},
		{
			name: "origins are trimmed",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"  http://localhost:3000  "}),
			},
			origin:          "http://localhost:3000",
			wantAllowOrigin: "http://localhost:3000",
		},
		{
			name: "disallowed origin",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"https://app.example.com"}),
			},
			origin:          "http://evil.example.com",
			wantAllowOrigin: "",
		},
		{
			name: "wildcard",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"http://localhost:3000", "*"}),
				WithCORSAllowCredentials(true),
			},
			origin:          "http://anywhere.example.com",
			wantAllowOrigin: "*",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server, err := NewAPIServer(deps, tc.options...)
			require.NoError(t, err)

			handler, _, err := server.Handler()
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, tc.wantAllowOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantAllowOrigin == "*" {
				// Credentials are never allowed alongside a wildcard origin.
				require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestAPIServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	deps := newTestAPIDependencies(t)

	tests := []struct {
		name        string
		options     []APIOption
		method      string
		wantMaxAge  string
		wantMethods bool
	}{
		{
			name: "default max age",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"https://status.example.com"}),
			},
			method:      http.MethodGet,
			wantMaxAge:  "300",
			wantMethods: true,
		},
		{
			name: "configured max age",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"https://status.example.com"}),
				WithCORSMaxAge(time.Minute),
			},
			method:      http.MethodGet,
			wantMaxAge:  "60",
			wantMethods: true,
		},
		{
			name: "mutating method refused",
			options: []APIOption{
				WithCORSEnabled(true),
				WithCORSAllowOrigins([]string{"https://status.example.com"}),
			},
			method: http.MethodDelete,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server, err := NewAPIServer(deps, tc.options...)
			require.NoError(t, err)

			handler, _, err := server.Handler()
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodOptions, "/api/v1/servers", nil)
			req.Header.Set("Origin", "https://status.example.com")
			req.Header.Set("Access-Control-Request-Method", tc.method)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.wantMaxAge, rec.Header().Get("Access-Control-Max-Age"))
			if tc.wantMethods {
				require.Equal(t, "https://status.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
				require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), tc.method)
				return
			}
			require.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestAPIServer_MetricsPath(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, newSwitchableProbes())
	deps, err := NewAPIDependencies(
		hclog.NewNullLogger(),
		d.Registry(),
		d.Monitor(),
		d.Alerts(),
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("mcpreg_health_checks_total 1\n"))
		}),
		"localhost:8090",
	)
	require.NoError(t, err)

	server, err := NewAPIServer(deps, WithMetricsPath("/internal/metrics"))
	require.NoError(t, err)

	handler, _, err := server.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "mcpreg_health_checks_total")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	logger := hclog.NewNullLogger()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "ErrRegistration maps to 400",
			err:            errors.ErrRegistration,
			expectedStatus: 400,
		},
		{
			name:           "ErrInvalidRule maps to 400",
			err:            errors.ErrInvalidRule,
			expectedStatus: 400,
		},
		{
			name:           "ErrServerNotFound maps to 404",
			err:            errors.ErrServerNotFound,
			expectedStatus: 404,
		},
		{
			name:           "wrapped ErrServerNotFound maps to 404",
			err:            fmt.Errorf("%w: db-a", errors.ErrServerNotFound),
			expectedStatus: 404,
		},
		{
			name:           "ErrHealthNotTracked maps to 404",
			err:            errors.ErrHealthNotTracked,
			expectedStatus: 404,
		},
		{
			name:           "ErrNoPrimary maps to 404",
			err:            errors.ErrNoPrimary,
			expectedStatus: 404,
		},
		{
			name:           "status errors keep their status",
			err:            huma.Error400BadRequest("bad severity"),
			expectedStatus: 400,
		},
		{
			name:           "ErrDiscovery maps to 500",
			err:            errors.ErrDiscovery,
			expectedStatus: 500,
		},
		{
			name:           "ErrHealthCheck maps to 500",
			err:            errors.ErrHealthCheck,
			expectedStatus: 500,
		},
		{
			name:           "ErrFailoverAction maps to 500",
			err:            errors.ErrFailoverAction,
			expectedStatus: 500,
		},
		{
			name:           "ErrAlertDispatch maps to 500",
			err:            errors.ErrAlertDispatch,
			expectedStatus: 500,
		},
		{
			name:           "Unknown error maps to 500",
			err:            fmt.Errorf("unknown error"),
			expectedStatus: 500,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			statusErr := mapError(logger, tc.err)
			require.Equal(t, tc.expectedStatus, statusErr.GetStatus())
		})
	}
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	handler := errorHandler(hclog.NewNullLogger())

	require.Equal(t, http.StatusTeapot, handler(nil, http.StatusTeapot, "teapot").GetStatus())
	require.Equal(t, http.StatusInternalServerError, handler(nil, http.StatusInternalServerError, "boom").GetStatus())
	require.Equal(
		t,
		http.StatusNotFound,
		handler(nil, http.StatusInternalServerError, "unexpected", errors.ErrServerNotFound).GetStatus(),
	)
	require.Equal(
		t,
		http.StatusNotFound,
		handler(nil, http.StatusInternalServerError, "unexpected", fmt.Errorf("a"), errors.ErrNoPrimary).GetStatus(),
	)
}
