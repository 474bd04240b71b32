package daemon

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// APIOptions holds the optional settings of the read-only query API.
// Use NewAPIOptions to get a value with defaults applied.
type APIOptions struct {
	// CORS controls which browser origins may query the registry.
	CORS CORSConfig

	// MetricsPath is where the Prometheus scrape endpoint is mounted when metrics are exported.
	MetricsPath string

	// ReadHeaderTimeout bounds how long a client may take to send request headers.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds the graceful shutdown of in-flight queries.
	ShutdownTimeout time.Duration
}

// CORSConfig defines Cross-Origin Resource Sharing settings for dashboards reading the API from a browser.
type CORSConfig struct {
	// Enabled adds CORS headers to responses.
	Enabled bool

	// AllowCredentials lets browsers send cookies or authorization headers.
	// It is ignored when AllowOrigins contains "*".
	AllowCredentials bool

	// AllowedHeaders lists the request headers a browser may send.
	AllowedHeaders []string

	// AllowMethods lists the permitted HTTP methods, always a subset of the read-only methods.
	AllowMethods []string

	// AllowOrigins lists the origins allowed to query the API, "*" allows any.
	AllowOrigins []string

	// ExposedHeaders lists the response headers readable by the browser.
	ExposedHeaders []string

	// MaxAge is how long a browser may cache a preflight response.
	MaxAge time.Duration
}

// APIOption configures APIOptions.
// Options are applied in order, with later options overriding earlier ones.
type APIOption func(*APIOptions) error

// NewAPIOptions returns the default API options with opts applied on top.
func NewAPIOptions(opts ...APIOption) (APIOptions, error) {
	options := APIOptions{
		CORS: CORSConfig{
			AllowMethods:     DefaultCORSAllowMethods(),
			AllowedHeaders:   DefaultCORSAllowHeaders(),
			AllowCredentials: DefaultCORSAllowCredentials(),
			MaxAge:           DefaultCORSMaxAge(),
		},
		MetricsPath:       DefaultMetricsPath(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout(),
		ShutdownTimeout:   DefaultAPIShutdownTimeout(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return APIOptions{}, err
		}
	}

	return options, nil
}

// WithCORSEnabled enables or disables CORS support.
func WithCORSEnabled(enabled bool) APIOption {
	return func(o *APIOptions) error {
		o.CORS.Enabled = enabled
		return nil
	}
}

// WithCORSAllowHeaders sets the request headers browsers may send beyond the CORS-safelisted ones.
func WithCORSAllowHeaders(headers []string) APIOption {
	return func(o *APIOptions) error {
		o.CORS.AllowedHeaders = headers
		return nil
	}
}

// WithCORSAllowOrigins sets the origins allowed to query the API.
// Origins are trimmed; blank and repeated entries are dropped.
func WithCORSAllowOrigins(origins []string) APIOption {
	return func(o *APIOptions) error {
		var out []string
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "" || slices.Contains(out, origin) {
				continue
			}
			out = append(out, origin)
		}
		o.CORS.AllowOrigins = out
		return nil
	}
}

// WithCORSAllowMethods sets the HTTP methods permitted for cross-origin requests.
// The API never mutates the registry, so only GET, HEAD and OPTIONS are accepted.
func WithCORSAllowMethods(methods []string) APIOption {
	return func(o *APIOptions) error {
		allowed := DefaultCORSAllowMethods()
		out := make([]string, 0, len(methods))
		for _, m := range methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			if !slices.Contains(allowed, m) {
				return fmt.Errorf("CORS method %s is not served by the read-only API", m)
			}
			out = append(out, m)
		}
		o.CORS.AllowMethods = out
		return nil
	}
}

// WithCORSAllowCredentials sets whether credentials are allowed in CORS requests.
func WithCORSAllowCredentials(allowed bool) APIOption {
	return func(o *APIOptions) error {
		o.CORS.AllowCredentials = allowed
		return nil
	}
}

// WithCORSExposeHeaders sets the response headers browsers may read beyond the CORS-safelisted ones.
func WithCORSExposeHeaders(headers []string) APIOption {
	return func(o *APIOptions) error {
		o.CORS.ExposedHeaders = headers
		return nil
	}
}

// WithCORSMaxAge sets how long browsers can cache preflight responses.
// The header carries whole seconds, so sub-second remainders are truncated.
func WithCORSMaxAge(maxAge time.Duration) APIOption {
	return func(o *APIOptions) error {
		if maxAge < 0 {
			return fmt.Errorf("CORS max age cannot be negative, got %v", maxAge)
		}
		if maxAge > MaxCORSMaxAge() {
			return fmt.Errorf("CORS max age cannot exceed %v, got %v", MaxCORSMaxAge(), maxAge)
		}
		o.CORS.MaxAge = maxAge.Truncate(time.Second)
		return nil
	}
}

// WithMetricsPath sets where the Prometheus scrape endpoint is mounted.
// It must be an absolute path outside the versioned API.
func WithMetricsPath(path string) APIOption {
	return func(o *APIOptions) error {
		path = strings.TrimRight(strings.TrimSpace(path), "/")
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("metrics path must start with '/', got '%s'", path)
		}
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			return fmt.Errorf("metrics path cannot be under /api, got '%s'", path)
		}
		o.MetricsPath = path
		return nil
	}
}

// WithReadHeaderTimeout configures how long a client may take to send request headers.
func WithReadHeaderTimeout(timeout time.Duration) APIOption {
	return func(o *APIOptions) error {
		if timeout <= 0 {
			return fmt.Errorf("read header timeout must be positive, got %v", timeout)
		}
		o.ReadHeaderTimeout = timeout
		return nil
	}
}

// WithShutdownTimeout configures how long to wait for graceful shutdown.
func WithShutdownTimeout(timeout time.Duration) APIOption {
	return func(o *APIOptions) error {
		if timeout <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %v", timeout)
		}
		o.ShutdownTimeout = timeout
		return nil
	}
}

// DefaultCORSAllowHeaders returns the request headers allowed by default.
func DefaultCORSAllowHeaders() []string {
	return []string{
		"Accept",
		"Accept-Language",
		"Content-Language",
		"Content-Type",
		"Range",
	}
}

// DefaultCORSAllowMethods returns the HTTP methods served by the read-only API.
func DefaultCORSAllowMethods() []string {
	return []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodOptions,
	}
}

// DefaultCORSAllowCredentials returns the default CORS 'allow credentials' setting.
func DefaultCORSAllowCredentials() bool {
	return false
}

// DefaultCORSMaxAge returns how long browsers cache preflight responses by default.
func DefaultCORSMaxAge() time.Duration {
	return 5 * time.Minute
}

// MaxCORSMaxAge is the longest preflight cache duration any browser honours.
func MaxCORSMaxAge() time.Duration {
	return 24 * time.Hour
}

// DefaultMetricsPath returns the default mount point of the Prometheus scrape endpoint.
func DefaultMetricsPath() string {
	return "/metrics"
}

// DefaultReadHeaderTimeout returns the default bound on reading request headers.
func DefaultReadHeaderTimeout() time.Duration {
	return 10 * time.Second
}

// DefaultAPIShutdownTimeout is the default time allowed for API server graceful shutdown.
func DefaultAPIShutdownTimeout() time.Duration {
	return 5 * time.Second
}

// validateAddr checks that addr is a "host:port" the API server can listen on.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if port == "" {
		return fmt.Errorf("address missing port")
	}

	if _, err := strconv.Atoi(port); err != nil {
		if _, err := net.LookupPort("tcp", port); err != nil {
			return fmt.Errorf("invalid address port: %s", port)
		}
	}

	if strings.TrimSpace(host) != host {
		return fmt.Errorf("invalid address host: '%s'", host)
	}

	return nil
}
