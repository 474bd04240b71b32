package discovery

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// ToolCategory is the category given to capabilities learned from an MCP tools listing.
const ToolCategory = "mcp_tool"

// ToolsClient is the subset of an MCP client used to read a server's tool manifest.
type ToolsClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

// Connector opens a started ToolsClient for an endpoint.
type Connector func(ctx context.Context, endpoint string) (ToolsClient, error)

// StreamableHTTPConnector connects to endpoint over the MCP streamable HTTP transport.
func StreamableHTTPConnector(ctx context.Context, endpoint string) (ToolsClient, error) {
	c, err := client.NewStreamableHttpClient(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error creating MCP client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("error starting MCP client: %w", err)
	}
	return c, nil
}

// MCPSource learns the capabilities of http servers from their MCP tools listing.
//
// Each candidate is returned with its declared capabilities followed by one capability per tool it
// exposes that was not already declared. Candidates that cannot be reached are logged and omitted,
// which leaves whatever an earlier source returned for them in place.
type MCPSource struct {
	logger     hclog.Logger
	candidates []domain.ServerDescriptor
	connect    Connector
	timeout    time.Duration
	version    string
}

// MCPSourceOption configures an MCPSource.
type MCPSourceOption func(*MCPSource) error

// WithConnector replaces the function used to open MCP clients.
func WithConnector(connect Connector) MCPSourceOption {
	return func(s *MCPSource) error {
		if connect == nil {
			return fmt.Errorf("connector cannot be nil")
		}
		s.connect = connect
		return nil
	}
}

// WithTimeout bounds the whole exchange with each candidate.
func WithTimeout(timeout time.Duration) MCPSourceOption {
	return func(s *MCPSource) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithClientVersion sets the version reported in the MCP initialize request.
func WithClientVersion(version string) MCPSourceOption {
	return func(s *MCPSource) error {
		s.version = version
		return nil
	}
}

// DefaultMCPTimeout is the default bound on a single tools listing.
func DefaultMCPTimeout() time.Duration {
	return 10 * time.Second
}

// NewMCPSource creates a source for the http servers among candidates.
func NewMCPSource(logger hclog.Logger, candidates []domain.ServerDescriptor, opt ...MCPSourceOption) (*MCPSource, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &MCPSource{
		logger:  logger.Named("discovery").Named("mcp"),
		connect: StreamableHTTPConnector,
		timeout: DefaultMCPTimeout(),
		version: "dev",
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(s); err != nil {
			return nil, err
		}
	}

	for _, c := range candidates {
		if c.Transport == domain.TransportHTTP && c.Endpoint != "" {
			s.candidates = append(s.candidates, c.Clone())
		}
	}

	return s, nil
}

func (s *MCPSource) Name() string {
	return "mcp"
}

// Discover implements contracts.DiscoverySource.
func (s *MCPSource) Discover(ctx context.Context) (map[string]domain.ServerDescriptor, error) {
	out := make(map[string]domain.ServerDescriptor, len(s.candidates))

	for _, c := range s.candidates {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		tools, err := s.listTools(ctx, c.Endpoint)
		if err != nil {
			s.logger.Warn("Failed to read tool manifest", "server", c.Name, "endpoint", c.Endpoint, "error", err)
			continue
		}

		enriched := c.Clone()
		enriched.Capabilities = MergeCapabilities(c.Capabilities, tools)
		out[c.Name] = enriched

		s.logger.Debug("Read tool manifest", "server", c.Name, "tools", len(tools))
	}

	return out, nil
}

func (s *MCPSource) listTools(ctx context.Context, endpoint string) ([]mcp.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mcpreg", Version: s.version},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing MCP client: %w", err)
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("error listing tools: %w", err)
	}

	return result.Tools, nil
}

// MergeCapabilities returns declared followed by a capability for each tool not already declared by name.
func MergeCapabilities(declared []domain.Capability, tools []mcp.Tool) []domain.Capability {
	out := make([]domain.Capability, 0, len(declared)+len(tools))
	seen := make(map[string]struct{}, len(declared)+len(tools))

	for _, c := range declared {
		out = append(out, c)
		seen[c.Name] = struct{}{}
	}
	for _, t := range tools {
		if _, ok := seen[t.Name]; ok || t.Name == "" {
			continue
		}
		seen[t.Name] = struct{}{}
		out = append(out, ToolCapability(t))
	}

	return out
}

// ToolCapability converts an MCP tool into a capability whose parameters are the tool's input schema.
func ToolCapability(tool mcp.Tool) domain.Capability {
	description := tool.Description
	if description == "" {
		description = tool.Annotations.Title
	}

	c := domain.Capability{
		Name:        tool.Name,
		Description: description,
		Category:    ToolCategory,
	}

	params := make(map[string]any)
	if tool.InputSchema.Type != "" {
		params["type"] = tool.InputSchema.Type
	}
	if len(tool.InputSchema.Properties) > 0 {
		params["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		params["required"] = tool.InputSchema.Required
	}
	if len(params) > 0 {
		c.Parameters = params
	}

	return c
}
