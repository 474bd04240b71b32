package api

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// DomainServer is a wrapper that allows receivers to be declared in the API package that deal with domain types.
type DomainServer domain.ServerDescriptor

// DomainRule wraps domain.FailoverRule for API conversion.
type DomainRule domain.FailoverRule

// Capability is an operation offered by a server.
type Capability struct {
	Name        string         `doc:"Capability name"                 json:"name"`
	Description string         `doc:"Human readable description"      json:"description,omitempty"`
	Category    string         `doc:"Capability category"             json:"category,omitempty"`
	Parameters  map[string]any `doc:"JSON schema for the parameters" json:"parameters,omitempty"`
}

// Rule is a failover rule attached to a server.
type Rule struct {
	Trigger   string  `doc:"Condition inspected"          example:"consecutive_failures" json:"trigger"`
	Threshold float64 `doc:"Threshold for the condition" example:"3"                    json:"threshold"`
	Action    string  `doc:"Action executed on trigger"  example:"switch_primary"       json:"action"`
	Cooldown  string  `doc:"Minimum time between runs"   example:"5m0s"                 json:"cooldown"`
}

// Server is the API representation of a registered server.
type Server struct {
	Name         string            `doc:"Unique server name"                          json:"name"`
	Transport    string            `doc:"Transport kind (stdio or http)"             json:"transport"`
	Endpoint     string            `doc:"Base URL or command"                         json:"endpoint,omitempty"`
	HealthURL    string            `doc:"Health check URL override"                   json:"healthUrl,omitempty"`
	ServiceType  string            `doc:"Service type the server can be primary for" json:"serviceType,omitempty"`
	Priority     int               `doc:"Election priority, higher wins"              json:"priority"`
	Status       string            `doc:"Current health status"                       json:"status"`
	InPool       bool              `doc:"Whether the server is selectable"            json:"inPool"`
	Capabilities []Capability      `doc:"Declared capabilities"                       json:"capabilities"`
	Metadata     map[string]string `doc:"Free-form attributes"                        json:"metadata,omitempty"`
	Rules        []Rule            `doc:"Failover rules in evaluation order"          json:"rules"`
}

// ServerRequest represents the incoming request for a single server.
type ServerRequest struct {
	Name string `doc:"Name of the server" example:"fraud-db-b" path:"name"`
}

// ServerResponse represents the wrapped API response for a Server.
type ServerResponse struct {
	Body Server
}

// ServersResponse represents the wrapped API response for a list of servers.
type ServersResponse struct {
	Body struct {
		Servers []Server `doc:"Registered servers sorted by name" json:"servers"`
	}
}

// CapabilitiesResponse is the response for GET /capabilities
type CapabilitiesResponse struct {
	Body struct {
		Capabilities []string `doc:"Indexed capability names" json:"capabilities"`
	}
}

// CapabilityServersRequest represents the incoming request for the servers offering a capability.
type CapabilityServersRequest struct {
	Name string `doc:"Name of the capability" example:"query" path:"name"`
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
// Status and InPool are not part of the descriptor and are left for the caller to fill.
func (d DomainServer) ToAPIType() (Server, error) {
	caps := make([]Capability, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		caps = append(caps, Capability{
			Name:        c.Name,
			Description: c.Description,
			Category:    c.Category,
			Parameters:  maps.Clone(c.Parameters),
		})
	}

	effective := domain.ServerDescriptor(d).EffectiveRules()
	rules := make([]Rule, 0, len(effective))
	for _, r := range effective {
		rule, err := DomainRule(r).ToAPIType()
		if err != nil {
			return Server{}, err
		}
		rules = append(rules, rule)
	}

	return Server{
		Name:         d.Name,
		Transport:    string(d.Transport),
		Endpoint:     d.Endpoint,
		HealthURL:    d.HealthURL,
		ServiceType:  d.ServiceType,
		Priority:     d.Priority,
		Capabilities: caps,
		Metadata:     maps.Clone(d.Metadata),
		Rules:        rules,
	}, nil
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (r DomainRule) ToAPIType() (Rule, error) {
	return Rule{
		Trigger:   string(r.Trigger),
		Threshold: r.Threshold,
		Action:    string(r.Action),
		Cooldown:  r.Cooldown.String(),
	}, nil
}

// RegisterServerRoutes sets up server-related API endpoint routes.
func RegisterServerRoutes(routerAPI huma.API, servers RegistryReader, monitor HealthReader, apiPathPrefix string) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Servers"}

	// Add route at the root of the group (no path specified).
	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List all registered servers",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ServersResponse, error) {
			return handleServers(servers, monitor, servers.ListServers())
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listHealthyServers",
			Method:      http.MethodGet,
			Path:        "/healthy",
			Summary:     "List healthy, selectable servers",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ServersResponse, error) {
			return handleServers(servers, monitor, servers.GetHealthyServers())
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{name}",
			Summary:     "Get a registered server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*ServerResponse, error) {
			return handleServer(servers, monitor, input.Name)
		},
	)
}

// RegisterCapabilityRoutes sets up capability lookup routes.
func RegisterCapabilityRoutes(routerAPI huma.API, servers RegistryReader, monitor HealthReader, apiPathPrefix string) {
	capabilitiesAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Capabilities"}

	huma.Register(
		capabilitiesAPI,
		huma.Operation{
			OperationID: "listCapabilities",
			Method:      http.MethodGet,
			Summary:     "List all indexed capabilities",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*CapabilitiesResponse, error) {
			resp := &CapabilitiesResponse{}
			resp.Body.Capabilities = servers.Capabilities()
			return resp, nil
		},
	)

	huma.Register(
		capabilitiesAPI,
		huma.Operation{
			OperationID: "listCapabilityServers",
			Method:      http.MethodGet,
			Path:        "/{name}/servers",
			Summary:     "List the servers offering a capability",
			Tags:        tags,
		},
		func(ctx context.Context, input *CapabilityServersRequest) (*ServersResponse, error) {
			return handleServers(servers, monitor, servers.GetServersByCapability(input.Name))
		},
	)
}

// handleServers converts descriptors and decorates them with their status and pool membership.
func handleServers(servers RegistryReader, monitor HealthReader, descs []domain.ServerDescriptor) (*ServersResponse, error) {
	slices.SortFunc(descs, func(a, b domain.ServerDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})

	out := make([]Server, 0, len(descs))
	for _, d := range descs {
		s, err := decorate(servers, monitor, d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	resp := &ServersResponse{}
	resp.Body.Servers = out
	return resp, nil
}

// handleServer returns a single server, or an error wrapping errors.ErrServerNotFound.
func handleServer(servers RegistryReader, monitor HealthReader, name string) (*ServerResponse, error) {
	d, err := servers.GetServer(name)
	if err != nil {
		return nil, err
	}

	s, err := decorate(servers, monitor, d)
	if err != nil {
		return nil, err
	}

	return &ServerResponse{Body: s}, nil
}

func decorate(servers RegistryReader, monitor HealthReader, d domain.ServerDescriptor) (Server, error) {
	s, err := DomainServer(d).ToAPIType()
	if err != nil {
		return Server{}, err
	}
	s.Status = string(monitor.Status(d.Name))
	s.InPool = servers.InPool(d.Name)
	return s, nil
}
