package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcpreg/internal/registry"
)

// PrimaryRequest represents the incoming request for the primary of a service type.
type PrimaryRequest struct {
	ServiceType string `doc:"Service type" example:"fraud_db" path:"serviceType"`
}

// PrimaryResponse is the response for GET /primary/{serviceType}
type PrimaryResponse struct {
	Body struct {
		ServiceType string `doc:"Service type"             json:"serviceType"`
		Server      string `doc:"Name of the primary server" json:"server"`
	}
}

// StatsResponse is the response for GET /stats
type StatsResponse struct {
	Body registry.Stats
}

// RegisterRegistryRoutes sets up the primary lookup and registry statistics routes.
func RegisterRegistryRoutes(routerAPI huma.API, servers RegistryReader) {
	tags := []string{"Registry"}

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "getPrimary",
			Method:      http.MethodGet,
			Path:        "/primary/{serviceType}",
			Summary:     "Get the primary server for a service type",
			Tags:        tags,
		},
		func(ctx context.Context, input *PrimaryRequest) (*PrimaryResponse, error) {
			return handlePrimary(servers, input.ServiceType)
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "getRegistryStats",
			Method:      http.MethodGet,
			Path:        "/stats",
			Summary:     "Get registry statistics",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*StatsResponse, error) {
			return &StatsResponse{Body: servers.GetRegistryStats()}, nil
		},
	)
}

// handlePrimary returns the primary for serviceType, or an error wrapping errors.ErrNoPrimary.
func handlePrimary(servers RegistryReader, serviceType string) (*PrimaryResponse, error) {
	name, err := servers.GetPrimaryServer(serviceType)
	if err != nil {
		return nil, err
	}

	resp := &PrimaryResponse{}
	resp.Body.ServiceType = serviceType
	resp.Body.Server = name
	return resp, nil
}
