// Package discovery provides the sources the registry consults to find tool servers.
//
// A source returns descriptors keyed by server name. The registry queries sources in order and a later
// source wins on name conflicts, so sources that enrich descriptors (MCPSource) are placed after the
// sources that declare them (StaticSource, FileSource).
package discovery

import (
	"context"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

var (
	_ contracts.DiscoverySource = (*StaticSource)(nil)
	_ contracts.DiscoverySource = (*FileSource)(nil)
	_ contracts.DiscoverySource = (*MCPSource)(nil)
)

// StaticSource returns a fixed set of descriptors, typically the [[servers]] entries of the configuration file.
type StaticSource struct {
	name    string
	servers []domain.ServerDescriptor
}

// NewStaticSource creates a source that always returns copies of the given servers.
func NewStaticSource(name string, servers ...domain.ServerDescriptor) *StaticSource {
	if name == "" {
		name = "static"
	}

	cloned := make([]domain.ServerDescriptor, 0, len(servers))
	for _, s := range servers {
		cloned = append(cloned, s.Clone())
	}

	return &StaticSource{name: name, servers: cloned}
}

func (s *StaticSource) Name() string {
	return s.name
}

// Discover implements contracts.DiscoverySource.
func (s *StaticSource) Discover(ctx context.Context) (map[string]domain.ServerDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]domain.ServerDescriptor, len(s.servers))
	for _, srv := range s.servers {
		out[srv.Name] = srv.Clone()
	}
	return out, nil
}
