package registry

import (
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// Stats is a read-only snapshot of the registry.
type Stats struct {
	TotalServers       int                          `json:"totalServers" yaml:"total_servers"`
	ServersByStatus    map[domain.HealthStatus]int  `json:"serversByStatus" yaml:"servers_by_status"`
	ServersByTransport map[domain.TransportKind]int `json:"serversByTransport" yaml:"servers_by_transport"`
	ExcludedServers    int                          `json:"excludedServers" yaml:"excluded_servers"`
	TotalCapabilities  int                          `json:"totalCapabilities" yaml:"total_capabilities"`
	Primaries          map[string]string            `json:"primaries" yaml:"primaries"`
}

// GetRegistryStats returns counts by status and transport, and the total number of distinct capabilities.
func (r *Registry) GetRegistryStats() Stats {
	primaries := r.Primaries()

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalServers:       len(r.servers),
		ServersByStatus:    make(map[domain.HealthStatus]int),
		ServersByTransport: make(map[domain.TransportKind]int),
		TotalCapabilities:  len(r.capabilityIndex),
		Primaries:          primaries,
	}

	for name, e := range r.servers {
		stats.ServersByStatus[r.statusLocked(name)]++
		stats.ServersByTransport[e.descriptor.Transport]++
		if e.excluded {
			stats.ExcludedServers++
		}
	}

	return stats
}
