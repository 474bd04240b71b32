package health

import (
	"maps"
	"slices"
	"time"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// ServerSummary is the condensed health of a single server.
type ServerSummary struct {
	Name                string              `json:"name" yaml:"name"`
	Status              domain.HealthStatus `json:"status" yaml:"status"`
	HealthScore         float64             `json:"healthScore" yaml:"health_score"`
	ConsecutiveFailures int                 `json:"consecutiveFailures" yaml:"consecutive_failures"`
	UptimeSeconds       float64             `json:"uptimeSeconds" yaml:"uptime_seconds"`
	LastCheck           *time.Time          `json:"lastCheck,omitempty" yaml:"last_check,omitempty"`
}

// Summary aggregates the health of every tracked server.
type Summary struct {
	TotalServers int                         `json:"totalServers" yaml:"total_servers"`
	ByStatus     map[domain.HealthStatus]int `json:"byStatus" yaml:"by_status"`
	Servers      []ServerSummary             `json:"servers" yaml:"servers"`
}

// GetHealthSummary returns counts by status and a per-server summary, sorted by name.
func (m *Monitor) GetHealthSummary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		TotalServers: len(m.servers),
		ByStatus:     make(map[domain.HealthStatus]int),
		Servers:      make([]ServerSummary, 0, len(m.servers)),
	}

	for _, name := range slices.Sorted(maps.Keys(m.servers)) {
		r := m.servers[name].report
		s.ByStatus[r.Status]++

		var lastCheck *time.Time
		if r.LastCheck != nil {
			t := *r.LastCheck
			lastCheck = &t
		}
		s.Servers = append(s.Servers, ServerSummary{
			Name:                name,
			Status:              r.Status,
			HealthScore:         r.HealthScore,
			ConsecutiveFailures: r.ConsecutiveFailures,
			UptimeSeconds:       r.UptimeSeconds,
			LastCheck:           lastCheck,
		})
	}

	return s
}
