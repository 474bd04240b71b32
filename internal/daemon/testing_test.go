package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// switchableProbes hands every server the same probe, which fails for servers marked down.
type switchableProbes struct {
	mu   sync.RWMutex
	down map[string]bool
}

func newSwitchableProbes() *switchableProbes {
	return &switchableProbes{down: make(map[string]bool)}
}

func (p *switchableProbes) setDown(name string, down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down[name] = down
}

func (p *switchableProbes) ProbeFor(domain.ServerDescriptor) contracts.HealthProbe {
	return contracts.ProbeFunc(func(ctx context.Context, server domain.ServerDescriptor) (contracts.ProbeResult, error) {
		p.mu.RLock()
		down := p.down[server.Name]
		p.mu.RUnlock()

		if down {
			return contracts.ProbeResult{}, fmt.Errorf("connection refused")
		}
		return contracts.ProbeResult{Healthy: true, Message: "ok"}, nil
	})
}

func testServers() []domain.ServerDescriptor {
	return []domain.ServerDescriptor{
		{
			Name:         "db-a",
			Transport:    domain.TransportHTTP,
			Endpoint:     "http://db-a:8080",
			ServiceType:  "db",
			Priority:     10,
			Capabilities: []domain.Capability{{Name: "query"}},
			Rules: []domain.FailoverRule{
				{
					Trigger:   domain.TriggerConsecutiveFailures,
					Threshold: 2,
					Action:    domain.ActionSwitchPrimary,
					Cooldown:  domain.DefaultRuleCooldown,
				},
			},
		},
		{
			Name:         "db-b",
			Transport:    domain.TransportHTTP,
			Endpoint:     "http://db-b:8080",
			ServiceType:  "db",
			Priority:     5,
			Capabilities: []domain.Capability{{Name: "query"}, {Name: "write"}},
		},
	}
}
