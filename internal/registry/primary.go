package registry

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

// GetPrimaryServer returns the primary server recorded for the service type.
// A mapping that names a server which is no longer registered is reported as errors.ErrNoPrimary.
func (r *Registry) GetPrimaryServer(serviceType string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.primaries[serviceType]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrNoPrimary, serviceType)
	}
	if _, registered := r.servers[name]; !registered {
		return "", fmt.Errorf("%w: %s (primary '%s' is no longer registered)", errors.ErrNoPrimary, serviceType, name)
	}
	return name, nil
}

// Primaries returns a copy of the service type to primary server map, omitting dangling entries.
func (r *Registry) Primaries() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.primaries))
	for st, name := range r.primaries {
		if _, ok := r.servers[name]; ok {
			out[st] = name
		}
	}
	return out
}

// ServiceTypesWithPrimary returns the service types whose recorded primary is the named server, sorted.
func (r *Registry) ServiceTypesWithPrimary(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for st, primary := range r.primaries {
		if primary == name {
			out = append(out, st)
		}
	}
	slices.Sort(out)
	return out
}

// ElectPrimary records the highest priority, HEALTHY, in-pool server of the service type as its primary.
// Servers named in exclude are never chosen. Ties are broken by name.
// When no candidate exists the current mapping is left unchanged and false is returned.
func (r *Registry) ElectPrimary(serviceType string, exclude ...string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.bestCandidateLocked(serviceType, exclude)
	if !ok {
		return "", false
	}
	r.primaries[serviceType] = name
	return name, true
}

// RepairPrimary re-elects the primary of the service type when the recorded primary is no longer registered.
// It returns the resulting primary, if any. A dangling mapping with no replacement is removed.
func (r *Registry) RepairPrimary(serviceType string) (string, bool) {
	if serviceType == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.primaries[serviceType]
	if ok {
		if _, registered := r.servers[current]; registered {
			return current, true
		}
	}

	name, found := r.bestCandidateLocked(serviceType, nil)
	if !found {
		if ok {
			delete(r.primaries, serviceType)
			r.logger.Warn("Cleared dangling primary", "service_type", serviceType, "server", current)
		}
		return "", false
	}

	r.primaries[serviceType] = name
	r.logger.Info("Repaired primary", "service_type", serviceType, "old", current, "new", name)
	return name, true
}

// promoteOnRegister makes the newly registered server primary when appropriate.
// Caller must hold the write lock.
func (r *Registry) promoteOnRegister(server domain.ServerDescriptor) bool {
	if server.ServiceType == "" {
		return false
	}

	current, ok := r.primaries[server.ServiceType]
	if ok && current != server.Name {
		if e, registered := r.servers[current]; registered && e.descriptor.Priority >= server.Priority {
			return false
		}
	}
	if current == server.Name {
		return false
	}

	r.primaries[server.ServiceType] = server.Name
	return true
}

// bestCandidateLocked returns the best primary candidate for the service type. Caller must hold a lock.
func (r *Registry) bestCandidateLocked(serviceType string, exclude []string) (string, bool) {
	var (
		best     string
		bestPrio int
		found    bool
	)
	for _, name := range slices.Sorted(maps.Keys(r.servers)) {
		e := r.servers[name]
		if e.descriptor.ServiceType != serviceType || e.excluded || slices.Contains(exclude, name) {
			continue
		}
		if r.statusLocked(name) != domain.HealthStatusHealthy {
			continue
		}
		if !found || e.descriptor.Priority > bestPrio {
			best, bestPrio, found = name, e.descriptor.Priority, true
		}
	}
	return best, found
}
