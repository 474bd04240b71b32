// Package registry is the single source of truth for which tool servers exist, what they can do,
// and which server is primary for each logical service type.
package registry

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

var (
	_ contracts.TargetLister      = (*Registry)(nil)
	_ contracts.PrimaryController = (*Registry)(nil)
)

// ProbeSelector chooses the health probe for a server at registration.
type ProbeSelector interface {
	ProbeFor(server domain.ServerDescriptor) contracts.HealthProbe
}

// entry is a registered server together with the probe chosen for it.
type entry struct {
	descriptor domain.ServerDescriptor
	probe      contracts.HealthProbe
	excluded   bool
}

// Registry owns the server map, the capability index and the primary server map.
// It is safe for concurrent use by multiple goroutines.
type Registry struct {
	logger  hclog.Logger
	probes  ProbeSelector
	sources []contracts.DiscoverySource

	mu              sync.RWMutex
	health          contracts.HealthReader
	observers       []contracts.RegistryObserver
	servers         map[string]*entry
	capabilityIndex map[string]map[string]struct{}
	primaries       map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger hclog.Logger, probes ProbeSelector, opt ...Option) (*Registry, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if probes == nil || reflect.ValueOf(probes).IsNil() {
		return nil, fmt.Errorf("probe selector cannot be nil")
	}

	opts, err := getOpts(opt...)
	if err != nil {
		return nil, err
	}

	return &Registry{
		logger:          logger.Named("registry"),
		probes:          probes,
		sources:         opts.sources,
		health:          opts.health,
		observers:       opts.observers,
		servers:         make(map[string]*entry),
		capabilityIndex: make(map[string]map[string]struct{}),
		primaries:       make(map[string]string),
	}, nil
}

// SetHealthReader sets the source of health status, replacing any previous one.
func (r *Registry) SetHealthReader(reader contracts.HealthReader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = reader
}

// AddObserver adds an observer notified after registration changes.
func (r *Registry) AddObserver(observer contracts.RegistryObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
}

// Register inserts or overwrites the server by name and merges its capabilities into the capability index.
// It returns false only when the descriptor is structurally invalid.
// The new server becomes primary for its service type when there is no primary yet,
// or when its priority is strictly higher than the current primary's.
func (r *Registry) Register(server domain.ServerDescriptor) bool {
	server = server.Clone()
	server.Name = strings.TrimSpace(server.Name)

	if err := validateDescriptor(server); err != nil {
		r.logger.Warn("Rejected server registration", "server", server.Name, "error", err)
		return false
	}

	probe := r.probes.ProbeFor(server)
	if probe == nil {
		r.logger.Warn("Rejected server registration", "server", server.Name, "error",
			fmt.Errorf("%w: no probe for transport '%s'", errors.ErrRegistration, server.Transport))
		return false
	}

	r.mu.Lock()
	prev, replaced := r.servers[server.Name]
	if replaced {
		r.unindex(prev.descriptor)
		if st := prev.descriptor.ServiceType; st != server.ServiceType && r.primaries[st] == server.Name {
			delete(r.primaries, st)
		}
	}
	r.servers[server.Name] = &entry{descriptor: server, probe: probe}
	r.index(server)
	promoted := r.promoteOnRegister(server)
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	r.logger.Info(
		"Registered server",
		"server", server.Name,
		"transport", server.Transport,
		"capabilities", len(server.Capabilities),
		"replaced", replaced,
	)
	if promoted {
		r.logger.Info("Primary server set", "service_type", server.ServiceType, "server", server.Name)
	}

	for _, o := range observers {
		o.ServerRegistered(server.Name)
	}

	return true
}

// Unregister removes the server and every capability index row pointing at it.
// Any primary mapping naming the server is left in place until the next failover evaluation repairs it;
// GetPrimaryServer never returns an unregistered server.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	e, ok := r.servers[name]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.unindex(e.descriptor)
	delete(r.servers, name)
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	r.logger.Info("Unregistered server", "server", name)

	for _, o := range observers {
		o.ServerUnregistered(name)
	}

	return true
}

// Server returns a copy of the named server's descriptor.
func (r *Registry) Server(name string) (domain.ServerDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.servers[name]
	if !ok {
		return domain.ServerDescriptor{}, false
	}
	return e.descriptor.Clone(), true
}

// GetServer returns a copy of the named server's descriptor, or an error wrapping errors.ErrServerNotFound.
func (r *Registry) GetServer(name string) (domain.ServerDescriptor, error) {
	d, ok := r.Server(name)
	if !ok {
		return domain.ServerDescriptor{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}
	return d, nil
}

// ListServers returns copies of all registered descriptors, sorted by name.
func (r *Registry) ListServers() []domain.ServerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ServerDescriptor, 0, len(r.servers))
	for _, name := range slices.Sorted(maps.Keys(r.servers)) {
		out = append(out, r.servers[name].descriptor.Clone())
	}
	return out
}

// GetServersByCapability returns the servers declaring the capability, sorted by name.
func (r *Registry) GetServersByCapability(capability string) []domain.ServerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.capabilityIndex[capability]
	out := make([]domain.ServerDescriptor, 0, len(names))
	for _, name := range slices.Sorted(maps.Keys(names)) {
		out = append(out, r.servers[name].descriptor.Clone())
	}
	return out
}

// Capabilities returns the names of all indexed capabilities, sorted.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.capabilityIndex))
}

// GetHealthyServers returns the in-pool servers whose current status is HEALTHY, sorted by name.
func (r *Registry) GetHealthyServers() []domain.ServerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ServerDescriptor, 0, len(r.servers))
	for _, name := range slices.Sorted(maps.Keys(r.servers)) {
		e := r.servers[name]
		if e.excluded || r.statusLocked(name) != domain.HealthStatusHealthy {
			continue
		}
		out = append(out, e.descriptor.Clone())
	}
	return out
}

// Targets implements contracts.TargetLister.
func (r *Registry) Targets() []contracts.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contracts.Target, 0, len(r.servers))
	for _, name := range slices.Sorted(maps.Keys(r.servers)) {
		e := r.servers[name]
		out = append(out, contracts.Target{Descriptor: e.descriptor.Clone(), Probe: e.probe})
	}
	return out
}

// UpdateMetadata merges values into the server's metadata, the only mutable part of a descriptor.
func (r *Registry) UpdateMetadata(name string, values map[string]string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.servers[name]
	if !ok {
		return false
	}
	if e.descriptor.Metadata == nil {
		e.descriptor.Metadata = make(map[string]string, len(values))
	}
	maps.Copy(e.descriptor.Metadata, values)
	return true
}

// RemoveFromPool excludes the server from GetHealthyServers and primary election without unregistering it.
func (r *Registry) RemoveFromPool(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.servers[name]
	if !ok {
		return false
	}
	e.excluded = true
	return true
}

// RestoreToPool lifts an exclusion set by RemoveFromPool.
func (r *Registry) RestoreToPool(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.servers[name]
	if !ok {
		return false
	}
	e.excluded = false
	return true
}

// InPool reports whether the server is registered and not excluded.
func (r *Registry) InPool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.servers[name]
	return ok && !e.excluded
}

// index adds the server's capabilities to the capability index. Caller must hold the write lock.
func (r *Registry) index(server domain.ServerDescriptor) {
	for _, c := range server.Capabilities {
		names, ok := r.capabilityIndex[c.Name]
		if !ok {
			names = make(map[string]struct{})
			r.capabilityIndex[c.Name] = names
		}
		names[server.Name] = struct{}{}
	}
}

// unindex removes the server's capabilities from the capability index. Caller must hold the write lock.
func (r *Registry) unindex(server domain.ServerDescriptor) {
	for _, c := range server.Capabilities {
		names, ok := r.capabilityIndex[c.Name]
		if !ok {
			continue
		}
		delete(names, server.Name)
		if len(names) == 0 {
			delete(r.capabilityIndex, c.Name)
		}
	}
}

// statusLocked returns the health status of the named server. Caller must hold a lock.
func (r *Registry) statusLocked(name string) domain.HealthStatus {
	if r.health == nil {
		return domain.HealthStatusUnknown
	}
	return r.health.Status(name)
}

// validateDescriptor checks the descriptor's structure and the JSON schema of every capability's parameters.
func validateDescriptor(server domain.ServerDescriptor) error {
	if err := server.Validate(); err != nil {
		return err
	}
	for _, c := range server.Capabilities {
		if len(c.Parameters) == 0 {
			continue
		}
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(c.Parameters)); err != nil {
			return fmt.Errorf(
				"%w: server '%s' capability '%s' has an invalid parameter schema: %w",
				errors.ErrRegistration,
				server.Name,
				c.Name,
				err,
			)
		}
	}
	return nil
}
