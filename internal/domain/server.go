package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mozilla-ai/mcpreg/internal/errors"
)

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

const (
	// MetadataKeyPID is the descriptor metadata key holding the PID of a stdio server process.
	MetadataKeyPID = "pid"

	// MetadataKeyProcessName is the descriptor metadata key holding a substring of a stdio server's
	// process name or command line.
	MetadataKeyProcessName = "process_name"
)

// TransportKind identifies how a tool server is reached.
type TransportKind string

// ParseTransportKind converts a string into a TransportKind, rejecting unknown values.
func ParseTransportKind(s string) (TransportKind, error) {
	t := TransportKind(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transport kind '%s'", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported transport kinds.
func (t TransportKind) Valid() bool {
	switch t {
	case TransportStdio, TransportHTTP:
		return true
	default:
		return false
	}
}

// Capability is a named operation a tool server offers.
type Capability struct {
	Name        string         `json:"name" toml:"name" yaml:"name"`
	Description string         `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Category    string         `json:"category,omitempty" toml:"category,omitempty" yaml:"category,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" toml:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// ServerDescriptor describes a registered tool server.
// Only Metadata may change after registration.
type ServerDescriptor struct {
	// Name is the unique key of the server.
	Name string

	// Transport selects the health probe variant used for the server.
	Transport TransportKind

	// Endpoint is the base URL (http) or command (stdio) of the server.
	Endpoint string

	// HealthURL overrides {Endpoint}/health for http servers.
	HealthURL string

	// ServiceType is the logical service this server can be primary for, e.g. 'fraud_db'.
	ServiceType string

	// Priority orders candidates when electing a primary; higher wins.
	Priority int

	// Capabilities is the ordered set of operations the server declares.
	Capabilities []Capability

	// Metadata holds free-form attributes, including process lookup hints for stdio servers.
	Metadata map[string]string

	// Rules are the failover rules attached to the server. When nil, DefaultFailoverRules applies.
	Rules []FailoverRule
}

// Validate returns an error wrapping errors.ErrRegistration when the descriptor is structurally invalid.
func (d ServerDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", errors.ErrRegistration)
	}
	if !d.Transport.Valid() {
		return fmt.Errorf("%w: server '%s' has invalid transport '%s'", errors.ErrRegistration, d.Name, d.Transport)
	}

	seen := make(map[string]struct{}, len(d.Capabilities))
	for i, c := range d.Capabilities {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("%w: server '%s' capability %d has no name", errors.ErrRegistration, d.Name, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: server '%s' declares capability '%s' more than once", errors.ErrRegistration, d.Name, name)
		}
		seen[name] = struct{}{}
	}

	for i, r := range d.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: server '%s' rule %d: %w", errors.ErrRegistration, d.Name, i, err)
		}
	}

	return nil
}

// CapabilityNames returns the capability names in declaration order.
func (d ServerDescriptor) CapabilityNames() []string {
	names := make([]string, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		names = append(names, c.Name)
	}
	return names
}

// HasCapability reports whether the server declares the named capability.
func (d ServerDescriptor) HasCapability(name string) bool {
	return slices.ContainsFunc(d.Capabilities, func(c Capability) bool {
		return c.Name == name
	})
}

// EffectiveRules returns the rules attached to the server, falling back to DefaultFailoverRules.
func (d ServerDescriptor) EffectiveRules() []FailoverRule {
	if d.Rules == nil {
		return DefaultFailoverRules()
	}
	return slices.Clone(d.Rules)
}

// Clone returns a deep copy of the descriptor so callers cannot alias registry state.
func (d ServerDescriptor) Clone() ServerDescriptor {
	out := d
	out.Metadata = maps.Clone(d.Metadata)
	out.Rules = slices.Clone(d.Rules)
	if d.Capabilities != nil {
		out.Capabilities = make([]Capability, len(d.Capabilities))
		for i, c := range d.Capabilities {
			c.Parameters = maps.Clone(c.Parameters)
			out.Capabilities[i] = c
		}
	}
	return out
}
