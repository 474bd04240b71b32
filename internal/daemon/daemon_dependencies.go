package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/registry"
)

// Dependencies contains required dependencies for the Daemon.
// NewDependencies should be used to create instances of Dependencies.
type Dependencies struct {
	// APIAddr specifies the network address for the APIServer to bind (e.g., "0.0.0.0:8090").
	APIAddr string

	// Logger for daemon and subcomponent operations.
	Logger hclog.Logger

	// Probes chooses the health probe for each registered server.
	Probes registry.ProbeSelector

	// Sources are queried in order at startup, later sources win on name conflicts.
	Sources []contracts.DiscoverySource
}

// NewDependencies creates and validates Dependencies.
func NewDependencies(
	logger hclog.Logger,
	apiAddr string,
	probes registry.ProbeSelector,
	sources ...contracts.DiscoverySource,
) (Dependencies, error) {
	deps := Dependencies{
		APIAddr: apiAddr,
		Logger:  logger,
		Probes:  probes,
		Sources: sources,
	}

	if err := deps.Validate(); err != nil {
		return Dependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}

	if err := validateAddr(d.APIAddr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.APIAddr, err)
	}

	if d.Probes == nil || reflect.ValueOf(d.Probes).IsNil() {
		return fmt.Errorf("probe selector cannot be nil")
	}

	if len(d.Sources) == 0 {
		return fmt.Errorf("at least one discovery source is required")
	}

	for i, s := range d.Sources {
		if s == nil || reflect.ValueOf(s).IsNil() {
			return fmt.Errorf("discovery source %d cannot be nil", i)
		}
	}

	return nil
}
