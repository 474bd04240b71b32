package registry

import (
	"fmt"
	"reflect"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
)

// Option configures a Registry.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*options) error

type options struct {
	sources   []contracts.DiscoverySource
	health    contracts.HealthReader
	observers []contracts.RegistryObserver
}

func getDefaultOptions() options {
	return options{}
}

func getOpts(opts ...Option) (options, error) {
	opt := getDefaultOptions()
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(&opt); err != nil {
			return options{}, err
		}
	}
	return opt, nil
}

// WithDiscoverySources sets the sources queried by DiscoverServers, in order.
// On a name conflict the later source wins.
func WithDiscoverySources(sources ...contracts.DiscoverySource) Option {
	return func(o *options) error {
		for i, s := range sources {
			if s == nil || reflect.ValueOf(s).IsNil() {
				return fmt.Errorf("discovery source %d cannot be nil", i)
			}
		}
		o.sources = sources
		return nil
	}
}

// WithHealthReader sets the source of health status used by GetHealthyServers and primary election.
func WithHealthReader(reader contracts.HealthReader) Option {
	return func(o *options) error {
		if reader == nil || reflect.ValueOf(reader).IsNil() {
			return fmt.Errorf("health reader cannot be nil")
		}
		o.health = reader
		return nil
	}
}

// WithObservers adds observers notified after servers are registered or unregistered.
func WithObservers(observers ...contracts.RegistryObserver) Option {
	return func(o *options) error {
		for i, obs := range observers {
			if obs == nil || reflect.ValueOf(obs).IsNil() {
				return fmt.Errorf("observer %d cannot be nil", i)
			}
		}
		o.observers = append(o.observers, observers...)
		return nil
	}
}
