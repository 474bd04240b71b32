package config

import "fmt"

// ValidationPredicate evaluates a loaded Config and returns an error if invalid.
type ValidationPredicate func(*Config) error

// validatingLoader wraps a Loader to run additional validation predicates at load time.
type validatingLoader struct {
	Loader
	predicates []ValidationPredicate
}

// NewValidatingLoader creates a loader that runs validation predicates after Load().
func NewValidatingLoader(inner Loader, predicates ...ValidationPredicate) *validatingLoader {
	return &validatingLoader{
		Loader:     inner,
		predicates: predicates,
	}
}

// Load delegates to inner loader, then runs validation predicates.
func (l *validatingLoader) Load(path string) (*Config, error) {
	cfg, err := l.Loader.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: loader returned no configuration", ErrConfigLoadFailed)
	}

	for _, predicate := range l.predicates {
		if err := predicate(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// RequireServers fails when the configuration declares no servers and enables no discovery.
func RequireServers(cfg *Config) error {
	d := cfg.DiscoverySection()
	if len(cfg.Servers) == 0 && len(d.Files) == 0 {
		return fmt.Errorf("no servers configured: add a [[servers]] entry or a discovery file")
	}
	return nil
}

// RequireValidManifests fails when a configured discovery file is missing or invalid.
func RequireValidManifests(cfg *Config) error {
	for _, f := range cfg.DiscoverySection().Files {
		if _, err := LoadManifest(f); err != nil {
			return fmt.Errorf("discovery file check failed: %w", err)
		}
	}
	return nil
}
