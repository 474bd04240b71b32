package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

// DiscoverServers queries every configured discovery source in order and registers any discovered server
// whose name is not already registered. On a name conflict the later source wins.
// A failing source contributes nothing and does not stop the others.
// It returns the names of the newly registered servers, sorted.
func (r *Registry) DiscoverServers(ctx context.Context) []string {
	merged := make(map[string]domain.ServerDescriptor)

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("Discovery interrupted", "error", err)
			break
		}

		found, err := src.Discover(ctx)
		if err != nil {
			r.logger.Warn(
				"Discovery source failed",
				"source", src.Name(),
				"error", fmt.Errorf("%w: %w", errors.ErrDiscovery, err),
			)
			continue
		}

		for key, d := range found {
			if d.Name == "" {
				d.Name = key
			}
			merged[d.Name] = d
		}
		r.logger.Debug("Discovery source queried", "source", src.Name(), "servers", len(found))
	}

	var added []string
	for _, name := range slices.Sorted(maps.Keys(merged)) {
		if _, exists := r.Server(name); exists {
			continue
		}
		if r.Register(merged[name]) {
			added = append(added, name)
		}
	}

	r.logger.Info("Discovery complete", "sources", len(r.sources), "discovered", len(merged), "registered", len(added))

	return added
}
