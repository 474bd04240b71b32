package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/mozilla-ai/mcpreg/internal/config"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// FileSource reads server entries from a TOML or YAML manifest file.
// The file is re-read on every call so that edits are picked up by the next discovery round.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the manifest at path.
func NewFileSource(path string) (*FileSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("manifest path cannot be empty")
	}
	return &FileSource{path: path}, nil
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Discover implements contracts.DiscoverySource.
func (s *FileSource) Discover(ctx context.Context) (map[string]domain.ServerDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest, err := config.LoadManifest(s.path)
	if err != nil {
		return nil, err
	}

	descs, err := manifest.Descriptors()
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.ServerDescriptor, len(descs))
	for _, d := range descs {
		out[d.Name] = d
	}
	return out, nil
}
