package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcpreg/internal/cmd"
	"github.com/mozilla-ai/mcpreg/internal/config"
)

// fileLoader loads a fixed file regardless of the --config-file flag so tests can run in parallel.
type fileLoader struct {
	path string
}

func (l fileLoader) Load(string) (*config.Config, error) {
	return (&config.DefaultLoader{}).Load(l.path)
}

type errLoader struct {
	err error
}

func (l errLoader) Load(string) (*config.Config, error) {
	return nil, l.err
}

func quietBaseCmd() *cmd.BaseCmd {
	c := &cmd.BaseCmd{}
	c.SetLogger(hclog.NewNullLogger())
	return c
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const manifestDBB = `
[[servers]]
name = "db-b"
transport = "stdio"
endpoint = "db-b-server"
service_type = "db"
priority = 5
`

// writeFullConfig writes a configuration exercising every section, plus the manifest it references.
func writeFullConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	manifest := writeFile(t, dir, "extra.toml", manifestDBB)

	return writeFile(t, dir, ".mcpreg.toml", fmt.Sprintf(`
[monitor]
check_interval = "1s"
max_concurrent_checks = 4
history_size = 20

[monitor.thresholds]
response_time = 2.0

[api]
addr = "127.0.0.1:9191"
shutdown_timeout = "2s"
metrics_path = "/internal/metrics"

[api.cors]
enable = true
allow_origins = ["http://localhost:3000"]
max_age = "1m"

[telemetry]
metrics_exporter = "prometheus"

[discovery]
files = [%q]
mcp_manifests = true
timeout = "3s"
interval = "1m"

[alerts]
history_size = 50

[[alerts.webhooks]]
url = "http://127.0.0.1:1/hook"
min_severity = "warning"

[[servers]]
name = "db-a"
transport = "http"
endpoint = "http://127.0.0.1:9000"
service_type = "db"
priority = 10

  [[servers.capabilities]]
  name = "query"
  description = "Run a read-only query"

  [[servers.rules]]
  trigger = "consecutive_failures"
  threshold = 2
  action = "switch_primary"
`, manifest))
}

func loadFullConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := fileLoader{path: writeFullConfig(t)}.Load("")
	require.NoError(t, err)
	return cfg
}
