package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mozilla-ai/mcpreg/internal/cmd/output"
	cmdopts "github.com/mozilla-ai/mcpreg/internal/cmd/options"
	"github.com/mozilla-ai/mcpreg/internal/config"
)

func executeValidate(t *testing.T, loader config.Loader, args ...string) (string, string, error) {
	t.Helper()

	c, err := NewValidateCmd(quietBaseCmd(), cmdopts.WithConfigLoader(loader))
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	c.SetOut(&stdout)
	c.SetErr(&stderr)
	c.SetArgs(args)

	err = c.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCmd_Text(t *testing.T) {
	t.Parallel()

	path := writeFullConfig(t)
	manifest := filepath.Join(filepath.Dir(path), "extra.toml")

	stdout, stderr, err := executeValidate(t, fileLoader{path: path})
	require.NoError(t, err)
	require.Empty(t, stderr)
	require.Contains(t, stdout, "✓ Configuration is valid (2 servers)")
	require.Contains(t, stdout, "db-a (http, config)")
	require.Contains(t, stdout, "service type:  db (priority 10)")
	require.Contains(t, stdout, "capabilities:  query")
	require.Contains(t, stdout, "rule:          consecutive_failures >= 2 -> switch_primary")
	require.Contains(t, stdout, fmt.Sprintf("db-b (stdio, %s)", manifest))
}

func TestValidateCmd_StructuredFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		decode func([]byte, any) error
	}{
		{format: "json", decode: json.Unmarshal},
		{format: "yaml", decode: yaml.Unmarshal},
	}

	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := executeValidate(t, fileLoader{path: writeFullConfig(t)}, "--format", tc.format)
			require.NoError(t, err)

			var payload output.ResultsPayload[ServerSummary]
			require.NoError(t, tc.decode([]byte(stdout), &payload))
			require.Len(t, payload.Results, 2)

			a := payload.Results[0]
			require.Equal(t, "db-a", a.Name)
			require.Equal(t, "config", a.Source)
			require.Equal(t, "http", a.Transport)
			require.Equal(t, []string{"query"}, a.Capabilities)
			require.Equal(t, []string{"consecutive_failures >= 2 -> switch_primary"}, a.Rules)

			b := payload.Results[1]
			require.Equal(t, "db-b", b.Name)
			require.Equal(t, 5, b.Priority)
			require.NotEmpty(t, b.Rules)
		})
	}
}

func TestValidateCmd_ManifestOverridesConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := writeFile(t, dir, "override.yaml", `
servers:
  - name: db-a
    transport: stdio
    endpoint: db-a-local
`)
	path := writeFile(t, dir, ".mcpreg.toml", fmt.Sprintf(`
[discovery]
files = [%q]

[[servers]]
name = "db-a"
transport = "http"
endpoint = "http://127.0.0.1:9000"
`, manifest))

	stdout, _, err := executeValidate(t, fileLoader{path: path}, "--format", "json")
	require.NoError(t, err)

	var payload output.ResultsPayload[ServerSummary]
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	require.Len(t, payload.Results, 1)
	require.Equal(t, "stdio", payload.Results[0].Transport)
	require.Equal(t, manifest, payload.Results[0].Source)
}

func TestValidateCmd_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.toml", "servers = []\n")
	missingManifest := writeFile(t, dir, "missing.toml", fmt.Sprintf(
		"[discovery]\nfiles = [%q]\n", filepath.Join(dir, "nope.toml"),
	))

	tests := []struct {
		name       string
		loader     config.Loader
		args       []string
		wantErr    string
		wantStdout string
		wantStderr string
	}{
		{
			name:       "no servers as text",
			loader:     fileLoader{path: empty},
			wantErr:    "no servers configured",
			wantStderr: "✗ Configuration validation failed: no servers configured",
		},
		{
			name:       "missing manifest as json",
			loader:     fileLoader{path: missingManifest},
			args:       []string{"--format", "json"},
			wantErr:    "discovery file check failed",
			wantStdout: `"error": "discovery file check failed`,
		},
		{
			name:       "load error as yaml",
			loader:     errLoader{err: fmt.Errorf("boom")},
			args:       []string{"--format", "yaml"},
			wantErr:    "boom",
			wantStdout: "error: boom",
		},
		{
			name:    "invalid format",
			loader:  fileLoader{path: empty},
			args:    []string{"--format", "xml"},
			wantErr: "invalid format 'xml'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stdout, stderr, err := executeValidate(t, tc.loader, tc.args...)
			require.ErrorContains(t, err, tc.wantErr)
			if tc.wantStdout != "" {
				require.Contains(t, stdout, tc.wantStdout)
			}
			if tc.wantStderr != "" {
				require.Contains(t, stderr, tc.wantStderr)
			}
		})
	}
}
