package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	cmdopts "github.com/mozilla-ai/mcpreg/internal/cmd/options"
	"github.com/mozilla-ai/mcpreg/internal/config"
	"github.com/mozilla-ai/mcpreg/internal/flags"
)

type recordingInitializer struct {
	path string
	err  error
}

func (r *recordingInitializer) Init(path string) error {
	r.path = path
	return r.err
}

func TestInitCmd_Run(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	custom := filepath.Join(t.TempDir(), "custom.yaml")

	tests := []struct {
		name       string
		configFile string
		initErr    error
		wantPath   string
		wantErr    string
	}{
		{
			name:       "default file in working directory",
			configFile: flags.DefaultConfigFile,
			wantPath:   filepath.Join(cwd, flags.DefaultConfigFile),
		},
		{
			name:       "custom path",
			configFile: custom,
			wantPath:   custom,
		},
		{
			name:       "initializer failure",
			configFile: custom,
			initErr:    fmt.Errorf("already exists"),
			wantPath:   custom,
			wantErr:    "error initializing mcpreg configuration: already exists",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flags.ConfigFile = tc.configFile
			t.Cleanup(func() {
				flags.ConfigFile = ""
			})

			initializer := &recordingInitializer{err: tc.initErr}
			c, err := NewInitCmd(quietBaseCmd(), cmdopts.WithConfigInitializer(initializer))
			require.NoError(t, err)

			var stdout bytes.Buffer
			c.SetOut(&stdout)
			c.SetArgs(nil)

			err = c.Execute()
			require.Equal(t, tc.wantPath, initializer.path)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Contains(t, stdout.String(), "✓ Config file created: "+tc.wantPath)
		})
	}
}

func TestInitCmd_CreatesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mcpreg.toml")
	flags.ConfigFile = path
	t.Cleanup(func() {
		flags.ConfigFile = ""
	})

	c, err := NewInitCmd(quietBaseCmd())
	require.NoError(t, err)
	c.SetOut(&bytes.Buffer{})
	c.SetArgs(nil)
	require.NoError(t, c.Execute())

	cfg, err := (&config.DefaultLoader{}).Load(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Servers)

	// A second run refuses to overwrite.
	require.ErrorContains(t, c.Execute(), "already exists")
}
