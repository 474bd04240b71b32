package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcpreg/internal/config"
	"github.com/mozilla-ai/mcpreg/internal/flags"
	"github.com/mozilla-ai/mcpreg/internal/perms"
)

// AppName is the name used for the root command and the root logger.
const AppName = "mcpreg"

// version is set at build time using -ldflags "-X github.com/mozilla-ai/mcpreg/internal/cmd.version=..."
var version = "dev"

// Version returns the build version of mcpreg.
func Version() string {
	return version
}

// BaseCmd carries state shared by every mcpreg command.
type BaseCmd struct {
	logger hclog.Logger
}

// SetLogger updates the command's logger.
func (c *BaseCmd) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

// Logger returns the logger for the command, creating it from the global flags on first use.
// Logs go to stderr unless --log-path is set.
func (c *BaseCmd) Logger() (hclog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}

	var output io.Writer = os.Stderr
	if logPath := strings.TrimSpace(flags.LogPath); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, perms.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		output = f
	}

	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:   AppName,
		Level:  hclog.LevelFromString(flags.NormalizeLogLevel(flags.LogLevel)),
		Output: output,
	})

	return c.logger, nil
}

// LoadConfig loads the configuration file named by --config-file using loader.
func (c *BaseCmd) LoadConfig(loader config.Loader) (*config.Config, error) {
	if loader == nil {
		return nil, fmt.Errorf("config loader cannot be nil")
	}
	return loader.Load(flags.ConfigFile)
}
