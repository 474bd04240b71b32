package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcpreg/internal/cmd"
	cmdopts "github.com/mozilla-ai/mcpreg/internal/cmd/options"
	"github.com/mozilla-ai/mcpreg/internal/flags"
)

// RootCmd represents the top-level 'mcpreg' command.
type RootCmd struct {
	*cmd.BaseCmd
}

// Execute builds the root command and runs it against os.Args.
func Execute() error {
	rootCmd, err := NewRootCmd(&RootCmd{BaseCmd: &cmd.BaseCmd{}})
	if err != nil {
		return fmt.Errorf("could not create root command: %w", err)
	}

	return rootCmd.Execute()
}

// NewRootCmd creates the root command and registers every sub-command.
func NewRootCmd(c *RootCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	if c == nil || c.BaseCmd == nil {
		return nil, fmt.Errorf("root command requires a base command")
	}

	rootCmd := &cobra.Command{
		Use:           cmd.AppName + " <command> [args]",
		Short:         "Registry, health monitor and failover coordinator for tool servers",
		Long:          c.longDescription(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       cmd.Version(),
	}

	flags.InitFlags(rootCmd.PersistentFlags())

	fns := []func(*cmd.BaseCmd, ...cmdopts.CmdOption) (*cobra.Command, error){
		NewDaemonCmd,
		NewInitCmd,
		NewValidateCmd,
	}

	for _, fn := range fns {
		sub, err := fn(c.BaseCmd, opt...)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(sub)
	}

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `The 'mcpreg' CLI runs a registry of tool servers: it tracks their capabilities,
probes their health on a fixed interval and applies failover rules when a server
stays unhealthy. Use 'mcpreg init' to create a configuration file, 'mcpreg validate'
to check it and 'mcpreg daemon' to run the registry with its read-only HTTP API.`
}
