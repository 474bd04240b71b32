package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcpreg/internal/cmd"
	cmdopts "github.com/mozilla-ai/mcpreg/internal/cmd/options"
	"github.com/mozilla-ai/mcpreg/internal/config"
	"github.com/mozilla-ai/mcpreg/internal/flags"
)

const (
	flagDev  = "dev"
	flagAddr = "addr"

	defaultAddr = "0.0.0.0:8090"
	devAddr     = "localhost:8090"
)

// DaemonCmd represents the 'daemon' command.
type DaemonCmd struct {
	*cmd.BaseCmd
	Dev       bool
	Addr      string
	cfgLoader config.Loader
}

// NewDaemonCmd creates a newly configured (Cobra) command.
func NewDaemonCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &DaemonCmd{
		BaseCmd:   baseCmd,
		cfgLoader: opts.ConfigLoader,
	}

	cobraCommand := &cobra.Command{
		Use:   "daemon [--dev] [--addr]",
		Short: "Runs the mcpreg registry daemon",
		Long: "Runs the mcpreg registry daemon: discovers the configured servers, monitors their health, " +
			"applies failover rules and serves the read-only HTTP API",
		RunE: c.run,
	}

	cobraCommand.Flags().BoolVar(
		&c.Dev,
		flagDev,
		false,
		"Run the daemon in development-focused mode, bound to "+devAddr,
	)

	cobraCommand.Flags().StringVar(
		&c.Addr,
		flagAddr,
		"",
		"Address for the API server to bind, overrides api.addr (default "+defaultAddr+")",
	)

	cobraCommand.MarkFlagsMutuallyExclusive(flagDev, flagAddr)

	return cobraCommand, nil
}

// run is called by cobra when the command executes.
func (c *DaemonCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	cfg, err := c.LoadConfig(config.NewValidatingLoader(c.cfgLoader, config.RequireServers))
	if err != nil {
		return err
	}

	addr := c.resolveAddr(cfg)
	if c.Dev {
		logger.Info("Development-focused mode", "addr", addr)
	}

	d, err := newDaemon(logger, cfg, addr, cobraCmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to create mcpreg daemon instance: %w", err)
	}

	daemonCtx, daemonCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer daemonCtxCancel()

	runErr := make(chan error, 1)
	go func() {
		if err := d.StartAndManage(daemonCtx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- err
		}
		close(runErr)
	}()

	if c.Dev {
		c.printBanner(cobraCmd.OutOrStdout(), addr, cfg)
	}

	select {
	case <-daemonCtx.Done():
		logger.Info("Shutting down daemon")
		return <-runErr
	case err := <-runErr:
		logger.Error("daemon exited with error", "error", err)
		return err
	}
}

// resolveAddr picks the bind address: --dev, then --addr, then api.addr, then the default.
func (c *DaemonCmd) resolveAddr(cfg *config.Config) string {
	if c.Dev {
		return devAddr
	}
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr
	}
	if a := cfg.APISection().Addr; a != nil && strings.TrimSpace(*a) != "" {
		return strings.TrimSpace(*a)
	}
	return defaultAddr
}

func (c *DaemonCmd) printBanner(w io.Writer, addr string, cfg *config.Config) {
	banner := fmt.Sprintf("mcpreg daemon running in 'dev' mode.\n\n"+
		"  Local API:\thttp://%s/api/v1\n"+
		"  OpenAPI UI:\thttp://%s/docs\n"+
		"  Config file:\t%s\n"+
		"  Servers:\t%d configured\n",
		addr, addr, cfg.ConfigFilePath(), len(cfg.Servers))

	if flags.LogPath != "" {
		banner += fmt.Sprintf("  Log file:\t%s => (%s)\n", flags.LogPath, flags.LogLevel)
	}

	banner += "\nPress Ctrl+C to stop.\n\n"
	_, _ = fmt.Fprint(w, banner)
}
