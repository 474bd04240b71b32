package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcpreg/internal/cmd"
	"github.com/mozilla-ai/mcpreg/internal/cmd/output"
	cmdopts "github.com/mozilla-ai/mcpreg/internal/cmd/options"
	"github.com/mozilla-ai/mcpreg/internal/config"
	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// ServerSummary describes a server as it will be registered by the daemon.
type ServerSummary struct {
	Name         string   `json:"name" yaml:"name"`
	Source       string   `json:"source" yaml:"source"`
	Transport    string   `json:"transport" yaml:"transport"`
	Endpoint     string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ServiceType  string   `json:"serviceType,omitempty" yaml:"serviceType,omitempty"`
	Priority     int      `json:"priority" yaml:"priority"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Rules        []string `json:"rules" yaml:"rules"`
}

// ValidateCmd represents the 'validate' command.
type ValidateCmd struct {
	*cmd.BaseCmd
	Format    cmd.OutputFormat
	cfgLoader config.Loader
}

// NewValidateCmd creates a newly configured (Cobra) command.
func NewValidateCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ValidateCmd{
		BaseCmd:   baseCmd,
		Format:    cmd.FormatText,
		cfgLoader: opts.ConfigLoader,
	}

	cobraCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validates the mcpreg configuration",
		Long: "Validates the mcpreg configuration file and every discovery manifest it references, " +
			"then lists the servers the daemon would register",
		RunE: c.run,
		Args: cobra.NoArgs,
	}

	allowed := cmd.AllowedOutputFormats()
	cobraCmd.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", allowed.String()),
	)

	return cobraCmd, nil
}

func (c *ValidateCmd) run(cobraCmd *cobra.Command, _ []string) error {
	handler, err := cmd.NewOutputHandler[ServerSummary](c.Format, cobraCmd.OutOrStdout(), summaryPrinter())
	if err != nil {
		return err
	}

	summaries, err := c.validate()
	if err != nil {
		if c.Format == cmd.FormatText {
			_, _ = fmt.Fprintf(cobraCmd.ErrOrStderr(), "✗ Configuration validation failed: %v\n", err)
			return err
		}
		if herr := handler.HandleError(err); herr != nil {
			return herr
		}
		return err
	}

	return handler.HandleResults(summaries...)
}

// validate loads the configuration strictly and summarizes the configured and manifest servers.
func (c *ValidateCmd) validate() ([]ServerSummary, error) {
	loader := config.NewValidatingLoader(c.cfgLoader, config.RequireServers, config.RequireValidManifests)
	cfg, err := c.LoadConfig(loader)
	if err != nil {
		return nil, err
	}

	descriptors, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}

	// Later sources replace earlier ones with the same name, as during discovery.
	var summaries []ServerSummary
	index := make(map[string]int, len(descriptors))
	add := func(source string, ds []domain.ServerDescriptor) {
		for _, d := range ds {
			if i, ok := index[d.Name]; ok {
				summaries[i] = summarize(source, d)
				continue
			}
			index[d.Name] = len(summaries)
			summaries = append(summaries, summarize(source, d))
		}
	}

	add("config", descriptors)

	for _, path := range cfg.DiscoverySection().Files {
		m, err := config.LoadManifest(path)
		if err != nil {
			return nil, err
		}
		ds, err := m.Descriptors()
		if err != nil {
			return nil, err
		}
		add(path, ds)
	}

	return summaries, nil
}

func summarize(source string, d domain.ServerDescriptor) ServerSummary {
	rules := d.EffectiveRules()
	ruleNames := make([]string, 0, len(rules))
	for _, r := range rules {
		ruleNames = append(ruleNames, fmt.Sprintf("%s -> %s", r, r.Action))
	}

	return ServerSummary{
		Name:         d.Name,
		Source:       source,
		Transport:    string(d.Transport),
		Endpoint:     d.Endpoint,
		ServiceType:  d.ServiceType,
		Priority:     d.Priority,
		Capabilities: d.CapabilityNames(),
		Rules:        ruleNames,
	}
}

func summaryPrinter() output.Printer[ServerSummary] {
	return output.PrinterFuncs[ServerSummary]{
		HeaderFunc: func(w io.Writer, count int) {
			_, _ = fmt.Fprintf(w, "✓ Configuration is valid (%d servers)\n\n", count)
		},
		ItemFunc: func(w io.Writer, s ServerSummary) error {
			_, err := fmt.Fprintf(w, "  %s (%s, %s)\n", s.Name, s.Transport, s.Source)
			if err != nil {
				return err
			}
			if s.ServiceType != "" {
				_, _ = fmt.Fprintf(w, "    service type:  %s (priority %d)\n", s.ServiceType, s.Priority)
			}
			if len(s.Capabilities) > 0 {
				_, _ = fmt.Fprintf(w, "    capabilities:  %s\n", strings.Join(s.Capabilities, ", "))
			}
			for _, r := range s.Rules {
				_, _ = fmt.Fprintf(w, "    rule:          %s\n", r)
			}
			return nil
		},
	}
}
