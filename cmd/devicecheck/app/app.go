package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/treyturner/ninjaone-e2e/internal/apiclient"
	"github.com/treyturner/ninjaone-e2e/internal/browser"
	"github.com/treyturner/ninjaone-e2e/internal/config"
	"github.com/treyturner/ninjaone-e2e/internal/scenario"
)

const Name string = "devicecheck"

// Set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// globalOptions are the persistent flags shared by every subcommand. A flag
// only overrides the file and environment when it is set explicitly.
type globalOptions struct {
	configPath string
	apiURL        string
	uiURL         string
	apiToken      string
	browser       string
	headless      bool
	urlTimeout    time.Duration
	settleTimeout time.Duration
	logLevel      string
	logFormat     string
}

func NewCommand() *cobra.Command {
	opts := &globalOptions{}
	def := config.Default()

	root := &cobra.Command{
		Use:           Name,
		Short:         "Cross-check the device inventory UI against its REST API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.apiURL, "api-url", def.APIURL, "device API base URL")
	f.StringVar(&opts.uiURL, "ui-url", def.UIURL, "device UI base URL")
	f.StringVar(&opts.apiToken, "api-token", "", "bearer token for the device API")
	f.StringVar(&opts.browser, "browser", def.Browser, fmt.Sprintf("browser backend %v", browser.Backends))
	f.BoolVar(&opts.headless, "headless", def.Headless, "run the browser without a window")
	f.DurationVar(&opts.urlTimeout, "url-timeout", def.URLTimeout, "wait for a URL change after submitting a form")
	f.DurationVar(&opts.settleTimeout, "settle-timeout", def.SettleTimeout, "wait for the device list to render after navigation")
	f.StringVar(&opts.logLevel, "log-level", def.LogLevel, "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", def.LogFormat, "text or json")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newListCommand(opts))
	root.AddCommand(newScenariosCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// load resolves the effective configuration for cmd.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	for name, apply := range map[string]func(){
		"api-url":     func() { cfg.APIURL = o.apiURL },
		"ui-url":      func() { cfg.UIURL = o.uiURL },
		"api-token":   func() { cfg.APIToken = o.apiToken },
		"browser":     func() { cfg.Browser = o.browser },
		"headless":    func() { cfg.Headless = o.headless },
		"url-timeout":    func() { cfg.URLTimeout = o.urlTimeout },
		"settle-timeout": func() { cfg.SettleTimeout = o.settleTimeout },
		"log-level":      func() { cfg.LogLevel = o.logLevel },
		"log-format":     func() { cfg.LogFormat = o.logFormat },
	} {
		if flags.Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (*apiclient.Client, error) {
	return apiclient.NewClient(cfg.APIURL,
		apiclient.WithToken(cfg.APIToken),
		apiclient.WithLogger(logger),
	)
}

func newScenariosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available scenarios in run order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range scenario.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", Name, Version, Commit)
		},
	}
}
