package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/treyturner/ninjaone-e2e/internal/browser"
	"github.com/treyturner/ninjaone-e2e/internal/names"
	"github.com/treyturner/ninjaone-e2e/internal/scenario"
)

type runOptions struct {
	runID         string
	installDriver bool
}

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios against the configured UI and API",
		Long: "Run the named scenarios, or all of them, in order. Exits non-zero when any scenario fails.\n\n" +
			"Scenarios: " + strings.Join(scenario.Names(), ", "),
		ValidArgs: scenario.Names(),
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, global, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "identifier embedded in created device names (random when empty)")
	cmd.Flags().BoolVar(&opts.installDriver, "install-driver", false, "download the Playwright driver and browser before running")
	return cmd
}

func runScenarios(cmd *cobra.Command, global *globalOptions, opts *runOptions, args []string) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, err := browser.Launch(ctx, browser.Options{
		Backend:       cfg.Browser,
		Headless:      cfg.Headless,
		InstallDriver: opts.installDriver,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	runID := opts.runID
	if runID == "" {
		runID = names.NewRunID(nil)
	}
	logger.Info("starting run",
		"run_id", runID, "api_url", cfg.APIURL, "ui_url", cfg.UIURL, "browser", cfg.Browser)

	runner := &scenario.Runner{
		API:           client,
		Page:          session.Page(),
		UIURL:         cfg.UIURL,
		URLTimeout:    cfg.URLTimeout,
		SettleTimeout: cfg.SettleTimeout,
		RunID:         runID,
		Logger:        logger,
	}
	results := runner.Run(ctx, args...)
	return report(cmd, results)
}

// report prints one line per result and returns an error when any failed.
func report(cmd *cobra.Command, results []scenario.Result) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tRESULT\tDURATION\tDETAIL")
	for _, r := range results {
		status, detail := "PASS", ""
		if !r.OK() {
			status, detail = "FAIL", r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, status, r.Duration.Round(time.Millisecond), detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	failed := slices.DeleteFunc(slices.Clone(results), scenario.Result.OK)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, r := range failed {
		errs[i] = fmt.Errorf("%s: %w", r.Name, r.Err)
	}
	return fmt.Errorf("%d of %d scenarios failed: %w", len(failed), len(results), errors.Join(errs...))
}
