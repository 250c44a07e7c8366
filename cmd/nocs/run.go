package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"nocs-settlement/internal/clients/nocs"
	"nocs-settlement/internal/scenarios"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	scenarioIDs   []string
	keepResponses bool
	jsonOutput    bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run settlement conformance scenarios against NOCS",
		Long: `Run executes the scenario catalog (or the scenarios named with --scenario)
against the configured NOCS settle and report endpoints and prints one line
per step. A NACK is a recorded result; only configuration problems and
interruption make the command fail.`,
		Example: "  nocs run\n  nocs run --scenario TC_01,TC_24 --keep-responses",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScenarios(ctx, cmd, root, opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.scenarioIDs, "scenario", "s", nil, "scenario ids to run, e.g. TC_01,TC_24 (default all)")
	cmd.Flags().BoolVar(&opts.keepResponses, "keep-responses", false, "include raw response bodies in the report")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func runScenarios(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	selected, err := scenarios.Select(opts.scenarioIDs)
	if err != nil {
		return err
	}

	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.close()

	signers, err := a.signers()
	if err != nil {
		return err
	}
	sinks, err := a.sinks(ctx)
	if err != nil {
		return err
	}

	client := nocs.NewClient(a.cfg.NOCS, nocs.NewBreaker(a.cfg.CircuitBreaker, a.metrics), a.metrics, a.tracer, a.logger)

	runnerCfg := scenarios.NewRunnerConfig(a.cfg)
	runnerCfg.KeepResponses = opts.keepResponses
	runner := scenarios.NewRunner(runnerCfg, client, signers, sinks, a.logger)

	report, runErr := runner.Run(ctx, selected)
	if report == nil {
		return runErr
	}

	if err := writeRunReport(cmd, report, opts.jsonOutput); err != nil {
		return err
	}
	if runErr != nil {
		a.logger.Warn("scenario run interrupted", zap.Error(runErr))
	}
	return runErr
}

func writeRunReport(cmd *cobra.Command, report *scenarios.RunReport, asJSON bool) error {
	if !asJSON {
		return scenarios.WriteReport(cmd.OutOrStdout(), report)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenario catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return scenarios.WriteCatalog(cmd.OutOrStdout(), scenarios.Catalog())
		},
	}
}
