package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pollmatch/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a pollmatch configuration file without running any polls.

This command parses the YAML, expands environment variables, compiles every
match pattern, and expands grids. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pollmatch validate -c polls.yaml`,
		RunE: runValidate,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	jobs, err := config.BuildJobs(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Polls)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Concurrency:   %d\n", cfg.Concurrency)
	fmt.Fprintf(out, "  Max attempts:  %d (default)\n", cfg.Defaults.MaxAttempts)
	fmt.Fprintf(out, "  Delay:         %s (default)\n", cfg.Defaults.Delay.Duration())
	fmt.Fprintf(out, "  Polls:         %d direct + %d from grids = %d total\n",
		direct, len(jobs)-direct, len(jobs))

	return nil
}
