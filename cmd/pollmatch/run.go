package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pollmatch"
	"github.com/jpalmerr/pollmatch/config"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run configured polls until they match or give up",
		Long: `Run every poll in a configuration file concurrently and report the
outcome of each.

Each poll repeats its request until the response matches, its attempt
budget is spent, or the command is interrupted (Ctrl+C).

Exit codes:
  0 - Every poll matched
  1 - At least one poll did not match, or the config is invalid

Example:
  pollmatch run -c polls.yaml
  pollmatch run -c polls.yaml --output json --concurrency 2`,
		RunE: runRun,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	cmd.Flags().Int("concurrency", 0, "override the config's concurrency")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("invalid output %q (expected text or json)", output)
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	jobs, err := config.BuildJobs(cfg)
	if err != nil {
		return fmt.Errorf("failed to build polls: %w", err)
	}

	concurrency := cfg.Concurrency
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		concurrency = n
	}

	p, err := pollmatch.New(
		pollmatch.WithLogger(logger),
		pollmatch.WithMaxConcurrency(concurrency),
	)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	defer p.Close()

	logger.Info("running polls", "polls", len(jobs), "concurrency", concurrency)

	results := p.RunAll(cmd.Context(), jobs)

	if output == "json" {
		err = writeResultsJSON(cmd.OutOrStdout(), results)
	} else {
		err = writeResultsText(cmd.OutOrStdout(), results)
	}
	if err != nil {
		return err
	}

	return unmatchedError(results)
}

// resultJSON is the --output json shape of one poll result.
type resultJSON struct {
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	State      string  `json:"state"`
	Matched    bool    `json:"matched"`
	Attempts   int     `json:"attempts"`
	StatusCode int     `json:"status_code"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Extracted  *string `json:"extracted,omitempty"`
	Error      *string `json:"error,omitempty"`
}

func toResultJSON(r pollmatch.JobResult) resultJSON {
	out := resultJSON{
		Name:       r.Job.Name,
		URL:        r.Outcome.URL,
		State:      r.Outcome.State().String(),
		Matched:    r.Outcome.Matched,
		Attempts:   r.Outcome.Attempts,
		StatusCode: r.Outcome.StatusCode,
		ElapsedMs:  r.Outcome.Elapsed.Milliseconds(),
	}
	if r.Found {
		text := r.Extracted.Text()
		out.Extracted = &text
	}
	if r.Outcome.Err != nil {
		msg := r.Outcome.Err.Error()
		out.Error = &msg
	}
	return out
}

func writeResultsJSON(w io.Writer, results []pollmatch.JobResult) error {
	out := make([]resultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, toResultJSON(r))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeResultsText(w io.Writer, results []pollmatch.JobResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tATTEMPTS\tSTATUS\tELAPSED\tEXTRACTED")
	for _, r := range results {
		extracted := "-"
		if r.Found {
			extracted = r.Extracted.Text()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Job.Name,
			r.Outcome.State(),
			r.Outcome.Attempts,
			r.Outcome.StatusCode,
			r.Outcome.Elapsed.Round(time.Millisecond),
			extracted,
		)
	}
	return tw.Flush()
}

// unmatchedError reports how many polls ended without matching, or nil.
func unmatchedError(results []pollmatch.JobResult) error {
	failed := 0
	for _, r := range results {
		if !r.Outcome.Matched {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d polls did not match", failed, len(results))
}
