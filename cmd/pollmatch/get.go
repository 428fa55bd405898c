package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pollmatch"
	"github.com/jpalmerr/pollmatch/config"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Poll a single URL until it matches",
		Long: `Poll a single URL without a config file.

The last response body is printed on success, or the value at --extract
when given. The command fails if the attempt budget runs out first.

Match shorthand: contains:TEXT, regex:RE, json:DOC, jsonpath:EXPR.
Prefix with not- to stop on the first response that does NOT match.

Example:
  pollmatch get http://localhost:8188/history/abc \
    --match 'json:{"status":{"completed":true}}' \
    --max-attempts 60 --delay 2s \
    --extract outputs.9.images.0.filename`,
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}

	cmd.Flags().StringP("match", "m", "", "stop condition in shorthand form (required)")
	cmd.Flags().StringP("method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayP("header", "H", nil, "header as 'Key: Value' (repeatable)")
	cmd.Flags().StringP("data", "d", "", "request body")
	cmd.Flags().IntP("max-attempts", "n", 10, "attempt budget")
	cmd.Flags().Duration("delay", time.Second, "pause between attempts")
	cmd.Flags().Duration("timeout", 10*time.Second, "per-attempt timeout")
	cmd.Flags().StringP("extract", "e", "", "dotted path or $-rooted JSONPath to print")
	_ = cmd.MarkFlagRequired("match")
	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	matchFlag, _ := cmd.Flags().GetString("match")
	spec, err := config.ParseMatch(matchFlag)
	if err != nil {
		return fmt.Errorf("invalid --match: %w", err)
	}

	req, err := requestFromFlags(cmd, args[0])
	if err != nil {
		return err
	}

	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
	delay, _ := cmd.Flags().GetDuration("delay")

	p, err := pollmatch.New(pollmatch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	defer p.Close()

	out, err := p.Poll(cmd.Context(), req, spec, maxAttempts, delay)
	if err != nil {
		return err
	}
	if !out.Matched {
		return fmt.Errorf("no match after %d attempts (last status %d)", out.Attempts, out.StatusCode)
	}

	extract, _ := cmd.Flags().GetString("extract")
	if extract == "" {
		fmt.Fprintln(cmd.OutOrStdout(), out.BodyString())
		return nil
	}

	v, found := out.Extract(extract)
	if !found {
		return fmt.Errorf("nothing found at %q in the matching response", extract)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Text())
	return nil
}

func requestFromFlags(cmd *cobra.Command, url string) (pollmatch.Request, error) {
	method, _ := cmd.Flags().GetString("method")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	opts := []pollmatch.RequestOption{
		pollmatch.WithMethod(method),
		pollmatch.WithTimeout(timeout),
	}

	headers, _ := cmd.Flags().GetStringArray("header")
	for _, h := range headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return pollmatch.Request{}, fmt.Errorf("invalid header %q (expected 'Key: Value')", h)
		}
		opts = append(opts, pollmatch.WithHeaders(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	if cmd.Flags().Changed("data") {
		body, _ := cmd.Flags().GetString("data")
		opts = append(opts, pollmatch.WithBody(body))
	}

	req, err := pollmatch.NewRequest(url, opts...)
	if err != nil {
		return pollmatch.Request{}, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}
