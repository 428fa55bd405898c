// Package main is the entry point for the pollmatch CLI.
//
// pollmatch can be used as a library (SDK) or as a standalone binary with
// YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pollmatch run -c polls.yaml        # Run configured polls to completion
//	pollmatch validate -c polls.yaml   # Validate configuration
//	pollmatch get URL --match ...      # Poll a single URL
//	pollmatch serve --port 8080        # Accept polls over HTTP
//	pollmatch version                  # Show version info
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the command tree. Tests build a fresh tree per run so
// flag values never leak between executions.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pollmatch",
		Short: "Poll HTTP endpoints until the response matches",
		Long: `pollmatch repeatedly calls an HTTP endpoint until its response body
matches a predicate: a literal substring, a regular expression, a JSON
document contained in the response, or a JSONPath selection.

Quick start:
  1. Create a config file (polls.yaml)
  2. Run: pollmatch run -c polls.yaml

Example config:
  defaults:
    max_attempts: 30
    delay: 2s
  polls:
    - name: render finished
      url: http://localhost:8188/history/abc
      match: 'json:{"status":{"completed":true}}'
      extract: outputs.9.images.0.filename`,
		SilenceUsage: true,
		// No Run/RunE means this just shows help when called without subcommands
	}

	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newGetCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

// newLogger creates a JSON logger on stderr at the level named by the
// --log-level flag.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")
	level, err := parseLevel(name)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})), nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", name)
	}
	return level, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this pollmatch binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pollmatch %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func main() {
	// cancel on SIGINT/SIGTERM; running polls stop at their next attempt or delay
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// Cobra already prints the error, just exit with code 1
		stop()
		os.Exit(1)
	}
}
