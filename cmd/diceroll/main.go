// Diceroll rolls a six-sided die every few seconds, prints each value on its
// own line and exports it as the dice_roll gauge over OTLP.
//
// Usage:
//
//	# Roll against a collector on localhost:4317
//	diceroll
//
//	# Use a config file and push to a remote collector over TLS.
//	# Plaintext is only allowed to localhost, so a remote endpoint needs insecure=false.
//	DICEROLL_TELEMETRY__ENDPOINT=collector:4317 DICEROLL_TELEMETRY__INSECURE=false \
//	    diceroll --config diceroll.yaml
//
//	# Show version information
//	diceroll version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/diceroll/internal/telemetry"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var ie *telemetry.InitError
		if errors.As(err, &ie) {
			fmt.Fprintf(stderr, "diceroll: initialization failed: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "diceroll: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "diceroll",
		Short: "Roll a die and export the value as an OpenTelemetry gauge",
		Long: `diceroll rolls a six-sided die on a fixed interval, prints every value
to stdout and records it into the dice_roll gauge, which is pushed to an
OTLP collector on its own export interval.

Configuration comes from an optional YAML file and DICEROLL_* environment
variables, for example DICEROLL_ROLLER__INTERVAL=1s.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), runOptions{
				configPath: configPath,
				stdout:     stdout,
			})
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	})

	return root
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "diceroll by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
