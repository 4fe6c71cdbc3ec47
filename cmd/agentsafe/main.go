// Package main provides the entry point for agentsafe, a policy
// enforcement point for autonomous-agent tool calls: an inline CLI
// wrapper around individual tool invocations, and a reverse-proxy server
// that intercepts tool-invocation requests to an upstream agent gateway.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentsafe",
		Short: "Policy enforcement point for autonomous-agent tool calls",
		Long: `agentsafe sits between an agent and the tools it may invoke (shell
commands, HTTP fetches) and produces an ALLOW/BLOCK decision for each call,
backed by a tamper-evident audit trail.

Modes:
  • Inline   — wrap one tool invocation at a time: agentsafe run / fetch
  • Reverse proxy — intercept requests to an upstream gateway: agentsafe serve`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(
		newRunCmd(),
		newFetchCmd(),
		newServeCmd(),
		newGrantCmd(),
		newApprovalCmd(),
		newPolicyCmd(),
		newAuditCmd(),
		newDecisionServerCmd(),
		newTelemetryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func debugFlag(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

func configPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
