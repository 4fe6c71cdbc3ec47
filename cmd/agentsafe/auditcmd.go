package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/audit"
)

func newAuditCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit ledger",
	}

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the last n ledger records as JSON",
		RunE:  runAuditTail,
	}
	tail.Flags().Int("n", 20, "Number of records to print")

	report := &cobra.Command{
		Use:   "report",
		Short: "Render the tailed ledger as a markdown table grouped by decision",
		RunE:  runAuditReport,
	}
	report.Flags().Int("n", 1000, "Number of records to consider")

	root.AddCommand(tail, report)
	return root
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("n")

	events, err := e.ledger.Tail(n)
	if err != nil {
		return fmt.Errorf("tailing ledger: %w", err)
	}
	return printJSON(events)
}

func runAuditReport(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("n")

	events, err := e.ledger.Tail(n)
	if err != nil {
		return fmt.Errorf("tailing ledger: %w", err)
	}
	return audit.RenderMarkdown(os.Stdout, events)
}
