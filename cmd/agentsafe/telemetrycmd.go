package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/telemetry"
)

func newTelemetryCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "telemetry",
		Short: "Telemetry export utilities",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Batch-export the audit ledger to an external collector",
		RunE:  runTelemetryExport,
	}
	export.Flags().String("endpoint", "", "Collector endpoint URL")
	export.MarkFlagRequired("endpoint")

	root.AddCommand(export)
	return root
}

func runTelemetryExport(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	endpoint, _ := cmd.Flags().GetString("endpoint")

	ledgerPath := filepath.Join(e.cfg.Policy.Workspace, "ledger.jsonl")
	sent, err := telemetry.ExportLedger(context.Background(), ledgerPath, endpoint, nil)
	if err != nil {
		return fmt.Errorf("exporting ledger: %w", err)
	}
	fmt.Printf("exported %d records to %s\n", sent, endpoint)
	return nil
}
