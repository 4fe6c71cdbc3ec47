package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGrantCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "grant",
		Short: "Manage capability grants",
	}

	issue := &cobra.Command{
		Use:   "issue <actor> <tool> <scope>",
		Short: "Issue a time-limited capability grant",
		Args:  cobra.ExactArgs(3),
		RunE:  runGrantIssue,
	}
	issue.Flags().Int("ttl", 600, "Grant lifetime in seconds")
	issue.Flags().String("reason", "", "Reason for the grant")

	list := &cobra.Command{
		Use:   "list",
		Short: "List currently active grants",
		RunE:  runGrantList,
	}

	revoke := &cobra.Command{
		Use:   "revoke <grant_id>",
		Short: "Revoke a grant",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrantRevoke,
	}
	revoke.Flags().String("reason", "", "Reason for the revocation")

	root.AddCommand(issue, list, revoke)
	return root
}

func runGrantIssue(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	ttl, _ := cmd.Flags().GetInt("ttl")
	reason, _ := cmd.Flags().GetString("reason")

	grant, err := e.grants.Issue(args[0], args[1], args[2], ttl, reason)
	if err != nil {
		return fmt.Errorf("issuing grant: %w", err)
	}
	return printJSON(grant)
}

func runGrantList(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	active, err := e.grants.ActiveGrants()
	if err != nil {
		return fmt.Errorf("listing grants: %w", err)
	}
	return printJSON(active)
}

func runGrantRevoke(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")
	if err := e.grants.Revoke(args[0], reason); err != nil {
		return fmt.Errorf("revoking grant: %w", err)
	}
	fmt.Fprintln(os.Stdout, "revoked")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
