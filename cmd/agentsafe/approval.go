package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApprovalCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval requests",
	}

	create := &cobra.Command{
		Use:   "create <actor> <tool> <scope>",
		Short: "Create a pending approval request",
		Args:  cobra.ExactArgs(3),
		RunE:  runApprovalCreate,
	}
	create.Flags().String("reason", "", "Reason for the request")
	create.Flags().Int("ttl", 3600, "Request expiry in seconds")

	list := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE:  runApprovalList,
	}
	list.Flags().String("status", "pending", `Filter by status, or "all"`)

	approve := &cobra.Command{
		Use:   "approve <request_id>",
		Short: "Approve a pending request and issue its grant",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalApprove,
	}
	approve.Flags().String("reviewer", "", "Reviewer identity")
	approve.Flags().Int("ttl", 600, "Issued grant's lifetime in seconds")
	approve.Flags().String("reason", "", "Review note")

	reject := &cobra.Command{
		Use:   "reject <request_id>",
		Short: "Reject a pending or expired request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalReject,
	}
	reject.Flags().String("reviewer", "", "Reviewer identity")
	reject.Flags().String("reason", "", "Review note")

	root.AddCommand(create, list, approve, reject)
	return root
}

func runApprovalCreate(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")
	ttl, _ := cmd.Flags().GetInt("ttl")

	req, err := e.approvals.Create(args[0], args[1], args[2], reason, ttl)
	if err != nil {
		return fmt.Errorf("creating approval request: %w", err)
	}
	return printJSON(req)
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	status, _ := cmd.Flags().GetString("status")

	reqs, err := e.approvals.List(status)
	if err != nil {
		return fmt.Errorf("listing approval requests: %w", err)
	}
	return printJSON(reqs)
}

func runApprovalApprove(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	reviewer, _ := cmd.Flags().GetString("reviewer")
	ttl, _ := cmd.Flags().GetInt("ttl")
	reason, _ := cmd.Flags().GetString("reason")

	grant, err := e.approvals.Approve(args[0], reviewer, ttl, reason, e.grants)
	if err != nil {
		return fmt.Errorf("approving request: %w", err)
	}
	return printJSON(grant)
}

func runApprovalReject(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		return err
	}
	reviewer, _ := cmd.Flags().GetString("reviewer")
	reason, _ := cmd.Flags().GetString("reason")

	if err := e.approvals.Reject(args[0], reviewer, reason); err != nil {
		return fmt.Errorf("rejecting request: %w", err)
	}
	fmt.Println("rejected")
	return nil
}
