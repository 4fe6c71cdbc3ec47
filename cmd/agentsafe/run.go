package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/adapters"
	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/proxy"
	"github.com/agentsafe/agentsafe/internal/sandbox"
)

const (
	exitOK               = 0
	exitBlocked          = 2
	exitApprovalRequired = 3
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Evaluate and, if allowed, sandbox-execute a shell command",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}
	cmd.Flags().String("actor", "cli", "Actor identity attributed to this invocation")
	cmd.Flags().String("image", "alpine:3.19", "Sandbox container image")
	cmd.Flags().String("cpus", "", "Sandbox --cpus limit")
	cmd.Flags().String("memory", "", "Sandbox --memory limit")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))

	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBlocked)
	}

	actor, _ := cmd.Flags().GetString("actor")
	action := adapters.ToolAction{
		Actor: actor,
		Tool:  "shell.run",
		Args:  map[string]any{"command": args},
		Route: "cli",
	}

	outcome := proxy.Evaluate(action, e.backend, e.grants, e.cfg.Policy.Workspace)

	if !outcome.Decision.Allowed && outcome.Decision.RuleID == "proxy_approval_required" && outcome.Scope != "" {
		if approvedByOverrideFile(e.cfg.Policy.Workspace, outcome.Scope) {
			outcome.Decision.Allowed = true
			outcome.Decision.Reason = "approved via " + overrideFileName
			outcome.Decision.RuleID = "approval_override_file"
		}
	}

	if !outcome.Decision.Allowed {
		emitDecisionAudit(e, outcome, action, nil)
		fmt.Fprintf(os.Stderr, "blocked: %s (%s)\n", outcome.Decision.Reason, outcome.Decision.RuleID)
		if outcome.Decision.RuleID == "proxy_approval_required" {
			os.Exit(exitApprovalRequired)
		}
		os.Exit(exitBlocked)
	}

	runner := sandbox.NewDockerRunner()
	opts := sandbox.Options{
		Image:         mustString(cmd.Flags().GetString("image")),
		WorkspaceRoot: e.cfg.Policy.Workspace,
		NetworkMode:   sandboxNetworkMode(e.backend.NetworkMode()),
		CPUs:          mustString(cmd.Flags().GetString("cpus")),
		MemoryLimit:   mustString(cmd.Flags().GetString("memory")),
	}

	result, err := runner.Run(context.Background(), args, opts)
	if err != nil {
		emitDecisionAudit(e, outcome, action, nil)
		fmt.Fprintf(os.Stderr, "sandbox error: %v\n", err)
		os.Exit(exitBlocked)
	}

	fmt.Print(result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)
	emitDecisionAudit(e, outcome, action, &result)

	os.Exit(result.ExitCode)
	return nil
}

func sandboxNetworkMode(policyMode string) string {
	if policyMode == "allow_proxy" {
		return "bridge"
	}
	return "none"
}

func mustString(s string, _ error) string { return s }

func emitDecisionAudit(e *env, outcome proxy.Outcome, action adapters.ToolAction, result *sandbox.Result) {
	decision := audit.DecisionBlock
	if outcome.Decision.Allowed {
		decision = audit.DecisionAllow
	}
	event := audit.Event{
		RequestID:   outcome.RequestID,
		Actor:       action.Actor,
		Tool:        action.Tool,
		ArgsSummary: strings.Join(commandFromArgs(action.Args), " "),
		Decision:    decision,
		Reason:      outcome.Decision.Reason,
		RuleID:      outcome.Decision.RuleID,
	}
	if result != nil {
		event.StdoutPreview = preview(result.Stdout)
		event.StderrPreview = preview(result.Stderr)
	}
	if err := e.writeAudit(event); err != nil {
		log.Error().Err(err).Msg("failed to write audit event")
	}
}

func commandFromArgs(args map[string]any) []string {
	v, ok := args["command"]
	if !ok {
		return nil
	}
	if cmd, ok := v.([]string); ok {
		return cmd
	}
	return nil
}

func preview(s string) string {
	const max = 2048
	if len(s) > max {
		return s[:max]
	}
	return s
}
