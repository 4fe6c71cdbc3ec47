package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/adapters"
	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/proxy"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Evaluate and, if allowed, perform an HTTP fetch",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}
	cmd.Flags().String("actor", "cli", "Actor identity attributed to this invocation")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))

	e, err := loadEnv(configPathFlag(cmd))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBlocked)
	}

	actor, _ := cmd.Flags().GetString("actor")
	url := args[0]
	action := adapters.ToolAction{
		Actor: actor,
		Tool:  "http.fetch",
		Args:  map[string]any{"url": url},
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
		writeFetchAudit(e, outcome, action, "")
		fmt.Fprintf(os.Stderr, "blocked: %s (%s)\n", outcome.Decision.Reason, outcome.Decision.RuleID)
		if outcome.Decision.RuleID == "proxy_approval_required" {
			os.Exit(exitApprovalRequired)
		}
		os.Exit(exitBlocked)
	}

	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		writeFetchAudit(e, outcome, action, "")
		fmt.Fprintf(os.Stderr, "fetch error: %v\n", err)
		os.Exit(exitBlocked)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeFetchAudit(e, outcome, action, "")
		fmt.Fprintf(os.Stderr, "fetch read error: %v\n", err)
		os.Exit(exitBlocked)
	}

	fmt.Print(string(body))
	writeFetchAudit(e, outcome, action, string(body))

	if resp.StatusCode >= 400 {
		os.Exit(exitBlocked)
	}
	os.Exit(exitOK)
	return nil
}

func writeFetchAudit(e *env, outcome proxy.Outcome, action adapters.ToolAction, body string) {
	decision := audit.DecisionBlock
	if outcome.Decision.Allowed {
		decision = audit.DecisionAllow
	}
	url, _ := action.Args["url"].(string)
	event := audit.Event{
		RequestID:     outcome.RequestID,
		Actor:         action.Actor,
		Tool:          action.Tool,
		ArgsSummary:   url,
		Decision:      decision,
		Reason:        outcome.Decision.Reason,
		RuleID:        outcome.Decision.RuleID,
		StdoutPreview: preview(body),
	}
	if err := e.writeAudit(event); err != nil {
		log.Error().Err(err).Msg("failed to write audit event")
	}
}
