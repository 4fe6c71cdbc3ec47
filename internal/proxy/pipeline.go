// Package proxy implements the reverse-proxy decision pipeline (spec
// §4.7): route match -> adapt -> evaluate -> grant-check -> audit ->
// forward.
package proxy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agentsafe/agentsafe/internal/adapters"
	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/backend"
	"github.com/agentsafe/agentsafe/internal/grants"
	"github.com/agentsafe/agentsafe/internal/shellwords"
)

// privilegedShellBinaries are the commands that gate a shell action on a
// grant even after policy allows them (spec §4.7 step 2).
var privilegedShellBinaries = map[string]bool{
	"curl":       true,
	"wget":       true,
	"apt":        true,
	"apt-get":    true,
}

// Outcome is the result of running an action through the pipeline.
type Outcome struct {
	Decision  backend.Decision
	RequestID string
	Scope     string
}

// Evaluate classifies, policy-checks, and grant-checks a ToolAction,
// returning the final decision and the request id the audit record should
// use (spec §4.7 steps 1-2).
func Evaluate(a adapters.ToolAction, be backend.Backend, grantStore *grants.Store, workspaceRoot string) Outcome {
	requestID := a.RequestID
	if requestID == "" {
		requestID = audit.NewRequestID()
	}

	tool := strings.ToLower(a.Tool)

	switch {
	case tool == "shell.run" || tool == "run" || tool == "command":
		return evaluateShell(a, be, grantStore, workspaceRoot, requestID)
	case tool == "http.fetch" || tool == "fetch" || tool == "browser.fetch":
		return evaluateFetch(a, be, grantStore, requestID)
	default:
		return Outcome{
			Decision:  backend.Decision{Allowed: false, Reason: "tool not recognized: " + a.Tool, RuleID: "proxy_tool_block"},
			RequestID: requestID,
		}
	}
}

func extractCmd(args map[string]any) []string {
	v, ok := args["command"]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		return shellwords.Split(val)
	default:
		return nil
	}
}

func evaluateShell(a adapters.ToolAction, be backend.Backend, grantStore *grants.Store, workspaceRoot, requestID string) Outcome {
	cmd := extractCmd(a.Args)
	if len(cmd) == 0 {
		return Outcome{
			Decision:  backend.Decision{Allowed: false, Reason: "empty shell command", RuleID: "proxy_empty_cmd"},
			RequestID: requestID,
		}
	}

	decision := be.EvaluateRun(cmd, workspaceRoot)
	if !decision.Allowed {
		return Outcome{Decision: decision, RequestID: requestID}
	}

	for _, arg := range cmd[1:] {
		if strings.Contains(arg, "/") || strings.HasPrefix(arg, ".") {
			pathDecision := be.EvaluatePath(arg, workspaceRoot)
			if !pathDecision.Allowed {
				return Outcome{Decision: pathDecision, RequestID: requestID}
			}
		}
	}

	if !privilegedShellBinaries[cmd[0]] {
		return Outcome{Decision: decision, RequestID: requestID}
	}

	scope := a.Tool + " " + shellwords.Join(cmd)
	return gateOnGrant(a, grantStore, decision, scope, requestID)
}

func evaluateFetch(a adapters.ToolAction, be backend.Backend, grantStore *grants.Store, requestID string) Outcome {
	rawURL, _ := a.Args["url"].(string)
	decision := be.EvaluateFetch(rawURL)
	if !decision.Allowed {
		return Outcome{Decision: decision, RequestID: requestID}
	}

	scope := a.Tool + " " + rawURL
	return gateOnGrant(a, grantStore, decision, scope, requestID)
}

// gateOnGrant applies the privileged-action gate (spec §4.7 step 2): an
// action that passed policy still needs a matching active grant.
func gateOnGrant(a adapters.ToolAction, grantStore *grants.Store, passed backend.Decision, scope, requestID string) Outcome {
	if grantStore == nil {
		return Outcome{
			Decision:  backend.Decision{Allowed: false, Reason: "approval required: no grant store configured", RuleID: "proxy_approval_required"},
			RequestID: requestID,
			Scope:     scope,
		}
	}

	allowed, err := grantStore.IsAllowed(a.Actor, a.Tool, scope)
	if err != nil || !allowed {
		return Outcome{
			Decision:  backend.Decision{Allowed: false, Reason: "approval required for scope: " + scope, RuleID: "proxy_approval_required"},
			RequestID: requestID,
			Scope:     scope,
		}
	}

	return Outcome{Decision: passed, RequestID: requestID, Scope: scope}
}

// CanonicalArgsJSON renders args as canonical (key-sorted) JSON. The proxy
// handler uses it as the audit record's args summary; no grant scope is
// built from it, since tools outside the shell/fetch classification are
// blocked before the grant gate.
func CanonicalArgsJSON(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(args))
	for _, k := range keys {
		ordered[k] = args[k]
	}
	data, err := json.Marshal(ordered)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
