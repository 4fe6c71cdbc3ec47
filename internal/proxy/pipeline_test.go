package proxy

import (
	"path/filepath"
	"testing"

	"github.com/agentsafe/agentsafe/internal/adapters"
	"github.com/agentsafe/agentsafe/internal/backend"
	"github.com/agentsafe/agentsafe/internal/grants"
	"github.com/agentsafe/agentsafe/internal/policy"
)

func testPolicy() *policy.Policy {
	return &policy.Policy{
		PolicyID:        "test",
		DefaultDecision: "deny",
		Tools: policy.ToolPolicy{
			Commands: []policy.CommandRule{
				{Binary: "ls", RuleID: "cmd_ls"},
				{Binary: "curl", RuleID: "cmd_curl"},
			},
			Paths: policy.PathPolicy{Allow: []string{"/workspace"}},
			Network: policy.NetworkPolicy{
				Mode:    "allow_proxy",
				Domains: []string{"openai.com"},
				Ports:   []int{443},
			},
		},
	}
}

func TestEvaluateShellAllowsNonPrivileged(t *testing.T) {
	be := backend.NewLocal(testPolicy())
	a := adapters.ToolAction{Actor: "a", Tool: "shell.run", Args: map[string]any{"command": []any{"ls", "-la"}}}
	outcome := Evaluate(a, be, nil, "/workspace")
	if !outcome.Decision.Allowed {
		t.Fatalf("expected ls to be allowed, got %+v", outcome.Decision)
	}
}

func TestEvaluateShellGatesPrivilegedOnGrant(t *testing.T) {
	be := backend.NewLocal(testPolicy())
	gstore, err := grants.Open(filepath.Join(t.TempDir(), "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a := adapters.ToolAction{Actor: "a", Tool: "shell.run", Args: map[string]any{"command": []any{"curl", "https://openai.com"}}}
	outcome := Evaluate(a, be, gstore, "/workspace")
	if outcome.Decision.Allowed || outcome.Decision.RuleID != "proxy_approval_required" {
		t.Fatalf("expected approval-required BLOCK without a grant, got %+v", outcome.Decision)
	}

	if _, err := gstore.Issue("a", "shell.run", "shell.run curl https://openai.com", 60, "testing"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	outcome = Evaluate(a, be, gstore, "/workspace")
	if !outcome.Decision.Allowed {
		t.Fatalf("expected ALLOW after grant issued, got %+v", outcome.Decision)
	}
}

func TestEvaluateFetchRespectsPolicy(t *testing.T) {
	be := backend.NewLocal(testPolicy())
	gstore, err := grants.Open(filepath.Join(t.TempDir(), "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a := adapters.ToolAction{Actor: "a", Tool: "http.fetch", Args: map[string]any{"url": "https://example.com"}}
	outcome := Evaluate(a, be, gstore, "/workspace")
	if outcome.Decision.Allowed {
		t.Fatalf("expected example.com to be blocked by domain policy, got %+v", outcome.Decision)
	}
}

func TestEvaluateUnknownToolBlocks(t *testing.T) {
	be := backend.NewLocal(testPolicy())
	a := adapters.ToolAction{Actor: "a", Tool: "database.query", Args: map[string]any{}}
	outcome := Evaluate(a, be, nil, "/workspace")
	if outcome.Decision.Allowed || outcome.Decision.RuleID != "proxy_tool_block" {
		t.Fatalf("expected proxy_tool_block, got %+v", outcome.Decision)
	}
}

func TestEvaluateEmptyCmdBlocks(t *testing.T) {
	be := backend.NewLocal(testPolicy())
	a := adapters.ToolAction{Actor: "a", Tool: "shell.run", Args: map[string]any{}}
	outcome := Evaluate(a, be, nil, "/workspace")
	if outcome.Decision.Allowed || outcome.Decision.RuleID != "proxy_empty_cmd" {
		t.Fatalf("expected proxy_empty_cmd, got %+v", outcome.Decision)
	}
}
