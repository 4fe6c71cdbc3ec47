package grants

import (
	"path/filepath"
	"testing"
	"time"
)

func TestIssueRevokeRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	g, err := s.Issue("a", "run", "curl *", 60, "testing")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	allowed, err := s.IsAllowed("a", "run", "curl https://x")
	if err != nil {
		t.Fatalf("IsAllowed: %v", err)
	}
	if !allowed {
		t.Fatalf("expected grant to allow matching scope")
	}

	if err := s.Revoke(g.GrantID, "done"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	allowed, err = s.IsAllowed("a", "run", "curl https://x")
	if err != nil {
		t.Fatalf("IsAllowed: %v", err)
	}
	if allowed {
		t.Fatalf("expected revoked grant to no longer allow")
	}
}

func TestActiveGrantsExpiry(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Issue("a", "run", "*", -1, "already expired"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	active, err := s.activeGrantsAt(time.Now())
	if err != nil {
		t.Fatalf("activeGrantsAt: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected expired grant to be excluded, got %d active", len(active))
	}
}

func TestIsAllowedWildcardActorAndTool(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Issue("*", "*", "http.fetch https://openai.com*", 60, "broad"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	allowed, err := s.IsAllowed("any-actor", "http.fetch", "http.fetch https://openai.com/v1")
	if err != nil {
		t.Fatalf("IsAllowed: %v", err)
	}
	if !allowed {
		t.Fatalf("expected wildcard actor/tool grant to match")
	}
}

func TestRenderScopeTemplate(t *testing.T) {
	cases := []struct {
		template, value, tool, want string
	}{
		{"run-binary", "curl", "", "curl *"},
		{"run-command", "curl https://x", "", "curl https://x"},
		{"tool-prefix", "foo", "shell.run", "shell.run foo*"},
		{"http-domain", "OpenAI.com", "fetch", "http.fetch https://openai.com*"},
	}
	for _, c := range cases {
		got, err := RenderScopeTemplate(c.template, c.value, c.tool)
		if err != nil {
			t.Fatalf("RenderScopeTemplate(%s): %v", c.template, err)
		}
		if got != c.want {
			t.Errorf("RenderScopeTemplate(%s, %s, %s) = %q, want %q", c.template, c.value, c.tool, got, c.want)
		}
	}

	if _, err := RenderScopeTemplate("unknown", "x", "y"); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}
