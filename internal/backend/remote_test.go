package backend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteNotConfigured(t *testing.T) {
	r := NewRemote("", "agentsafe/allow", nil)
	d := r.EvaluateFetch("https://x")
	if d.Allowed || d.RuleID != "remote_not_configured" {
		t.Fatalf("expected remote_not_configured BLOCK, got %+v", d)
	}
}

func TestRemoteBooleanResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": true})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "agentsafe/allow", nil)
	d := r.EvaluateFetch("https://x")
	if !d.Allowed || d.RuleID != "remote_boolean" {
		t.Fatalf("expected remote_boolean ALLOW, got %+v", d)
	}
}

func TestRemoteStructuredResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"allow": false, "reason": "blocked", "rule_id": "custom_block"},
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "agentsafe/allow", nil)
	d := r.EvaluateRun([]string{"ls"}, "/ws")
	if d.Allowed || d.RuleID != "custom_block" {
		t.Fatalf("expected structured BLOCK custom_block, got %+v", d)
	}
}

func TestRemoteBadResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{}})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "agentsafe/allow", nil)
	d := r.EvaluatePath("/tmp/x", "/ws")
	if d.Allowed {
		t.Fatalf("expected BLOCK for empty structured result, got %+v", d)
	}
}

func TestRemoteQueryFailed(t *testing.T) {
	r := NewRemote("http://127.0.0.1:1", "agentsafe/allow", nil)
	d := r.EvaluateFetch("https://x")
	if d.Allowed || d.RuleID != "remote_query_failed" {
		t.Fatalf("expected remote_query_failed BLOCK, got %+v", d)
	}
}
