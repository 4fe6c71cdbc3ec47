package approvals

import (
	"path/filepath"
	"testing"

	"github.com/agentsafe/agentsafe/internal/grants"
)

func TestCreateListApprove(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "approvals.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	gstore, err := grants.Open(filepath.Join(dir, "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open grants: %v", err)
	}

	req, err := s.Create("a", "run", "curl https://x", "need curl", 3600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	pending, err := s.List(StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != req.RequestID {
		t.Fatalf("expected newly created request in pending list, got %+v", pending)
	}

	g, err := s.Approve(req.RequestID, "sec", 600, "ok", gstore)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	allowed, err := gstore.IsAllowed("a", "run", "curl https://x")
	if err != nil {
		t.Fatalf("IsAllowed: %v", err)
	}
	if !allowed {
		t.Fatalf("expected approval to issue a usable grant")
	}

	got, ok, err := s.Get(req.RequestID)
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", ok, err)
	}
	if got.Status != StatusApproved || got.GrantID != g.GrantID {
		t.Fatalf("expected approved request with grant id, got %+v", got)
	}
}

func TestApproveUnknownOrNotPending(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "approvals.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	gstore, err := grants.Open(filepath.Join(dir, "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open grants: %v", err)
	}

	if _, err := s.Approve("does-not-exist", "sec", 60, "ok", gstore); err == nil {
		t.Fatalf("expected error approving unknown request")
	}

	req, err := s.Create("a", "run", "ls", "test", 3600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Reject(req.RequestID, "sec", "no"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := s.Approve(req.RequestID, "sec", 60, "ok", gstore); err == nil {
		t.Fatalf("expected error approving an already-rejected request")
	}
}

func TestRejectAcceptsExpiredRequest(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "approvals.jsonl"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	req, err := s.Create("a", "run", "ls", "test", -1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := s.Get(req.RequestID)
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", ok, err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("expected request to project as expired, got %s", got.Status)
	}

	if err := s.Reject(req.RequestID, "sec", "too late"); err != nil {
		t.Fatalf("Reject should accept an expired request: %v", err)
	}
}
