package proxy

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/backend"
	"github.com/agentsafe/agentsafe/internal/grants"
)

func newTestHandler(t *testing.T, upstreamURL string) *Handler {
	t.Helper()
	be := backend.NewLocal(testPolicy())
	gstore, err := grants.Open(filepath.Join(t.TempDir(), "grants.jsonl"))
	if err != nil {
		t.Fatalf("Open grants: %v", err)
	}
	ledger, err := audit.Open(filepath.Join(t.TempDir(), "ledger.jsonl"))
	if err != nil {
		t.Fatalf("Open ledger: %v", err)
	}
	h, err := NewHandler(be, gstore, ledger, "/workspace", upstreamURL, "", "", nil, 0)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func TestHandlerBlocksAndAudits(t *testing.T) {
	h := newTestHandler(t, "http://unused")

	body := strings.NewReader(`{"request_id":"r1","tool":"shell.run","args":{"command":["rm","-rf","/etc"]}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", body)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	events, err := h.Ledger.Tail(1)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 1 || events[0].Decision != audit.DecisionBlock {
		t.Fatalf("expected one BLOCK audit event, got %+v", events)
	}
}

func TestHandlerAdapterErrorIs400(t *testing.T) {
	h := newTestHandler(t, "http://unused")

	body := strings.NewReader(`not json`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", body)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlerForwardsAllowedAndPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok:" + r.URL.Path))
	}))
	defer upstream.Close()

	h := newTestHandler(t, upstream.URL)

	body := strings.NewReader(`{"request_id":"r1","tool":"shell.run","args":{"command":["ls","-la"]}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", body)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 forwarded, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Fatalf("expected upstream header to be relayed")
	}

	events, err := h.Ledger.Tail(1)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 1 || events[0].Decision != audit.DecisionAllow {
		t.Fatalf("expected one ALLOW audit event, got %+v", events)
	}

	passReq := httptest.NewRequest(http.MethodGet, "/not-a-tool-path", nil)
	passRec := httptest.NewRecorder()
	h.ServeHTTP(passRec, passReq)
	if passRec.Code != http.StatusOK {
		t.Fatalf("expected passthrough route to forward untouched, got %d", passRec.Code)
	}

	events, err = h.Ledger.Tail(10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected passthrough route not to be audited, have %d events", len(events))
	}
}
