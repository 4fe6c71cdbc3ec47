package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentsafe/agentsafe/internal/adapters"
	"github.com/agentsafe/agentsafe/internal/audit"
	"github.com/agentsafe/agentsafe/internal/backend"
	"github.com/agentsafe/agentsafe/internal/grants"
)

// DefaultToolPathPatterns are the routes evaluated as tool calls when no
// override is configured (spec §6).
var DefaultToolPathPatterns = []string{
	`^/v1/tools/execute$`,
	`^/gateway/tools/execute$`,
	`^/api/tools/.+`,
}

// hopByHopHeaders are stripped in both directions of proxying (spec §4.7
// step 4).
var hopByHopHeaders = []string{"Connection", "Transfer-Encoding", "Content-Length", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization", "Te", "Trailer", "Upgrade"}

// AuditMirror is the optional, best-effort durable mirror of emitted audit
// events (spec §11 domain-stack addition, e.g. internal/store/pgaudit). It
// is consulted purely as a query accelerator; a nil or failing mirror never
// affects the ALLOW/BLOCK decision path.
type AuditMirror interface {
	InsertAsync(ctx context.Context, event audit.Event)
}

// Handler is the net/http.Handler driving the reverse-proxy pipeline. It
// uses net/http directly, not gin, because it must stream arbitrary
// upstream request/response bodies and headers byte for byte — more
// directly expressed against http.Handler than gin's JSON-oriented
// context helpers.
type Handler struct {
	Backend       backend.Backend
	GrantStore    *grants.Store
	Ledger        *audit.Ledger
	AuditMirror   AuditMirror
	WorkspaceRoot string
	UpstreamURL   string
	ActorHeader   string
	AdapterName   string // "" (auto), "strict-v1", "strict-v2", "generic"
	ToolPaths     []*regexp.Regexp
	UpstreamHTTP  *http.Client
}

// NewHandler builds a Handler, compiling toolPathPatterns (falling back to
// DefaultToolPathPatterns when empty).
func NewHandler(be backend.Backend, grantStore *grants.Store, ledger *audit.Ledger, workspaceRoot, upstreamURL, actorHeader, adapterName string, toolPathPatterns []string, upstreamTimeout time.Duration) (*Handler, error) {
	patterns := toolPathPatterns
	if len(patterns) == 0 {
		patterns = DefaultToolPathPatterns
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling tool path pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	if actorHeader == "" {
		actorHeader = "X-Agent-Actor"
	}
	if upstreamTimeout <= 0 {
		upstreamTimeout = 20 * time.Second
	}
	return &Handler{
		Backend:       be,
		GrantStore:    grantStore,
		Ledger:        ledger,
		WorkspaceRoot: workspaceRoot,
		UpstreamURL:   upstreamURL,
		ActorHeader:   actorHeader,
		AdapterName:   adapterName,
		ToolPaths:     compiled,
		UpstreamHTTP:  &http.Client{Timeout: upstreamTimeout},
	}, nil
}

func (h *Handler) matchesToolPath(path string) bool {
	for _, re := range h.ToolPaths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// ServeHTTP implements the route-inspection gate: only paths matching a
// configured tool-path regex are policy-evaluated; everything else is
// transparently forwarded without audit (spec §4.7).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.matchesToolPath(r.URL.Path) {
		h.forward(w, r, nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	fallbackActor := r.Header.Get(h.ActorHeader)
	action, err := h.adapt(r.URL.Path, body, fallbackActor)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := Evaluate(action, h.Backend, h.GrantStore, h.WorkspaceRoot)

	h.emitAudit(action, outcome)

	if !outcome.Decision.Allowed {
		writeBlocked(w, outcome)
		return
	}

	h.forward(w, r, body)
}

func (h *Handler) adapt(path string, body []byte, fallbackActor string) (adapters.ToolAction, error) {
	switch h.AdapterName {
	case "strict-v1":
		return adapters.StrictV1(path, body, fallbackActor)
	case "strict-v2":
		return adapters.StrictV2(path, body, fallbackActor)
	case "generic":
		return adapters.Generic(path, body, fallbackActor)
	default:
		return adapters.Route(path, body, fallbackActor)
	}
}

func (h *Handler) emitAudit(a adapters.ToolAction, outcome Outcome) {
	if h.Ledger == nil {
		return
	}
	decisionStr := audit.DecisionBlock
	if outcome.Decision.Allowed {
		decisionStr = audit.DecisionAllow
	}
	event := audit.Event{
		RequestID:   outcome.RequestID,
		Actor:       a.Actor,
		Tool:        a.Tool,
		ArgsSummary: CanonicalArgsJSON(a.Args),
		Decision:    decisionStr,
		Reason:      outcome.Decision.Reason,
		RuleID:      outcome.Decision.RuleID,
	}
	if err := h.Ledger.Write(event); err != nil {
		log.Error().Err(err).Str("request_id", outcome.RequestID).Msg("failed to write audit event")
	}
	if h.AuditMirror != nil {
		h.AuditMirror.InsertAsync(context.Background(), event)
	}
}

func writeBlocked(w http.ResponseWriter, outcome Outcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      "blocked",
		"reason":     outcome.Decision.Reason,
		"rule_id":    outcome.Decision.RuleID,
		"request_id": outcome.RequestID,
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// forward streams the request to the configured upstream and relays the
// response byte for byte, stripping hop-by-hop headers in both directions
// and recomputing Content-Length (spec §4.7 step 4). body is the already-
// read request body for evaluated paths, or nil for pass-through paths
// (where r.Body is streamed directly).
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, body []byte) {
	if h.UpstreamURL == "" {
		writeJSONError(w, http.StatusBadGateway, "no upstream configured")
		return
	}

	target, err := joinUpstream(h.UpstreamURL, r.URL)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "invalid upstream target")
		return
	}

	var reqBody io.Reader = r.Body
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	ctx := r.Context()
	outReq, err := http.NewRequestWithContext(ctx, r.Method, target, reqBody)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "failed to build upstream request")
		return
	}
	outReq.Header = filterHeaders(r.Header)

	resp, err := h.client().Do(outReq)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("upstream request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	outHeader := w.Header()
	for k, values := range filterHeaders(resp.Header) {
		for _, v := range values {
			outHeader.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (h *Handler) client() *http.Client {
	if h.UpstreamHTTP != nil {
		return h.UpstreamHTTP
	}
	return http.DefaultClient
}

func joinUpstream(base string, reqURL *url.URL) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + reqURL.Path
	u.RawQuery = reqURL.RawQuery
	return u.String(), nil
}

func filterHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for k, values := range in {
		if strings.EqualFold(k, "Host") {
			continue
		}
		skip := false
		for _, hop := range hopByHopHeaders {
			if strings.EqualFold(k, hop) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out[k] = values
	}
	return out
}
