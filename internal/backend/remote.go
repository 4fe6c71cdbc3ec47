package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentsafe/agentsafe/internal/policy"
)

// RemoteQueryTimeout is the default timeout for a remote-backend decision
// call (spec §5: "remote-backend calls 8 s").
const RemoteQueryTimeout = 8 * time.Second

// Remote speaks the {input:{action,policy}} -> {result} HTTP contract
// against an external decision service (spec §4.9). It never treats an
// absent or empty Policy as implicit allow: Policy is always marshaled
// into the request input exactly as configured.
type Remote struct {
	BaseURL      string
	DecisionPath string
	Policy       *policy.Policy
	HTTPClient   *http.Client
}

// NewRemote builds a Remote backend. An empty baseURL is valid input: every
// call will then BLOCK with remote_not_configured.
func NewRemote(baseURL, decisionPath string, p *policy.Policy) *Remote {
	return &Remote{
		BaseURL:      baseURL,
		DecisionPath: decisionPath,
		Policy:       p,
		HTTPClient:   &http.Client{Timeout: RemoteQueryTimeout},
	}
}

type remoteRequest struct {
	Input remoteInput `json:"input"`
}

type remoteInput struct {
	Action any             `json:"action"`
	Policy *policy.Policy  `json:"policy"`
}

type remoteResponse struct {
	Result json.RawMessage `json:"result"`
}

type remoteStructuredResult struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
	RuleID string `json:"rule_id"`
}

func (r *Remote) query(action any) Decision {
	if r.BaseURL == "" {
		return Decision{Allowed: false, Reason: "remote backend not configured", RuleID: "remote_not_configured"}
	}

	body, err := json.Marshal(remoteRequest{Input: remoteInput{Action: action, Policy: r.Policy}})
	if err != nil {
		return Decision{Allowed: false, Reason: fmt.Sprintf("encoding remote request: %v", err), RuleID: "remote_query_failed"}
	}

	url := fmt.Sprintf("%s/v1/data/%s", r.BaseURL, r.DecisionPath)
	ctx, cancel := context.WithTimeout(context.Background(), RemoteQueryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Decision{Allowed: false, Reason: fmt.Sprintf("building remote request: %v", err), RuleID: "remote_query_failed"}
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: RemoteQueryTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Decision{Allowed: false, Reason: fmt.Sprintf("remote query failed: %v", err), RuleID: "remote_query_failed"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{Allowed: false, Reason: fmt.Sprintf("remote backend returned status %d", resp.StatusCode), RuleID: "remote_query_failed"}
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Decision{Allowed: false, Reason: "remote backend returned invalid response", RuleID: "remote_bad_result"}
	}

	return parseRemoteResult(decoded.Result)
}

func parseRemoteResult(raw json.RawMessage) Decision {
	if len(raw) == 0 {
		return Decision{Allowed: false, Reason: "remote backend returned no result", RuleID: "remote_bad_result"}
	}

	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return Decision{Allowed: asBool, Reason: "boolean decision", RuleID: "remote_boolean"}
	}

	var structured remoteStructuredResult
	if err := json.Unmarshal(raw, &structured); err == nil {
		if structured.RuleID == "" {
			structured.RuleID = "remote_decision"
		}
		return Decision{Allowed: structured.Allow, Reason: structured.Reason, RuleID: structured.RuleID}
	}

	return Decision{Allowed: false, Reason: "remote backend returned unparseable result", RuleID: "remote_bad_result"}
}

type runAction struct {
	Type          string   `json:"type"`
	Cmd           []string `json:"cmd"`
	WorkspaceRoot string   `json:"workspace_root"`
}

type pathAction struct {
	Type          string `json:"type"`
	Candidate     string `json:"candidate"`
	WorkspaceRoot string `json:"workspace_root"`
}

type fetchAction struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (r *Remote) EvaluateRun(cmd []string, workspaceRoot string) Decision {
	return r.query(runAction{Type: "run", Cmd: cmd, WorkspaceRoot: workspaceRoot})
}

func (r *Remote) EvaluatePath(candidate, workspaceRoot string) Decision {
	return r.query(pathAction{Type: "path", Candidate: candidate, WorkspaceRoot: workspaceRoot})
}

func (r *Remote) EvaluateFetch(url string) Decision {
	return r.query(fetchAction{Type: "fetch", URL: url})
}

func (r *Remote) EnvAllowlist() []string {
	if r.Policy == nil {
		return nil
	}
	return r.Policy.Tools.EnvAllowlist
}

func (r *Remote) NetworkMode() string {
	if r.Policy == nil {
		return "none"
	}
	return r.Policy.Tools.Network.Mode
}
