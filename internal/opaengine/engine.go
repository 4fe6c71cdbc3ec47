// Package opaengine hosts an in-process rego evaluator that backs
// `agentsafe decision-server`, the reference implementation of the
// remote-backend HTTP contract described in spec §4.9. It is adapted from
// the teacher's pkg/opa engine: same PrepareForEval / in-memory storage
// shape, repurposed data and query to this module's allow/reason/rule_id
// decision contract instead of LLM tool-access policy.
package opaengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
)

// Engine evaluates the base agentsafe.allow rego module against a
// caller-supplied {action, policy} input.
type Engine struct {
	mu    sync.RWMutex
	query *rego.PreparedEvalQuery
	store storage.Store
}

// Result is the decoded decision shape the decision-server HTTP endpoint
// returns as `result` (spec §4.9: the structured variant of the contract).
type Result struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
	RuleID string `json:"rule_id"`
}

// New prepares the base module against an empty in-memory store.
func New(ctx context.Context) (*Engine, error) {
	store := inmem.New()
	e := &Engine{store: store}
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) prepare(ctx context.Context) error {
	r := rego.New(
		rego.Query("data.agentsafe.decision"),
		rego.Store(e.store),
		rego.Module("agentsafe.rego", baseModule),
	)
	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("preparing rego module: %w", err)
	}
	e.query = &pq
	return nil
}

// Evaluate runs the prepared query against input, which must already be
// the decoded {"action": ..., "policy": ...} structure the HTTP handler
// received (spec §4.9's `{input:{action,policy}}` contract).
func (e *Engine) Evaluate(ctx context.Context, input map[string]any) (Result, error) {
	e.mu.RLock()
	pq := e.query
	e.mu.RUnlock()

	if pq == nil {
		return Result{}, fmt.Errorf("opaengine not initialized")
	}

	results, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Result{}, fmt.Errorf("rego evaluation failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{Allow: false, Reason: "no rego result", RuleID: "opa_no_result"}, nil
	}

	value, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Result{Allow: false, Reason: "unexpected rego result shape", RuleID: "opa_bad_result"}, nil
	}

	res := Result{RuleID: "opa_no_match"}
	if allow, ok := value["allow"].(bool); ok {
		res.Allow = allow
	}
	if reason, ok := value["reason"].(string); ok {
		res.Reason = reason
	}
	if ruleID, ok := value["rule_id"].(string); ok && ruleID != "" {
		res.RuleID = ruleID
	}
	return res, nil
}

// baseModule implements a rego-native rendition of the command and
// domain-allowlist decisions (spec §4.1), scoped to the subset expressible
// without the full arg-regex, URL-scheme, port and path-canonicalization
// semantics the Go
// evaluator carries — decision-server is a reference counterpart for the
// remote-backend contract, not a replacement for the Go evaluator (see
// DESIGN.md).
const baseModule = `
package agentsafe

default decision = {"allow": false, "reason": "no matching rule", "rule_id": "opa_default_deny"}

decision = result {
	input.action.type == "run"
	binary := basename(input.action.cmd[0])
	rule := input.policy.tools.commands[_]
	rule.binary == binary
	result := {"allow": true, "reason": sprintf("command allowed: %v", [binary]), "rule_id": object.get(rule, "rule_id", "opa_cmd_allow")}
}

decision = result {
	input.action.type == "fetch"
	input.policy.tools.network.mode == "allow_proxy"
	host := url_host(input.action.url)
	domain := input.policy.tools.network.domains[_]
	host_matches(host, domain)
	result := {"allow": true, "reason": sprintf("domain allowed: %v", [domain]), "rule_id": "opa_net_domain_allow"}
}

url_host(u) = host {
	parts := split(u, "://")
	segments := split(parts[1], "/")
	hostport := split(segments[0], ":")
	host := hostport[0]
}

host_matches(host, domain) {
	host == domain
}

host_matches(host, domain) {
	endswith(host, concat("", [".", domain]))
}

basename(path) = out {
	parts := split(path, "/")
	out := parts[count(parts) - 1]
}
`
