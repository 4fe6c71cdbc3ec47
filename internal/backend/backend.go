// Package backend implements the pluggable policy-decision contract (spec
// §4.9): a Local backend delegating to the in-process evaluator, and a
// Remote backend speaking the {input:{action,policy}} → {result} HTTP
// contract against an external decision service (e.g. this module's own
// decision-server, backed by internal/opaengine).
package backend

import "github.com/agentsafe/agentsafe/internal/policy"

// Decision re-exports policy.Decision so callers only need one import.
type Decision = policy.Decision

// Backend is the fixed operation set every decision source must implement.
type Backend interface {
	EvaluateRun(cmd []string, workspaceRoot string) Decision
	EvaluatePath(candidate, workspaceRoot string) Decision
	EvaluateFetch(url string) Decision
	EnvAllowlist() []string
	NetworkMode() string
}
