package backend

import "github.com/agentsafe/agentsafe/internal/policy"

// Local delegates every decision to the in-process evaluator over a loaded
// policy (spec §4.9).
type Local struct {
	Policy *policy.Policy
}

// NewLocal builds a Local backend over p.
func NewLocal(p *policy.Policy) *Local {
	return &Local{Policy: p}
}

func (l *Local) EvaluateRun(cmd []string, workspaceRoot string) Decision {
	return policy.EvaluateCommand(l.Policy, cmd, workspaceRoot)
}

func (l *Local) EvaluatePath(candidate, workspaceRoot string) Decision {
	return policy.EvaluatePath(l.Policy, candidate, workspaceRoot)
}

func (l *Local) EvaluateFetch(rawURL string) Decision {
	return policy.EvaluateURL(l.Policy, rawURL)
}

func (l *Local) EnvAllowlist() []string {
	return l.Policy.Tools.EnvAllowlist
}

func (l *Local) NetworkMode() string {
	return l.Policy.Tools.Network.Mode
}
