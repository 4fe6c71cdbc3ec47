package policy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadError wraps a policy load/parse failure. Decisions never surface this
// type; it only escapes from Load itself.
type LoadError struct {
	msg string
}

func (e *LoadError) Error() string { return e.msg }

func loadErrorf(format string, args ...any) error {
	return &LoadError{msg: fmt.Sprintf(format, args...)}
}

// rawDocument captures the top level loosely: unknown top-level keys are
// tolerated per the external interface contract, but the "tools" subtree is
// re-decoded strictly below.
type rawDocument struct {
	PolicyID        string    `yaml:"policy_id"`
	DefaultDecision string    `yaml:"default_decision"`
	Tools           yaml.Node `yaml:"tools"`
}

// Load reads and validates a policy document from path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErrorf("policy file not found: %s", path)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, loadErrorf("malformed policy yaml: %v", err)
	}

	policyID := doc.PolicyID
	if policyID == "" {
		base := filepath.Base(path)
		policyID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	defaultDecision := doc.DefaultDecision
	if defaultDecision == "" {
		defaultDecision = "deny"
	}
	if defaultDecision != "deny" {
		return nil, loadErrorf("only default_decision=deny is supported")
	}

	var tools ToolPolicy
	if doc.Tools.Kind != 0 {
		b, err := yaml.Marshal(&doc.Tools)
		if err != nil {
			return nil, loadErrorf("re-encoding tools section: %v", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&tools); err != nil {
			return nil, loadErrorf("tools: unknown or invalid field: %v", err)
		}
	}

	if len(tools.Network.Ports) == 0 {
		tools.Network.Ports = []int{443}
	}
	if tools.Network.Mode == "" {
		tools.Network.Mode = "none"
	}
	for i, rule := range tools.Commands {
		if rule.RuleID == "" {
			tools.Commands[i].RuleID = fmt.Sprintf("cmd_%d", i)
		}
	}
	for i, rule := range tools.RateLimits {
		if rule.Capacity == 0 {
			tools.RateLimits[i].Capacity = 10
		}
		if rule.RefillPerSec == 0 {
			tools.RateLimits[i].RefillPerSec = 1.0
		}
	}

	return &Policy{
		PolicyID:        policyID,
		DefaultDecision: defaultDecision,
		Tools:           tools,
	}, nil
}
