package policy

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentsafe/agentsafe/internal/shellwords"
)

// Decision is the value-typed outcome of every evaluator function. The
// evaluator is total: it always returns a Decision, never an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	RuleID  string `json:"rule_id"`
}

func allow(reason, ruleID string) Decision { return Decision{true, reason, ruleID} }
func block(reason, ruleID string) Decision { return Decision{false, reason, ruleID} }

// denySystemPaths is the unconditional floor applied before policy-specific
// deny entries. "~" and "$HOME" are both listed for defensive redundancy;
// both normalize to the current user's home directory, so the second adds
// no additional semantics.
var denySystemPaths = []string{"/etc", "/proc", "/sys", "/root", "~", "$HOME"}

func normalizePath(candidate, workspaceRoot string) string {
	home, _ := os.UserHomeDir()
	c := strings.ReplaceAll(candidate, "$HOME", home)
	c = strings.ReplaceAll(c, "~", home)
	if !filepath.IsAbs(c) {
		c = filepath.Join(workspaceRoot, c)
	}
	if resolved, err := filepath.EvalSymlinks(c); err == nil {
		return resolved
	}
	return filepath.Clean(c)
}

func isSelfOrDescendant(normalized, root string) bool {
	return normalized == root || strings.HasPrefix(normalized, root+string(filepath.Separator))
}

// EvaluateCommand implements the command-allowlist decision (spec §4.1).
func EvaluateCommand(p *Policy, cmd []string, workspaceRoot string) Decision {
	if len(cmd) == 0 {
		return block("empty command", "cmd_empty")
	}

	binary := filepath.Base(cmd[0])
	for _, rule := range p.Tools.Commands {
		if binary != rule.Binary {
			continue
		}
		if rule.ArgRegex != "" {
			rendered := shellwords.Join(cmd[1:])
			matched, err := regexp.MatchString(rule.ArgRegex, rendered)
			if err != nil || !matched {
				continue
			}
		}
		return allow("command allowed: "+binary, rule.RuleID)
	}
	return block("command blocked: "+binary+" not allowlisted", "cmd_not_allowlisted")
}

// EvaluatePath implements the path-allowlist decision (spec §4.1).
func EvaluatePath(p *Policy, candidate, workspaceRoot string) Decision {
	normalized := normalizePath(candidate, workspaceRoot)

	denies := append(append([]string{}, denySystemPaths...), p.Tools.Paths.Deny...)
	for _, denied := range denies {
		deniedPath := normalizePath(denied, workspaceRoot)
		if isSelfOrDescendant(normalized, deniedPath) {
			return block("path denied: "+candidate, "path_deny")
		}
	}

	allowRoots := p.Tools.Paths.Allow
	if len(allowRoots) == 0 {
		allowRoots = []string{workspaceRoot}
	}
	for _, root := range allowRoots {
		allowedPath := normalizePath(root, workspaceRoot)
		if isSelfOrDescendant(normalized, allowedPath) {
			return allow("path allowed: "+candidate, "path_allow")
		}
	}

	return block("path outside allowlist: "+candidate, "path_outside_allowlist")
}

// EvaluateURL implements the network-allowlist decision (spec §4.1).
func EvaluateURL(p *Policy, rawURL string) Decision {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return block("unsupported URL scheme", "net_bad_scheme")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return block("unsupported URL scheme", "net_bad_scheme")
	}
	host := parsed.Hostname()
	if host == "" {
		return block("URL missing host", "net_no_host")
	}

	if p.Tools.Network.Mode == "none" {
		return block("network disabled by policy", "net_disabled")
	}

	for _, allowed := range p.Tools.Network.Domains {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			port := effectivePort(parsed)
			if containsInt(p.Tools.Network.Ports, port) {
				return allow("domain allowed: "+host, "net_domain_allow")
			}
			return block("port not allowed for domain: "+host, "net_port_block")
		}
	}

	return block("domain not allowlisted: "+host, "net_domain_block")
}

func effectivePort(u *url.URL) int {
	if p := u.Port(); p != "" {
		var n int
		for _, r := range p {
			n = n*10 + int(r-'0')
		}
		return n
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
