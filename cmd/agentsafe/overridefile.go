package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// overrideFileName is the optional, explicitly opt-in approval channel
// consulted by the inline CLI alongside the grant store (spec §9's open
// question on the source's ".agentsafe_approvals" file, resolved in
// DESIGN.md: supported as an additive override, one glob scope pattern
// per line, comments and blanks ignored).
const overrideFileName = ".agentsafe_approvals"

// approvedByOverrideFile reports whether scope matches any pattern listed
// in <workspaceRoot>/.agentsafe_approvals. A missing file is not an error;
// it simply means no override is in effect.
func approvedByOverrideFile(workspaceRoot, scope string) bool {
	f, err := os.Open(filepath.Join(workspaceRoot, overrideFileName))
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := glob.Compile(line)
		if err != nil {
			continue
		}
		if g.Match(scope) {
			return true
		}
	}
	return false
}
