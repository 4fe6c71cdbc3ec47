package grants

import (
	"fmt"
	"strings"
)

// RenderScopeTemplate renders the approval-UX scope helper templates (spec
// §4.4). template selects the rendering rule, value is the operator-supplied
// parameter, and tool is only consulted by "tool-prefix".
func RenderScopeTemplate(template, value, tool string) (string, error) {
	switch template {
	case "run-binary":
		return value + " *", nil
	case "run-command":
		return value, nil
	case "tool-prefix":
		return strings.TrimRight(tool+" "+value+"*", " "), nil
	case "http-domain":
		return "http.fetch https://" + strings.ToLower(value) + "*", nil
	default:
		return "", fmt.Errorf("unknown template: %s", template)
	}
}
