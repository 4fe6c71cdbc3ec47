package audit

import (
	"fmt"
	"io"
	"sort"
)

// RenderMarkdown groups events by decision and writes a markdown table for
// each group, suitable for pasting into an incident writeup (spec §12,
// supplemented feature grounded on the original implementation's
// audit/render.py).
func RenderMarkdown(w io.Writer, events []Event) error {
	groups := map[string][]Event{}
	for _, e := range events {
		groups[e.Decision] = append(groups[e.Decision], e)
	}

	decisions := make([]string, 0, len(groups))
	for d := range groups {
		decisions = append(decisions, d)
	}
	sort.Strings(decisions)

	for _, decision := range decisions {
		if _, err := fmt.Fprintf(w, "## %s (%d)\n\n", decision, len(groups[decision])); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, "| timestamp | actor | tool | rule_id | reason |"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, "|---|---|---|---|---|"); err != nil {
			return err
		}
		for _, e := range groups[decision] {
			if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
				e.Timestamp, e.Actor, e.Tool, e.RuleID, escapePipe(e.Reason)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func escapePipe(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '|' {
			out = append(out, '\\', '|')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
