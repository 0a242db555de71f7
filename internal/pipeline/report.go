package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders a run as the report stored in run_reports.
func Markdown(r *Result) string {
	var b strings.Builder
	title := "Run"
	if r.DryRun {
		title = "Dry run"
	}
	fmt.Fprintf(&b, "# %s %s\n\n", title, r.RunID)
	fmt.Fprintf(&b, "- **Mode:** %s\n", r.Mode)
	fmt.Fprintf(&b, "- **Started:** %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration:** %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	status := "ok"
	if !r.OK() {
		status = "failed"
	}
	fmt.Fprintf(&b, "- **Status:** %s\n\n", status)

	b.WriteString("| Step | Result |\n|---|---|\n")
	for _, s := range r.Steps {
		cell := s.Summary
		if s.Err != nil {
			if cell != "" {
				cell += "; "
			}
			cell += "**error:** " + s.Err.Error()
		}
		fmt.Fprintf(&b, "| %s | %s |\n", s.Name, escapeCell(cell))
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
