package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/promptloom/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background; width 0 keeps glamour's default.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(),
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// RunMarkdown lays a run out as markdown: one section per rendered node,
// followed by the run diagnostics.
func RunMarkdown(run domain.TraceRun) string {
	var sb strings.Builder
	for _, seg := range run.Segments {
		title := seg.Label
		if title == "" {
			title = seg.NodeID
		}
		fmt.Fprintf(&sb, "## %s\n\n*%s*", title, seg.Kind)
		if len(seg.MissingVariables) > 0 {
			fmt.Fprintf(&sb, " · missing: `%s`", strings.Join(seg.MissingVariables, "`, `"))
		}
		sb.WriteString("\n\n")
		sb.WriteString(fence(seg.Rendered))
		sb.WriteString("\n")
	}

	if len(run.Messages) > 0 {
		sb.WriteString("## Diagnostics\n\n")
		for _, m := range run.Messages {
			fmt.Fprintf(&sb, "- **%s** `%s` %s\n", m.Severity, m.Code, m.Message)
		}
	}
	return sb.String()
}

// fence wraps text in a code fence longer than any backtick run inside it.
func fence(text string) string {
	ticks := 3
	run := 0
	for _, r := range text {
		if r == '`' {
			run++
			ticks = max(ticks, run+1)
		} else {
			run = 0
		}
	}
	marker := strings.Repeat("`", ticks)
	return marker + "text\n" + text + "\n" + marker + "\n"
}
