package domain

import (
	"strings"
	"time"
)

// Severity grades a TraceMessage.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Message codes emitted by the renderer and its collaborators.
const (
	CodeTemplateSyntaxError   = "template_syntax_error"
	CodeMissingVariable       = "missing_variable"
	CodeDuplicateVariableName = "duplicate_variable_name"

	CodeVariableStatic        = "variable_static"
	CodeVariableResolved      = "variable_resolved"
	CodeVariableResolveFailed = "variable_resolve_failed"
	CodeMessageCapApplied     = "message_cap_applied"
)

// TraceMessage is a single diagnostic attached to a segment or a run.
type TraceMessage struct {
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// OutputStyle controls how segments are assembled into the transcript.
type OutputStyle string

const (
	StylePlain   OutputStyle = "plain"
	StyleLabeled OutputStyle = "labeled"
)

// ParseOutputStyle accepts "plain" and "labeled" in any case; empty means plain.
func ParseOutputStyle(s string) (OutputStyle, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StylePlain):
		return StylePlain, true
	case string(StyleLabeled):
		return StyleLabeled, true
	}
	return "", false
}

// NormalizeOutputStyle maps anything but StyleLabeled to StylePlain.
func NormalizeOutputStyle(s OutputStyle) OutputStyle {
	if style, ok := ParseOutputStyle(string(s)); ok {
		return style
	}
	return StylePlain
}

// TraceSegment is the rendered output and diagnostics of one node.
type TraceSegment struct {
	NodeID           string         `json:"nodeId"`
	Label            string         `json:"label"`
	Kind             NodeKind       `json:"kind"`
	Template         string         `json:"template"`
	Rendered         string         `json:"rendered"`
	MissingVariables []string       `json:"missingVariables"`
	Messages         []TraceMessage `json:"messages"`
}

// TraceRun is the composed transcript plus aggregated diagnostics.
// A render always produces a fresh value; nothing mutates it afterwards.
type TraceRun struct {
	RunID       string         `json:"runId"`
	CreatedAt   time.Time      `json:"createdAt"`
	OutputStyle OutputStyle    `json:"outputStyle"`
	Text        string         `json:"text"`
	Segments    []TraceSegment `json:"segments"`
	Messages    []TraceMessage `json:"messages"`
}

// MissingVariables returns the distinct missing names across all segments,
// in first-occurrence order.
func (r TraceRun) MissingVariables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range r.Segments {
		for _, name := range seg.MissingVariables {
			if strings.TrimSpace(name) == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// CountBySeverity tallies the run-level messages.
func (r TraceRun) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, m := range r.Messages {
		counts[m.Severity]++
	}
	return counts
}

// HasErrors reports whether any run-level message is an error.
func (r TraceRun) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}
