package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/template"
)

// NodeResult is the outcome of rendering one node.
type NodeResult struct {
	Rendered string
	Missing  []string
	Messages []domain.TraceMessage
}

// renderNode substitutes resolved placeholders in node.Content.
// Resolved values are inserted verbatim and never scanned again.
// Unresolved placeholders are kept as written. It never fails.
func renderNode(g template.Grammar, node domain.ProjectNode, store *VariableStore) NodeResult {
	var (
		out      strings.Builder
		missing  []string
		messages []domain.TraceMessage
	)
	seen := make(map[string]struct{})
	out.Grow(len(node.Content))

	for _, tok := range g.Scan(node.Content) {
		switch tok.Type {
		case template.TokenPlaceholder:
			if value, ok := store.Resolve(tok.Name); ok {
				out.WriteString(value)
				continue
			}
			out.WriteString(tok.Raw)
			if _, dup := seen[tok.Name]; !dup {
				seen[tok.Name] = struct{}{}
				missing = append(missing, tok.Name)
			}
		case template.TokenMalformed:
			out.WriteString(tok.Raw)
			messages = append(messages, domain.TraceMessage{
				Severity: domain.SeverityError,
				Code:     domain.CodeTemplateSyntaxError,
				Message:  fmt.Sprintf("unterminated placeholder in node %q at offset %d", node.ID, tok.Offset),
				Details: map[string]any{
					"nodeId": node.ID,
					"offset": tok.Offset,
				},
			})
		default:
			out.WriteString(tok.Raw)
		}
	}

	for _, name := range missing {
		messages = append(messages, missingVariableMessage(node.ID, name))
	}

	if missing == nil {
		missing = []string{}
	}
	if messages == nil {
		messages = []domain.TraceMessage{}
	}

	return NodeResult{Rendered: out.String(), Missing: missing, Messages: messages}
}

func missingVariableMessage(nodeID, name string) domain.TraceMessage {
	return domain.TraceMessage{
		Severity: domain.SeverityWarn,
		Code:     domain.CodeMissingVariable,
		Message:  fmt.Sprintf("Missing variable: %s", name),
		Details: map[string]any{
			"variable": name,
			"nodeId":   nodeID,
		},
	}
}
