package compiler

import (
	"fmt"
	"strings"

	"github.com/aretw0/promptloom/pkg/domain"
)

// Issue is one problem found by Validate.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

// ValidationError collects every issue of a project.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Issues), strings.Join(parts, "\n- "))
}

// Validate checks node IDs are present and unique, kinds are known and
// variables are named. It returns a *ValidationError listing every issue.
// Duplicate variable names are allowed; rendering reports them as warnings.
func Validate(p domain.Project) error {
	var issues []Issue
	add := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]int, len(p.Nodes))
	for i, n := range p.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if strings.TrimSpace(n.ID) == "" {
			add(path, "missing id")
		} else if first, ok := seen[n.ID]; ok {
			add(path, "duplicate node id %q (first defined at nodes[%d])", n.ID, first)
		} else {
			seen[n.ID] = i
		}
		if !n.Kind.Valid() {
			add(path, "unknown kind %q", n.Kind)
		}
	}

	for i, v := range p.Variables {
		path := fmt.Sprintf("variables[%d]", i)
		if strings.TrimSpace(v.Name) == "" {
			add(path, "missing name")
		}
		switch v.Type {
		case "", domain.VariableStatic, domain.VariableDynamic:
		default:
			add(path, "unknown type %q", v.Type)
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}
