package domain

import "time"

// VariableType distinguishes literal values from values produced by a resolver.
type VariableType string

const (
	VariableStatic  VariableType = "static"
	VariableDynamic VariableType = "dynamic"
)

// ProjectVariable is a named value available to every node template.
type ProjectVariable struct {
	ID    string       `json:"id" yaml:"id"`
	Name  string       `json:"name" yaml:"name"`
	Value string       `json:"value" yaml:"value"`
	Type  VariableType `json:"type,omitempty" yaml:"type,omitempty"`

	// Resolver is a URL such as "chat://<session>" or "sqlite://<path>".
	// Only consulted for dynamic variables.
	Resolver    string `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsDynamic reports whether the variable must go through a resolver.
func (v ProjectVariable) IsDynamic() bool {
	return v.Type == VariableDynamic
}

// Edge connects two nodes in the flow editor. Edges only affect ordering.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Project is the unit the renderer consumes.
// It is owned by the persistence layer and never mutated by rendering.
type Project struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Nodes     []ProjectNode     `json:"nodes" yaml:"nodes"`
	Edges     []Edge            `json:"edges,omitempty" yaml:"edges,omitempty"`
	Variables []ProjectVariable `json:"variables" yaml:"variables"`
	UpdatedAt time.Time         `json:"updatedAt" yaml:"updated_at,omitempty"`
}

// Clone returns a deep copy, so callers can hand snapshots around freely.
func (p Project) Clone() Project {
	out := p
	out.Nodes = append([]ProjectNode(nil), p.Nodes...)
	out.Edges = append([]Edge(nil), p.Edges...)
	out.Variables = append([]ProjectVariable(nil), p.Variables...)
	return out
}

// WithVariables returns a copy of p whose variables are replaced by vars.
func (p Project) WithVariables(vars []ProjectVariable) Project {
	out := p.Clone()
	out.Variables = append([]ProjectVariable(nil), vars...)
	return out
}

// ProjectSummary is the listing form of a project.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the listing form of p.
func (p Project) Summary() ProjectSummary {
	return ProjectSummary{ID: p.ID, Name: p.Name, UpdatedAt: p.UpdatedAt}
}
