package dsl

import (
	"fmt"

	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/domain"
)

// Builder manages the project construction. Nodes keep the order in which
// they were first added; edges reorder them at Build time.
type Builder struct {
	project domain.Project
	order   []*NodeBuilder
	nodes   map[string]*NodeBuilder
}

// New creates a new project builder.
func New(id string) *Builder {
	return &Builder{
		project: domain.Project{ID: id, Name: id},
		nodes:   make(map[string]*NodeBuilder),
	}
}

// Name sets the display name of the project.
func (b *Builder) Name(name string) *Builder {
	b.project.Name = name
	return b
}

// Add creates a new node in the project.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.ProjectNode{
			ID:   id,
			Kind: domain.KindText,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, nb)
	return nb
}

// Var declares a static variable.
func (b *Builder) Var(name, value string) *Builder {
	b.project.Variables = append(b.project.Variables, domain.ProjectVariable{
		ID:    name,
		Name:  name,
		Value: value,
		Type:  domain.VariableStatic,
	})
	return b
}

// Dynamic declares a variable filled by the resolver at url (for example
// "chat://<session>" or "sqlite://<path>?query=..."). value is handed to
// the resolver; chat resolvers read it as a message count.
func (b *Builder) Dynamic(name, url, value string) *Builder {
	b.project.Variables = append(b.project.Variables, domain.ProjectVariable{
		ID:       name,
		Name:     name,
		Value:    value,
		Type:     domain.VariableDynamic,
		Resolver: url,
	})
	return b
}

// Edge adds an ordering constraint: source renders before target.
func (b *Builder) Edge(source, target string) *Builder {
	b.project.Edges = append(b.project.Edges, domain.Edge{Source: source, Target: target})
	return b
}

// Build validates the project and orders its nodes by the edges.
func (b *Builder) Build() (domain.Project, error) {
	p := b.project.Clone()
	p.Nodes = make([]domain.ProjectNode, 0, len(b.order))
	for _, nb := range b.order {
		p.Nodes = append(p.Nodes, nb.node)
	}

	if err := compiler.Validate(p); err != nil {
		return domain.Project{}, fmt.Errorf("invalid project %s: %w", p.ID, err)
	}
	return compiler.Order(p), nil
}

// Loader builds the project and serves it through a memory loader.
func (b *Builder) Loader() (*memory.Loader, error) {
	p, err := b.Build()
	if err != nil {
		return nil, err
	}

	loader, err := memory.NewLoader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}

	return loader, nil
}
