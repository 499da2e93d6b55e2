// Package loam loads projects from a directory of markdown (or JSON/YAML)
// documents managed by Loam.
//
// Every document is a node, except documents with "kind: project", which
// are manifests carrying the project name, variables and explicit edges.
// Nodes join a project through the "project" key; nodes without one belong
// to DefaultProject.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"

	"github.com/aretw0/promptloom/pkg/domain"
)

// DefaultProject is the project of nodes that do not name one.
const DefaultProject = "default"

// Loader adapts a Loam repository to ports.ProjectLoader.
type Loader struct {
	Repo *loam.TypedRepository[DocumentMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DocumentMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string) (*Loader, error) {
	repo, err := loam.Init(path,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open loam repository %s: %w", path, err)
	}
	return New(loam.NewTypedRepository[DocumentMetadata](repo)), nil
}

type nodeDoc struct {
	path string
	node domain.ProjectNode
	meta DocumentMetadata
}

type projectDocs struct {
	manifest *DocumentMetadata
	nodes    []nodeDoc
}

// scan groups every document of the repository by project.
func (l *Loader) scan(ctx context.Context) (map[string]*projectDocs, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	projects := make(map[string]*projectDocs)
	get := func(id string) *projectDocs {
		p, ok := projects[id]
		if !ok {
			p = &projectDocs{}
			projects[id] = p
		}
		return p
	}

	for _, doc := range docs {
		meta := doc.Data
		rawID := meta.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if strings.EqualFold(meta.Kind, KindProject) {
			p := get(id)
			if p.manifest != nil {
				return nil, fmt.Errorf("collision detected: project '%s' has more than one manifest", id)
			}
			m := meta
			p.manifest = &m
			continue
		}

		projectID := meta.Project
		if projectID == "" {
			projectID = DefaultProject
		}
		var kind domain.NodeKind
		_ = kind.UnmarshalText([]byte(meta.Kind))

		get(projectID).nodes = append(get(projectID).nodes, nodeDoc{
			path: doc.ID,
			meta: meta,
			node: domain.ProjectNode{
				ID:      id,
				Label:   meta.Label,
				Kind:    kind,
				Content: strings.TrimSpace(doc.Content),
			},
		})
	}
	return projects, nil
}

// LoadProject assembles a project from its manifest and nodes.
// Nodes are ordered by their "order" key, then by ID.
func (l *Loader) LoadProject(ctx context.Context, id string) (domain.Project, error) {
	projects, err := l.scan(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	docs, ok := projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}

	sort.SliceStable(docs.nodes, func(i, j int) bool {
		a, b := docs.nodes[i], docs.nodes[j]
		if a.meta.Order != b.meta.Order {
			return a.meta.Order < b.meta.Order
		}
		return a.node.ID < b.node.ID
	})

	project := domain.Project{ID: id, Name: id}
	seen := make(map[string]string, len(docs.nodes))
	for _, nd := range docs.nodes {
		if existing, ok := seen[nd.node.ID]; ok {
			return domain.Project{}, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", nd.node.ID, existing, nd.path)
		}
		seen[nd.node.ID] = nd.path
		project.Nodes = append(project.Nodes, nd.node)
		if nd.meta.To != "" {
			project.Edges = append(project.Edges, domain.Edge{Source: nd.node.ID, Target: trimExtension(nd.meta.To)})
		}
	}

	if m := docs.manifest; m != nil {
		if m.Name != "" {
			project.Name = m.Name
		}
		for _, e := range m.Edges {
			project.Edges = append(project.Edges, domain.Edge{Source: trimExtension(e.From), Target: trimExtension(e.To)})
		}
		for _, v := range m.Variables {
			project.Variables = append(project.Variables, convertVariable(v))
		}
	}
	return project, nil
}

func convertVariable(v VariableMetadata) domain.ProjectVariable {
	id := v.ID
	if id == "" {
		id = v.Name
	}
	typ := domain.VariableStatic
	if strings.EqualFold(v.Type, string(domain.VariableDynamic)) || (v.Type == "" && v.Resolver != "") {
		typ = domain.VariableDynamic
	}
	return domain.ProjectVariable{
		ID:          id,
		Name:        v.Name,
		Value:       v.Value,
		Type:        typ,
		Resolver:    v.Resolver,
		Description: v.Description,
	}
}

// ListProjects returns the IDs of every project with a manifest or at least one node.
func (l *Loader) ListProjects(ctx context.Context) ([]string, error) {
	projects, err := l.scan(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(projects))
	for id := range projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
