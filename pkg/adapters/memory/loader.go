package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/promptloom/pkg/domain"
)

// Loader implements ports.ProjectLoader over a fixed set of projects.
// It is mostly useful in tests and examples.
type Loader struct {
	projects map[string]domain.Project
}

// NewLoader creates a Loader serving the given projects by ID.
func NewLoader(projects ...domain.Project) (*Loader, error) {
	l := &Loader{projects: make(map[string]domain.Project, len(projects))}
	for _, p := range projects {
		if p.ID == "" {
			return nil, fmt.Errorf("project missing ID")
		}
		l.projects[p.ID] = p.Clone()
	}
	return l, nil
}

// LoadProject returns a copy of the project.
func (l *Loader) LoadProject(ctx context.Context, id string) (domain.Project, error) {
	p, ok := l.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
	}
	return p.Clone(), nil
}

// ListProjects returns the known IDs in lexical order.
func (l *Loader) ListProjects(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(l.projects))
	for id := range l.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
