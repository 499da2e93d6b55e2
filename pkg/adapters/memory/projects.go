package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/promptloom/pkg/domain"
)

// ProjectStore implements ports.ProjectStore in memory.
type ProjectStore struct {
	mu   sync.RWMutex
	data map[string]domain.Project
}

// NewProjectStore creates an empty project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{data: make(map[string]domain.Project)}
}

// Save stores a deep copy of p.
func (s *ProjectStore) Save(ctx context.Context, p domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p.ID] = p.Clone()
	return nil
}

// Load returns a deep copy of the stored project.
func (s *ProjectStore) Load(ctx context.Context, id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return p.Clone(), nil
}

// Delete removes the project.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns project summaries, most recently updated first.
func (s *ProjectStore) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProjectSummary, 0, len(s.data))
	for _, p := range s.data {
		out = append(out, p.Summary())
	}
	SortProjectSummaries(out)
	return out, nil
}

// SortProjectSummaries orders summaries newest first, then by ID.
func SortProjectSummaries(list []domain.ProjectSummary) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
