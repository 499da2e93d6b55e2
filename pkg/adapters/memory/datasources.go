package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/promptloom/pkg/domain"
)

// DataSourceStore implements ports.DataSourceStore in memory.
type DataSourceStore struct {
	mu   sync.RWMutex
	data map[string]domain.DataSource
}

// NewDataSourceStore creates an empty data source store.
func NewDataSourceStore() *DataSourceStore {
	return &DataSourceStore{data: make(map[string]domain.DataSource)}
}

// Save stores the data source.
func (s *DataSourceStore) Save(ctx context.Context, d domain.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[d.ID] = d
	return nil
}

// Load returns the data source with id.
func (s *DataSourceStore) Load(ctx context.Context, id string) (domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[id]
	if !ok {
		return domain.DataSource{}, domain.ErrDataSourceNotFound
	}
	return d, nil
}

// Delete removes the data source.
func (s *DataSourceStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored data sources ordered by ID.
func (s *DataSourceStore) List(ctx context.Context) ([]domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DataSource, 0, len(s.data))
	for _, d := range s.data {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
