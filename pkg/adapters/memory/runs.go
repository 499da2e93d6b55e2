package memory

import (
	"context"
	"sync"

	"github.com/aretw0/promptloom/pkg/domain"
)

// RunStore implements ports.RunStore in memory.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]domain.RunRecord
}

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{data: make(map[string]domain.RunRecord)}
}

// Save stores the record.
func (s *RunStore) Save(ctx context.Context, rec domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.RunID] = rec
	return nil
}

// Load returns the record with runID.
func (s *RunStore) Load(ctx context.Context, runID string) (domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[runID]
	if !ok {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}
	return rec, nil
}

// List returns the project's runs that match filter, newest first.
func (s *RunStore) List(ctx context.Context, projectID string, filter domain.RunFilter) ([]domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.RunRecord
	for _, rec := range s.data {
		if rec.ProjectID == projectID {
			records = append(records, rec)
		}
	}
	return domain.SelectRuns(records, filter), nil
}

// DatasetStore implements ports.DatasetStore in memory.
type DatasetStore struct {
	mu   sync.RWMutex
	data map[string]domain.Dataset
}

// NewDatasetStore creates an empty dataset store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{data: make(map[string]domain.Dataset)}
}

// Save stores the dataset.
func (s *DatasetStore) Save(ctx context.Context, d domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Rows = append(d.Rows[:0:0], d.Rows...)
	s.data[d.ID] = d
	return nil
}

// Load returns the dataset with id.
func (s *DatasetStore) Load(ctx context.Context, id string) (domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[id]
	if !ok {
		return domain.Dataset{}, domain.ErrDatasetNotFound
	}
	return d, nil
}

// Delete removes the dataset.
func (s *DatasetStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored dataset IDs.
func (s *DatasetStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
