// Package file persists projects, sessions, runs, datasets and data sources as JSON files
// under a data directory. Writes are atomic (temp file, fsync, rename).
package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/domain"
)

// DefaultDataDir is used when New receives an empty base path.
var DefaultDataDir = ".promptloom"

// Store groups the file-backed stores that share one data directory.
type Store struct {
	BasePath string

	Projects *ProjectStore
	Sessions *SessionStore
	Runs     *RunStore
	Datasets *DatasetStore

	DataSources *DataSourceStore
}

// New creates the stores rooted at basePath.
// If basePath is empty, it defaults to ".promptloom".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDataDir
	}
	return &Store{
		BasePath: basePath,
		Projects: &ProjectStore{dir: jsonDir{path: filepath.Join(basePath, "projects")}},
		Sessions: &SessionStore{dir: jsonDir{path: filepath.Join(basePath, "sessions")}},
		Runs:     &RunStore{dir: jsonDir{path: filepath.Join(basePath, "runs")}},
		Datasets: &DatasetStore{dir: jsonDir{path: filepath.Join(basePath, "datasets")}},

		DataSources: &DataSourceStore{dir: jsonDir{path: filepath.Join(basePath, "datasources")}},
	}
}

// ProjectStore implements ports.ProjectStore.
type ProjectStore struct {
	dir jsonDir
}

// Save writes the project file atomically.
func (s *ProjectStore) Save(ctx context.Context, p domain.Project) error {
	return s.dir.write(p.ID, p)
}

// Load reads the project file.
func (s *ProjectStore) Load(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	if err := s.dir.read(id, &p); err != nil {
		if errors.Is(err, errNotExist) {
			return domain.Project{}, domain.ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	return p, nil
}

// Delete removes the project file.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	return s.dir.remove(id)
}

// List reads every project and returns their summaries, newest first.
func (s *ProjectStore) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	ids, err := s.dir.ids()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectSummary, 0, len(ids))
	for _, id := range ids {
		p, err := s.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrProjectNotFound) {
				continue // removed between ReadDir and Load
			}
			return nil, err
		}
		out = append(out, p.Summary())
	}
	memory.SortProjectSummaries(out)
	return out, nil
}

// SessionStore implements ports.SessionStore.
type SessionStore struct {
	dir jsonDir
}

// Save writes the session file atomically.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return fmt.Errorf("session cannot be nil")
	}
	return s.dir.write(sess.ID, sess)
}

// Load reads the session file.
func (s *SessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	if err := s.dir.read(id, &sess); err != nil {
		if errors.Is(err, errNotExist) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Delete removes the session file.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.dir.remove(id)
}

// List returns all stored session IDs.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	return s.dir.ids()
}

// RunStore implements ports.RunStore.
// Listing reads every run file; use the redis or badger adapters for large histories.
type RunStore struct {
	dir jsonDir
}

// Save writes the run record atomically.
func (s *RunStore) Save(ctx context.Context, rec domain.RunRecord) error {
	return s.dir.write(rec.RunID, rec)
}

// Load reads the run record.
func (s *RunStore) Load(ctx context.Context, runID string) (domain.RunRecord, error) {
	var rec domain.RunRecord
	if err := s.dir.read(runID, &rec); err != nil {
		if errors.Is(err, errNotExist) {
			return domain.RunRecord{}, domain.ErrRunNotFound
		}
		return domain.RunRecord{}, err
	}
	return rec, nil
}

// List returns the project's runs matching filter, newest first.
func (s *RunStore) List(ctx context.Context, projectID string, filter domain.RunFilter) ([]domain.RunSummary, error) {
	ids, err := s.dir.ids()
	if err != nil {
		return nil, err
	}
	var records []domain.RunRecord
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRunNotFound) {
				continue
			}
			return nil, err
		}
		if rec.ProjectID == projectID {
			records = append(records, rec)
		}
	}
	return domain.SelectRuns(records, filter), nil
}

// DatasetStore implements ports.DatasetStore.
type DatasetStore struct {
	dir jsonDir
}

// Save writes the dataset file atomically.
func (s *DatasetStore) Save(ctx context.Context, d domain.Dataset) error {
	return s.dir.write(d.ID, d)
}

// Load reads the dataset file.
func (s *DatasetStore) Load(ctx context.Context, id string) (domain.Dataset, error) {
	var d domain.Dataset
	if err := s.dir.read(id, &d); err != nil {
		if errors.Is(err, errNotExist) {
			return domain.Dataset{}, domain.ErrDatasetNotFound
		}
		return domain.Dataset{}, err
	}
	return d, nil
}

// Delete removes the dataset file.
func (s *DatasetStore) Delete(ctx context.Context, id string) error {
	return s.dir.remove(id)
}

// List returns all stored dataset IDs.
func (s *DatasetStore) List(ctx context.Context) ([]string, error) {
	return s.dir.ids()
}

// DataSourceStore implements ports.DataSourceStore.
type DataSourceStore struct {
	dir jsonDir
}

// Save writes the data source file atomically.
func (s *DataSourceStore) Save(ctx context.Context, d domain.DataSource) error {
	return s.dir.write(d.ID, d)
}

// Load reads the data source file.
func (s *DataSourceStore) Load(ctx context.Context, id string) (domain.DataSource, error) {
	var d domain.DataSource
	if err := s.dir.read(id, &d); err != nil {
		if errors.Is(err, errNotExist) {
			return domain.DataSource{}, domain.ErrDataSourceNotFound
		}
		return domain.DataSource{}, err
	}
	return d, nil
}

// Delete removes the data source file.
func (s *DataSourceStore) Delete(ctx context.Context, id string) error {
	return s.dir.remove(id)
}

// List reads every data source file.
func (s *DataSourceStore) List(ctx context.Context) ([]domain.DataSource, error) {
	ids, err := s.dir.ids()
	if err != nil {
		return nil, err
	}
	out := make([]domain.DataSource, 0, len(ids))
	for _, id := range ids {
		d, err := s.Load(ctx, id)
		if errors.Is(err, domain.ErrDataSourceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
