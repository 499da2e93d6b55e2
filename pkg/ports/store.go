package ports

import (
	"context"

	"github.com/aretw0/promptloom/pkg/domain"
)

// ProjectStore persists projects as whole units.
type ProjectStore interface {
	// Save creates or replaces the project with p.ID.
	Save(ctx context.Context, p domain.Project) error

	// Load retrieves a project.
	// Returns domain.ErrProjectNotFound if the project does not exist.
	Load(ctx context.Context, id string) (domain.Project, error)

	// Delete removes a project. Deleting a missing project is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the summaries of all projects, most recently updated first.
	List(ctx context.Context) ([]domain.ProjectSummary, error)
}

// SessionStore persists chat sessions.
type SessionStore interface {
	// Save persists the session under s.ID.
	Save(ctx context.Context, s *domain.Session) error

	// Load retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

// RunStore persists replayed runs.
type RunStore interface {
	// Save persists a run record under rec.RunID.
	Save(ctx context.Context, rec domain.RunRecord) error

	// Load retrieves a run record.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (domain.RunRecord, error)

	// List returns the runs of a project that match the filter, newest first.
	List(ctx context.Context, projectID string, filter domain.RunFilter) ([]domain.RunSummary, error)
}

// DatasetStore persists replay datasets.
type DatasetStore interface {
	Save(ctx context.Context, d domain.Dataset) error

	// Load retrieves a dataset.
	// Returns domain.ErrDatasetNotFound if the dataset does not exist.
	Load(ctx context.Context, id string) (domain.Dataset, error)

	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// DataSourceStore persists registered data sources with sealed URLs.
type DataSourceStore interface {
	// Save creates or replaces the data source with d.ID.
	Save(ctx context.Context, d domain.DataSource) error

	// Load retrieves a data source.
	// Returns domain.ErrDataSourceNotFound if the data source does not exist.
	Load(ctx context.Context, id string) (domain.DataSource, error)

	// Delete removes a data source. Deleting a missing one is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored data source.
	List(ctx context.Context) ([]domain.DataSource, error)
}
