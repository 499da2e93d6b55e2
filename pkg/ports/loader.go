package ports

import (
	"context"

	"github.com/aretw0/promptloom/pkg/domain"
)

// ProjectLoader reads projects from a read-only source, such as a directory
// of markdown node files.
type ProjectLoader interface {
	// LoadProject assembles the project with the given ID.
	LoadProject(ctx context.Context, id string) (domain.Project, error)

	// ListProjects returns the IDs of the projects the source can assemble.
	ListProjects(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that receives the ID of each changed document.
	Watch(ctx context.Context) (<-chan string, error)
}
