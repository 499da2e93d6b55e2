package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/adapters/loam"
	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

// OpenSource returns a project loader for path. A directory is read as a
// Loam repository of node documents; a file is compiled as a single project
// document (JSON, YAML or flow export).
func OpenSource(path string) (ports.ProjectLoader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	if info.IsDir() {
		return loam.Open(path)
	}

	p, err := compiler.CompileFile(path)
	if err != nil {
		return nil, err
	}
	return memory.NewLoader(p)
}

// LoadProject opens path and loads one project from it, ordered by its
// edges. An empty id picks the only project a file holds, or
// loam.DefaultProject for directories holding several.
func LoadProject(ctx context.Context, path, id string) (domain.Project, error) {
	src, err := OpenSource(path)
	if err != nil {
		return domain.Project{}, err
	}
	if id == "" {
		ids, err := src.ListProjects(ctx)
		if err != nil {
			return domain.Project{}, err
		}
		switch len(ids) {
		case 0:
			return domain.Project{}, fmt.Errorf("%s: %w", path, domain.ErrProjectNotFound)
		case 1:
			id = ids[0]
		default:
			id = loam.DefaultProject
		}
	}

	p, err := src.LoadProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	return compiler.Order(p), nil
}

// storeLoader serves a ProjectStore through the read-only loader port.
type storeLoader struct {
	store ports.ProjectStore
}

// StoreLoader adapts store to ports.ProjectLoader.
func StoreLoader(store ports.ProjectStore) ports.ProjectLoader {
	return storeLoader{store: store}
}

func (l storeLoader) LoadProject(ctx context.Context, id string) (domain.Project, error) {
	return l.store.Load(ctx, id)
}

func (l storeLoader) ListProjects(ctx context.Context) ([]string, error) {
	list, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
