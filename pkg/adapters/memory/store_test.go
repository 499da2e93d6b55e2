package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewStore())
}

func TestMemoryProjectStore_Contract(t *testing.T) {
	ports.RunProjectStoreContract(t, memory.NewProjectStore())
}

func TestMemoryRunStore_Contract(t *testing.T) {
	ports.RunRunStoreContract(t, memory.NewRunStore())
}

func TestMemoryDatasetStore_Contract(t *testing.T) {
	ports.RunDatasetStoreContract(t, memory.NewDatasetStore())
}

func TestMemoryDataSourceStore_Contract(t *testing.T) {
	ports.RunDataSourceStoreContract(t, memory.NewDataSourceStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := &domain.Session{ID: "s1", Messages: []domain.SessionMessage{{Role: "user", Content: "hi"}}}
	require.NoError(t, store.Save(ctx, s))

	s.Messages[0].Content = "mutated"
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", loaded.Messages[0].Content)
}

func TestLoader(t *testing.T) {
	loader, err := memory.NewLoader(
		domain.Project{ID: "b", Name: "B"},
		domain.Project{ID: "a", Name: "A"},
	)
	require.NoError(t, err)

	ids, err := loader.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	p, err := loader.LoadProject(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "A", p.Name)

	_, err = loader.LoadProject(context.Background(), "zzz")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	_, err = memory.NewLoader(domain.Project{})
	assert.Error(t, err)
}
