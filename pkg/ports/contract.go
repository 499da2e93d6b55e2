package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/pkg/domain"
)

func contractSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}

// RunProjectStoreContract verifies that a ProjectStore implementation
// adheres to the defined interface contract.
func RunProjectStoreContract(t *testing.T, store ProjectStore) {
	ctx := context.Background()
	id := "contract-project-" + contractSuffix()
	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	project := domain.Project{
		ID:   id,
		Name: "Contract",
		Nodes: []domain.ProjectNode{
			{ID: "n1", Label: "Persona", Kind: domain.KindSystem, Content: "You are {{role}}."},
			{ID: "n2", Label: "Ask", Kind: domain.KindUser, Content: "Hello"},
		},
		Edges:     []domain.Edge{{Source: "n1", Target: "n2"}},
		Variables: []domain.ProjectVariable{{ID: "v1", Name: "role", Value: "a tester", Type: domain.VariableStatic}},
		UpdatedAt: updated,
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, project), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, project.Name, loaded.Name)
		assert.Equal(t, project.Nodes, loaded.Nodes)
		assert.Equal(t, project.Edges, loaded.Edges)
		assert.Equal(t, project.Variables, loaded.Variables)
		assert.True(t, updated.Equal(loaded.UpdatedAt), "UpdatedAt should survive persistence")
	})

	t.Run("Save replaces as a whole", func(t *testing.T) {
		replaced := project.Clone()
		replaced.Nodes = replaced.Nodes[:1]
		require.NoError(t, store.Save(ctx, replaced))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Len(t, loaded.Nodes, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("List", func(t *testing.T) {
		newer := project.Clone()
		newer.ID = id + "-newer"
		newer.UpdatedAt = updated.Add(time.Hour)
		require.NoError(t, store.Save(ctx, newer))
		defer func() { _ = store.Delete(ctx, newer.ID) }()

		list, err := store.List(ctx)
		require.NoError(t, err)

		pos := map[string]int{}
		for i, s := range list {
			pos[s.ID] = i
		}
		require.Contains(t, pos, id)
		require.Contains(t, pos, newer.ID)
		assert.Less(t, pos[newer.ID], pos[id], "newest project should come first")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound, "Load after Delete should return ErrProjectNotFound")

		assert.NoError(t, store.Delete(ctx, id), "deleting twice is not an error")
	})
}

// RunSessionStoreContract verifies that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + contractSuffix()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	newSession := func(id string) *domain.Session {
		return &domain.Session{
			ID:   id,
			Name: "Contract chat",
			Messages: []domain.SessionMessage{
				{Role: "user", Content: "hi", CreatedAt: at},
				{Role: "assistant", Content: "hello", CreatedAt: at.Add(time.Second)},
			},
			UpdatedAt: at,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		s := newSession(sessionID)
		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.Name, loaded.Name)
		require.Len(t, loaded.Messages, 2)
		assert.Equal(t, "hi", loaded.Messages[0].Content)
		assert.Equal(t, "assistant", loaded.Messages[1].Role)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, newSession(id1))
		_ = store.Save(ctx, newSession(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSession(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})
}

// RunRunStoreContract verifies that a RunStore implementation
// adheres to the defined interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	projectID := "contract-runs-" + contractSuffix()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	record := func(runID string, row int, dataset string, at time.Time) domain.RunRecord {
		return domain.RunRecord{
			RunID:                 runID,
			CreatedAt:             at,
			ProjectID:             projectID,
			DatasetID:             dataset,
			RowIndex:              row,
			Status:                domain.RunSucceeded,
			OutputDigest:          "digest",
			MissingVariablesCount: row,
			Trace: domain.TraceRun{
				RunID:       runID,
				CreatedAt:   at,
				OutputStyle: domain.StyleLabeled,
				Text:        "[user] Ask\nHello",
				Segments:    []domain.TraceSegment{},
				Messages:    []domain.TraceMessage{},
			},
		}
	}

	first := record(projectID+"-r0", 0, "ds-a", base)
	second := record(projectID+"-r1", 1, "ds-a", base.Add(time.Minute))
	other := record(projectID+"-r2", 0, "ds-b", base.Add(2*time.Minute))

	t.Run("Save and Load", func(t *testing.T) {
		for _, rec := range []domain.RunRecord{first, second, other} {
			require.NoError(t, store.Save(ctx, rec))
		}

		loaded, err := store.Load(ctx, first.RunID)
		require.NoError(t, err)
		assert.Equal(t, first.ProjectID, loaded.ProjectID)
		assert.Equal(t, first.OutputDigest, loaded.OutputDigest)
		assert.Equal(t, first.Trace.Text, loaded.Trace.Text)
		assert.True(t, first.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+projectID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("List newest first", func(t *testing.T) {
		runs, err := store.List(ctx, projectID, domain.RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, other.RunID, runs[0].RunID)
		assert.Equal(t, second.RunID, runs[1].RunID)
		assert.Equal(t, first.RunID, runs[2].RunID)
	})

	t.Run("List filtered", func(t *testing.T) {
		row := 1
		runs, err := store.List(ctx, projectID, domain.RunFilter{DatasetID: "ds-a", RowIndex: &row})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, second.RunID, runs[0].RunID)

		runs, err = store.List(ctx, projectID, domain.RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("List unknown project", func(t *testing.T) {
		runs, err := store.List(ctx, "non-existent-"+projectID, domain.RunFilter{})
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

// RunDatasetStoreContract verifies that a DatasetStore implementation
// adheres to the defined interface contract.
func RunDatasetStoreContract(t *testing.T, store DatasetStore) {
	ctx := context.Background()
	id := "contract-dataset-" + contractSuffix()

	dataset := domain.Dataset{
		ID:   id,
		Name: "Greetings",
		Rows: []json.RawMessage{
			json.RawMessage(`{"name":"Ada"}`),
			json.RawMessage(`{"variables":{"name":"Grace"}}`),
		},
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, dataset))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, dataset.Name, loaded.Name)
		require.Len(t, loaded.Rows, 2)
		assert.JSONEq(t, `{"name":"Ada"}`, string(loaded.Rows[0]))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrDatasetNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, id))
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrDatasetNotFound)
	})
}

// RunDataSourceStoreContract verifies that a DataSourceStore implementation
// adheres to the defined interface contract.
func RunDataSourceStoreContract(t *testing.T, store DataSourceStore) {
	ctx := context.Background()
	id := "contract-ds-" + contractSuffix()

	ds := domain.DataSource{
		ID:        id,
		Name:      "Analytics",
		Driver:    "postgres",
		URLEnc:    "c2VhbGVk",
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, ds))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ds.Name, loaded.Name)
		assert.Equal(t, ds.Driver, loaded.Driver)
		assert.Equal(t, ds.URLEnc, loaded.URLEnc)
		assert.True(t, ds.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Overwrite", func(t *testing.T) {
		renamed := ds
		renamed.Name = "Warehouse"
		require.NoError(t, store.Save(ctx, renamed))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Warehouse", loaded.Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrDataSourceNotFound)
	})

	t.Run("List", func(t *testing.T) {
		list, err := store.List(ctx)
		require.NoError(t, err)
		var found bool
		for _, d := range list {
			found = found || d.ID == id
		}
		assert.True(t, found, "stored data source missing from List")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, id))
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrDataSourceNotFound)
		assert.NoError(t, store.Delete(ctx, id))
	})
}
