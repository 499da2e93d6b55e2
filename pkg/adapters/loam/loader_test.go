package loam

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/internal/testutils"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

var _ ports.ProjectLoader = (*Loader)(nil)
var _ ports.Watchable = (*Loader)(nil)

func seed(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	_, repo := testutils.SetupProjectRepo(t, files)
	return New(loam.NewTypedRepository[DocumentMetadata](repo))
}

func TestLoader_LoadProject(t *testing.T) {
	loader := seed(t, map[string]string{
		"support.md": `---
kind: project
name: Support bot
variables:
  - name: product
    value: Widget
  - name: history
    resolver: chat://s1
edges:
  - from: persona
    to: ask
---
Manifest body is ignored.`,
		"persona.md": `---
project: support
kind: system
label: Persona
order: 1
---
You support {{product}}.`,
		"ask.md": `---
project: support
kind: user_input
label: Ask
order: 2
---
{{history}}`,
	})
	ctx := context.Background()

	p, err := loader.LoadProject(ctx, "support")
	require.NoError(t, err)

	assert.Equal(t, "support", p.ID)
	assert.Equal(t, "Support bot", p.Name)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, domain.ProjectNode{ID: "persona", Label: "Persona", Kind: domain.KindSystem, Content: "You support {{product}}."}, p.Nodes[0])
	assert.Equal(t, domain.KindUser, p.Nodes[1].Kind, "flow editor types map to kinds")
	assert.Equal(t, []domain.Edge{{Source: "persona", Target: "ask"}}, p.Edges)

	require.Len(t, p.Variables, 2)
	assert.Equal(t, domain.ProjectVariable{ID: "product", Name: "product", Value: "Widget", Type: domain.VariableStatic}, p.Variables[0])
	assert.True(t, p.Variables[1].IsDynamic(), "a resolver implies a dynamic variable")
	assert.Equal(t, "chat://s1", p.Variables[1].Resolver)
}

func TestLoader_DefaultProjectAndEdgeSugar(t *testing.T) {
	loader := seed(t, map[string]string{
		"b.md": `---
kind: user
---
second`,
		"a.md": `---
kind: system
to: b.md
---
first`,
	})
	ctx := context.Background()

	ids, err := loader.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultProject}, ids)

	p, err := loader.LoadProject(ctx, DefaultProject)
	require.NoError(t, err)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, "a", p.Nodes[0].ID, "equal order falls back to ID")
	assert.Equal(t, "b", p.Nodes[1].ID)
	assert.Equal(t, []domain.Edge{{Source: "a", Target: "b"}}, p.Edges)
	assert.Equal(t, DefaultProject, p.Name)
}

func TestLoader_LoadProject_NotFound(t *testing.T) {
	loader := seed(t, map[string]string{
		"a.md": "---\nkind: text\n---\nhello",
	})

	_, err := loader.LoadProject(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	loader := seed(t, map[string]string{
		"foo.md": `---
id: foo
kind: text
---
Explicit ID`,
		"foo.json": `{
  "id": "foo",
  "kind": "text"
}`,
	})

	_, err := loader.LoadProject(context.Background(), DefaultProject)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestLoader_ListProjects_Sorted(t *testing.T) {
	loader := seed(t, map[string]string{
		"zeta.md":  "---\nkind: project\nname: Zeta\n---\n",
		"alpha.md": "---\nproject: alpha\nkind: text\n---\nhi",
	})

	ids, err := loader.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}
