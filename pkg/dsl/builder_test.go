package dsl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/dsl"
)

func TestBuilder_SimpleProject(t *testing.T) {
	// 1. Build the project using DSL
	b := dsl.New("greet").Name("Greeter")

	b.Add("ask").
		Label("Ask").
		User("Hi, I am {{name}}.").
		After("persona")

	b.Add("persona").
		Label("Persona").
		System("You are {{persona}}.")

	b.Var("name", "Ada").Var("persona", "a helpful agent")

	p, err := b.Build()
	require.NoError(t, err)

	// 2. Verify the project
	assert.Equal(t, "greet", p.ID)
	assert.Equal(t, "Greeter", p.Name)
	require.Len(t, p.Nodes, 2)
	assert.Equal(t, "persona", p.Nodes[0].ID, "edges reorder insertion order")
	assert.Equal(t, domain.KindSystem, p.Nodes[0].Kind)
	assert.Equal(t, []domain.Edge{{Source: "persona", Target: "ask"}}, p.Edges)

	// 3. Render it
	run := promptloom.New().Render(context.Background(), p, promptloom.WithStyle(domain.StyleLabeled))
	assert.Equal(t, "[system] Persona\nYou are a helpful agent.\n\n[user] Ask\nHi, I am Ada.", run.Text)
	assert.Empty(t, run.MissingVariables())
}

func TestBuilder_AddReturnsExistingNode(t *testing.T) {
	b := dsl.New("p")
	b.Add("n").Text("first")
	b.Add("n").Label("Again")

	p, err := b.Build()
	require.NoError(t, err)
	require.Len(t, p.Nodes, 1)
	assert.Equal(t, domain.ProjectNode{ID: "n", Label: "Again", Kind: domain.KindText, Content: "first"}, p.Nodes[0])
}

func TestBuilder_Dynamic(t *testing.T) {
	b := dsl.New("p")
	b.Add("h").Memory("{{history}}")
	b.Dynamic("history", "chat://s1", "10")

	p, err := b.Build()
	require.NoError(t, err)
	require.Len(t, p.Variables, 1)
	assert.True(t, p.Variables[0].IsDynamic())
	assert.Equal(t, "chat://s1", p.Variables[0].Resolver)
}

func TestBuilder_InvalidProject(t *testing.T) {
	b := dsl.New("p")
	b.Add("n").Kind("bogus").Content("x")
	b.Var("", "nameless")

	_, err := b.Build()
	require.Error(t, err)

	var verr *compiler.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 2)
}

func TestBuilder_Loader(t *testing.T) {
	b := dsl.New("p")
	b.Add("a").Text("A").Go("b")
	b.Add("b").Text("B")

	loader, err := b.Loader()
	require.NoError(t, err)

	ids, err := loader.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, ids)

	p, err := loader.LoadProject(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, p.Nodes, 2)
}
