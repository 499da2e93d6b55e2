package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/logging"
	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	loader, err := memory.NewLoader(domain.Project{
		ID: "greeter",
		Nodes: []domain.ProjectNode{
			{ID: "b", Label: "Ask", Kind: domain.KindUser, Content: "Hi {{who}}, {{mood}}?"},
			{ID: "a", Label: "Rules", Kind: domain.KindSystem, Content: "Be brief."},
		},
		Edges:     []domain.Edge{{Source: "a", Target: "b"}},
		Variables: []domain.ProjectVariable{{ID: "v", Name: "who", Value: "Ada"}},
	})
	require.NoError(t, err)

	eng := promptloom.New(
		promptloom.WithLogger(logging.NewNop()),
		promptloom.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
		promptloom.WithIDGenerator(func() string { return "run-mcp" }),
	)
	return NewServer(eng, loader, logging.NewNop())
}

func TestRenderProject(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRenderProject(ctx, mcp.CallToolRequest{}, RenderArgs{ProjectID: "greeter", OutputStyle: "labeled"})
	require.NoError(t, err)
	assert.Equal(t, "run-mcp", res.RunID)
	assert.Equal(t, "[system] Rules\nBe brief.\n\n[user] Ask\nHi Ada, {{mood}}?", res.Text)
	assert.Equal(t, []string{"mood"}, res.MissingVariables)
	assert.Equal(t, 2, res.Segments)
	require.NotEmpty(t, res.Messages)
	assert.Equal(t, domain.CodeVariableStatic, res.Messages[0].Code)

	noResolve := false
	res, err = s.handleRenderProject(ctx, mcp.CallToolRequest{}, RenderArgs{ProjectID: "greeter", Resolve: &noResolve})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.\n\nHi Ada, {{mood}}?", res.Text)
	for _, m := range res.Messages {
		assert.NotEqual(t, domain.CodeVariableStatic, m.Code, "unresolved renders carry no resolver diagnostics")
	}
}

func TestRenderProject_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args RenderArgs
		want string
	}{
		{name: "missing id", args: RenderArgs{}, want: "project_id is required"},
		{name: "unknown project", args: RenderArgs{ProjectID: "nope"}, want: "project not found"},
		{name: "bad style", args: RenderArgs{ProjectID: "greeter", OutputStyle: "fancy"}, want: "unknown output style"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleRenderProject(ctx, mcp.CallToolRequest{}, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDiffText(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleDiffText(context.Background(), mcp.CallToolRequest{}, DiffArgs{Left: "a\nb", Right: "a\nc", Unified: true})
	require.NoError(t, err)
	assert.Equal(t, []domain.DiffLine{
		{Left: "a", Right: "a", Kind: domain.DiffSame},
		{Left: "b", Right: "c", Kind: domain.DiffChanged},
	}, res.Lines)
	assert.Equal(t, 1, res.Summary.Changed)
	assert.Contains(t, res.Unified, "-b\n+c")

	res, err = s.handleDiffText(context.Background(), mcp.CallToolRequest{}, DiffArgs{Left: "same", Right: "same"})
	require.NoError(t, err)
	assert.True(t, res.Summary.Identical())
	assert.Empty(t, res.Unified)
}

func TestStructuredHandler(t *testing.T) {
	s := newTestServer(t)
	handler := mcp.NewStructuredToolHandler(s.handleDiffText)

	req := mcp.CallToolRequest{}
	req.Params.Name = "diff_text"
	req.Params.Arguments = map[string]any{"left": "x", "right": "y"}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	out, ok := result.StructuredContent.(DiffResult)
	require.True(t, ok)
	assert.Equal(t, domain.DiffChanged, out.Lines[0].Kind)
}
