package compiler_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/domain"
)

func nodeIDs(p domain.Project) []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestDecode_NativeJSON(t *testing.T) {
	data := []byte(`{
  "id": "p1",
  "name": "Support",
  "nodes": [
    {"id": "n1", "label": "Persona", "kind": "System", "content": "You are {{role}}."},
    {"id": "n2", "label": "Ask", "kind": "user_input", "content": "Hi"},
    {"id": "n3", "label": "Notes", "content": "plain"}
  ],
  "variables": [{"id": "v1", "name": "role", "value": "helpful", "type": "static"}],
  "updatedAt": "2024-03-01T10:00:00Z"
}`)

	p, err := compiler.Decode(data, compiler.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "Support", p.Name)
	assert.Equal(t, domain.KindSystem, p.Nodes[0].Kind)
	assert.Equal(t, domain.KindUser, p.Nodes[1].Kind)
	assert.Equal(t, domain.KindText, p.Nodes[2].Kind, "missing kind defaults to text")
	assert.True(t, p.UpdatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.Len(t, p.Variables, 1)
	assert.Equal(t, "helpful", p.Variables[0].Value)
}

func TestDecode_FlowExport(t *testing.T) {
	data := []byte(`{
  "id": "p1",
  "name": "Flow",
  "updatedAt": "1709287200000",
  "state": {
    "nodes": [
      {"id": "b", "data": {"label": "Ask", "type": "user_input", "content": "{{q}}"}},
      {"id": "a", "data": {"label": "Sys", "type": "system_prompt", "content": "Be brief."}},
      {"id": "c", "data": {"label": "Custom", "type": "something_new", "content": "x"}}
    ],
    "edges": [{"source": "a", "target": "b"}],
    "variables": [{"id": "v1", "name": "q", "type": "static", "value": "why?"}]
  }
}`)

	p, err := compiler.Decode(data, compiler.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, nodeIDs(p))
	assert.Equal(t, domain.KindUser, p.Nodes[0].Kind)
	assert.Equal(t, domain.KindSystem, p.Nodes[1].Kind)
	assert.Equal(t, domain.KindText, p.Nodes[2].Kind, "unknown flow types render as text")
	assert.Equal(t, []domain.Edge{{Source: "a", Target: "b"}}, p.Edges)
	assert.Equal(t, int64(1709287200000), p.UpdatedAt.UnixMilli())
}

func TestDecode_YAML(t *testing.T) {
	data := []byte(`
id: p1
name: YAML project
updated_at: 2024-03-01T10:00:00Z
nodes:
  - id: persona
    kind: system
    content: You are {{role}}.
  - id: ask
    kind: user
    content: Hello
edges:
  - source: persona
    target: ask
variables:
  - name: role
    value: a poet
`)

	p, err := compiler.Decode(data, compiler.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "YAML project", p.Name)
	assert.Equal(t, []string{"persona", "ask"}, nodeIDs(p))
	assert.Equal(t, "a poet", p.Variables[0].Value)
	assert.Equal(t, 2024, p.UpdatedAt.Year())
}

func TestDecode_Errors(t *testing.T) {
	_, err := compiler.Decode([]byte(`{`), compiler.FormatJSON)
	assert.Error(t, err)

	_, err = compiler.Decode([]byte(`{}`), compiler.Format("toml"))
	assert.Error(t, err)

	_, err = compiler.Decode([]byte(`{"updatedAt": "yesterday"}`), compiler.FormatJSON)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		data string
		want compiler.Format
	}{
		{"p.json", "", compiler.FormatJSON},
		{"p.YAML", "", compiler.FormatYAML},
		{"p.yml", "", compiler.FormatYAML},
		{"p.txt", `  {"id": "x"}`, compiler.FormatJSON},
		{"p", "id: x", compiler.FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, compiler.FormatFromPath(tt.path, []byte(tt.data)))
		})
	}
}

func TestOrder(t *testing.T) {
	nodes := func(ids ...string) []domain.ProjectNode {
		out := make([]domain.ProjectNode, len(ids))
		for i, id := range ids {
			out[i] = domain.ProjectNode{ID: id, Kind: domain.KindText}
		}
		return out
	}

	tests := []struct {
		name  string
		nodes []domain.ProjectNode
		edges []domain.Edge
		want  []string
	}{
		{
			name:  "No edges keeps authored order",
			nodes: nodes("c", "a", "b"),
			want:  []string{"c", "a", "b"},
		},
		{
			name:  "Chain",
			nodes: nodes("c", "b", "a"),
			edges: []domain.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "Ready nodes in lexicographic order",
			nodes: nodes("root", "z", "m", "solo"),
			edges: []domain.Edge{{Source: "root", Target: "z"}, {Source: "root", Target: "m"}},
			want:  []string{"root", "m", "solo", "z"},
		},
		{
			name:  "Unknown endpoints ignored",
			nodes: nodes("b", "a"),
			edges: []domain.Edge{{Source: "ghost", Target: "a"}, {Source: "b", Target: "nowhere"}},
			want:  []string{"a", "b"},
		},
		{
			name:  "Cycle falls back to id order",
			nodes: nodes("c", "a", "b"),
			edges: []domain.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
			want:  []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Project{Nodes: tt.nodes, Edges: tt.edges}
			got := compiler.Order(p)
			assert.Equal(t, tt.want, nodeIDs(got))
			assert.Equal(t, nodeIDs(domain.Project{Nodes: tt.nodes}), nodeIDs(p), "input must not be reordered")
		})
	}
}

func TestValidate(t *testing.T) {
	valid := domain.Project{
		Nodes:     []domain.ProjectNode{{ID: "a", Kind: domain.KindSystem}, {ID: "b", Kind: domain.KindUser}},
		Variables: []domain.ProjectVariable{{Name: "x"}, {Name: "x"}},
	}
	assert.NoError(t, compiler.Validate(valid), "duplicate variable names are not fatal")

	invalid := domain.Project{
		Nodes: []domain.ProjectNode{
			{ID: "a", Kind: domain.KindSystem},
			{ID: "a", Kind: domain.KindUser},
			{ID: "", Kind: "bogus"},
		},
		Variables: []domain.ProjectVariable{{Name: "  "}, {Name: "ok", Type: "weird"}},
	}
	err := compiler.Validate(invalid)
	require.Error(t, err)

	var verr *compiler.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []compiler.Issue{
		{Path: "nodes[1]", Message: `duplicate node id "a" (first defined at nodes[0])`},
		{Path: "nodes[2]", Message: "missing id"},
		{Path: "nodes[2]", Message: `unknown kind "bogus"`},
		{Path: "variables[0]", Message: "missing name"},
		{Path: "variables[1]", Message: `unknown type "weird"`},
	}, verr.Issues)
	assert.Contains(t, err.Error(), "found 5 errors")
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.yaml")
	content := `
nodes:
  - id: b
    kind: user
    content: "{{name}}"
  - id: a
    kind: system
    content: Hi
edges:
  - source: a
    target: b
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := compiler.CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "greeting", p.ID, "id defaults to the file name")
	assert.Equal(t, []string{"a", "b"}, nodeIDs(p))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes":[{"id":"x","kind":"bogus"}]}`), 0644))
	_, err = compiler.CompileFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}
