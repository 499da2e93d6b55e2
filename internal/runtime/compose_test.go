package runtime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/internal/runtime"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/template"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestComposer(opts ...runtime.ComposerOption) *runtime.Composer {
	base := []runtime.ComposerOption{
		runtime.WithClock(func() time.Time { return fixedTime }),
		runtime.WithIDGenerator(func() string { return "run-1" }),
	}
	return runtime.NewComposer(append(base, opts...)...)
}

func sampleProject() domain.Project {
	return domain.Project{
		ID:   "p1",
		Name: "Support bot",
		Nodes: []domain.ProjectNode{
			{ID: "sys", Label: "Persona", Kind: domain.KindSystem, Content: "You are {{persona}}."},
			{ID: "usr", Label: "Question", Kind: domain.KindUser, Content: "Hi, I am {{user}}."},
			{ID: "mem", Label: "Notes", Kind: domain.KindMemory, Content: "No placeholders here."},
		},
		Variables: []domain.ProjectVariable{
			{ID: "v1", Name: "persona", Value: "a helpful agent"},
			{ID: "v2", Name: "user", Value: "Ada"},
		},
	}
}

func TestCompose_Plain(t *testing.T) {
	run := newTestComposer().Compose(sampleProject(), runtime.RenderOptions{})

	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, fixedTime, run.CreatedAt)
	assert.Equal(t, domain.StylePlain, run.OutputStyle)
	assert.Equal(t, "You are a helpful agent.\n\nHi, I am Ada.\n\nNo placeholders here.", run.Text)
	assert.Empty(t, run.Messages)

	require.Len(t, run.Segments, 3)
	for i, node := range sampleProject().Nodes {
		seg := run.Segments[i]
		assert.Equal(t, node.ID, seg.NodeID)
		assert.Equal(t, node.Label, seg.Label)
		assert.Equal(t, node.Kind, seg.Kind)
		assert.Equal(t, node.Content, seg.Template)
	}
}

func TestCompose_Labeled(t *testing.T) {
	run := newTestComposer().Compose(sampleProject(), runtime.RenderOptions{Style: domain.StyleLabeled})

	want := "[system] Persona\nYou are a helpful agent.\n\n" +
		"[user] Question\nHi, I am Ada.\n\n" +
		"[memory] Notes\nNo placeholders here."
	assert.Equal(t, want, run.Text)
	assert.Equal(t, domain.StyleLabeled, run.OutputStyle)
	assert.Equal(t, "You are a helpful agent.", run.Segments[0].Rendered, "segments hold the body only")
}

func TestCompose_NormalizesStyle(t *testing.T) {
	tests := []struct {
		style domain.OutputStyle
		want  domain.OutputStyle
	}{
		{"", domain.StylePlain},
		{"fancy", domain.StylePlain},
		{" Labeled ", domain.StyleLabeled},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			run := newTestComposer().Compose(sampleProject(), runtime.RenderOptions{Style: tt.style})
			assert.Equal(t, tt.want, run.OutputStyle)
			assert.Equal(t, runtime.Assemble(run.Segments, tt.want), run.Text)
		})
	}
}

func TestCompose_ScenarioA(t *testing.T) {
	p := domain.Project{
		Nodes:     []domain.ProjectNode{{ID: "n", Kind: domain.KindText, Content: "Hello {{name}}"}},
		Variables: []domain.ProjectVariable{{ID: "v", Name: "name", Value: "World"}},
	}
	run := newTestComposer().Compose(p, runtime.RenderOptions{})

	require.Len(t, run.Segments, 1)
	assert.Equal(t, "Hello World", run.Segments[0].Rendered)
	assert.Empty(t, run.Segments[0].MissingVariables)
	assert.Empty(t, run.Messages)
}

func TestCompose_ScenarioB(t *testing.T) {
	p := domain.Project{
		Nodes: []domain.ProjectNode{{ID: "n", Kind: domain.KindText, Content: "Hello {{name}}"}},
	}
	run := newTestComposer().Compose(p, runtime.RenderOptions{})

	require.Len(t, run.Segments, 1)
	seg := run.Segments[0]
	assert.Equal(t, "Hello {{name}}", seg.Rendered)
	assert.Equal(t, []string{"name"}, seg.MissingVariables)
	require.Len(t, seg.Messages, 1)
	assert.Equal(t, domain.SeverityWarn, seg.Messages[0].Severity)
	assert.Equal(t, domain.CodeMissingVariable, seg.Messages[0].Code)
	assert.Equal(t, seg.Messages, run.Messages)
	assert.Equal(t, []string{"name"}, run.MissingVariables())
}

func TestCompose_EmptyProject(t *testing.T) {
	run := newTestComposer().Compose(domain.Project{ID: "empty"}, runtime.RenderOptions{Style: domain.StyleLabeled})

	assert.Equal(t, "", run.Text)
	assert.NotNil(t, run.Segments)
	assert.NotNil(t, run.Messages)
	assert.Empty(t, run.Segments)
	assert.Empty(t, run.Messages)
}

func TestCompose_MessageOrder(t *testing.T) {
	p := domain.Project{
		Nodes: []domain.ProjectNode{
			{ID: "a", Kind: domain.KindUser, Content: "{{x}} {{y}}"},
			{ID: "b", Kind: domain.KindUser, Content: "{{z}} {{"},
		},
	}
	extra := []domain.TraceMessage{{Severity: domain.SeverityInfo, Code: domain.CodeVariableStatic, Message: "static"}}
	run := newTestComposer().Compose(p, runtime.RenderOptions{ExtraMessages: extra})

	var got []string
	for _, m := range run.Messages {
		detail, _ := m.Details["variable"].(string)
		got = append(got, m.Code+":"+detail)
	}
	assert.Equal(t, []string{
		"variable_static:",
		"missing_variable:x",
		"missing_variable:y",
		"template_syntax_error:",
		"missing_variable:z",
	}, got)
}

func TestCompose_DuplicatePlacement(t *testing.T) {
	p := domain.Project{
		Nodes: []domain.ProjectNode{
			{ID: "a", Kind: domain.KindText, Content: "{{missing}}"},
			{ID: "b", Kind: domain.KindText, Content: "{{dup}}"},
		},
		Variables: []domain.ProjectVariable{
			{ID: "1", Name: "dup", Value: "old"},
			{ID: "2", Name: "dup", Value: "new"},
			{ID: "3", Name: "unused", Value: "1"},
			{ID: "4", Name: "unused", Value: "2"},
		},
	}
	run := newTestComposer().Compose(p, runtime.RenderOptions{})

	require.Len(t, run.Messages, 3)
	assert.Equal(t, domain.CodeMissingVariable, run.Messages[0].Code)
	assert.Equal(t, domain.CodeDuplicateVariableName, run.Messages[1].Code)
	assert.Equal(t, "dup", run.Messages[1].Details["variable"])
	assert.Equal(t, domain.CodeDuplicateVariableName, run.Messages[2].Code)
	assert.Equal(t, "unused", run.Messages[2].Details["variable"])
	assert.Equal(t, "new", run.Segments[1].Rendered)
	assert.Empty(t, run.Segments[1].Messages, "run-level diagnostics stay out of segments")
}

func TestCompose_DoesNotMutateProject(t *testing.T) {
	p := sampleProject()
	before := p.Clone()
	_ = newTestComposer().Compose(p, runtime.RenderOptions{Style: domain.StyleLabeled})
	assert.Equal(t, before, p)
}

func TestCompose_Idempotent(t *testing.T) {
	ids := []string{"r1", "r2"}
	c := runtime.NewComposer(runtime.WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	p := sampleProject()
	p.Nodes = append(p.Nodes, domain.ProjectNode{ID: "x", Kind: domain.KindTool, Content: "{{nope}}"})

	first := c.Compose(p, runtime.RenderOptions{})
	second := c.Compose(p, runtime.RenderOptions{})

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Segments, second.Segments)
}

func TestCompose_AllResolvedHasNoWarnings(t *testing.T) {
	run := newTestComposer().Compose(sampleProject(), runtime.RenderOptions{})
	counts := run.CountBySeverity()
	assert.Zero(t, counts[domain.SeverityWarn])
	assert.Zero(t, counts[domain.SeverityError])
}

func TestCompose_CustomGrammar(t *testing.T) {
	c := newTestComposer(runtime.WithGrammar(template.Grammar{Open: "<<", Close: ">>"}))
	p := domain.Project{
		Nodes:     []domain.ProjectNode{{ID: "n", Kind: domain.KindText, Content: "<<a>> and {{a}}"}},
		Variables: []domain.ProjectVariable{{Name: "a", Value: "A"}},
	}
	run := c.Compose(p, runtime.RenderOptions{})
	assert.Equal(t, "A and {{a}}", run.Text)
}

func TestHeader_FallsBackToNodeID(t *testing.T) {
	assert.Equal(t, "[tool] t1", runtime.Header(domain.TraceSegment{NodeID: "t1", Kind: domain.KindTool}))
}
