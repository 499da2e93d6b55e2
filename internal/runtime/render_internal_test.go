package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/template"
)

func TestRenderNode(t *testing.T) {
	store := NewVariableStore([]domain.ProjectVariable{
		{Name: "name", Value: "World"},
		{Name: "loop", Value: "{{loop}}"},
	})

	tests := []struct {
		name    string
		content string
		want    string
		missing []string
		codes   []string
	}{
		{"resolved", "Hello {{name}}", "Hello World", []string{}, nil},
		{"missing kept verbatim", "Hello {{who}}", "Hello {{who}}", []string{"who"}, []string{domain.CodeMissingVariable}},
		{"missing once per name", "{{a}} {{b}} {{ a }}", "{{a}} {{b}} {{ a }}", []string{"a", "b"}, []string{domain.CodeMissingVariable, domain.CodeMissingVariable}},
		{"value not rescanned", "x={{loop}}", "x={{loop}}", []string{}, nil},
		{"no placeholders", "plain\ntext", "plain\ntext", []string{}, nil},
		{"blank name is literal", "a {{  }} b", "a {{  }} b", []string{}, nil},
		{"unterminated opener", "{{name}} then {{oops", "World then {{oops", []string{}, []string{domain.CodeTemplateSyntaxError}},
		{"syntax error before missing", "{{who}} {{", "{{who}} {{", []string{"who"}, []string{domain.CodeTemplateSyntaxError, domain.CodeMissingVariable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := renderNode(template.DefaultGrammar, domain.ProjectNode{ID: "n1", Content: tt.content}, store)
			assert.Equal(t, tt.want, res.Rendered)
			assert.Equal(t, tt.missing, res.Missing)

			var codes []string
			for _, m := range res.Messages {
				codes = append(codes, m.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestRenderNode_MessageDetails(t *testing.T) {
	res := renderNode(template.DefaultGrammar, domain.ProjectNode{ID: "greet", Content: "ab {{x"}, NewVariableStore(nil))
	require.Len(t, res.Messages, 1)

	msg := res.Messages[0]
	assert.Equal(t, domain.SeverityError, msg.Severity)
	assert.Equal(t, 3, msg.Details["offset"])
	assert.Equal(t, "greet", msg.Details["nodeId"])

	res = renderNode(template.DefaultGrammar, domain.ProjectNode{ID: "greet", Content: "{{who}}"}, NewVariableStore(nil))
	require.Len(t, res.Messages, 1)
	assert.Equal(t, domain.SeverityWarn, res.Messages[0].Severity)
	assert.Equal(t, "who", res.Messages[0].Details["variable"])
}
