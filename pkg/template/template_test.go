package template_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom/pkg/template"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []template.TokenType
		names []string
	}{
		{"empty", "", nil, nil},
		{"literal only", "plain text", []template.TokenType{template.TokenLiteral}, nil},
		{"single placeholder", "Hello {{name}}", []template.TokenType{template.TokenLiteral, template.TokenPlaceholder}, []string{"name"}},
		{"trimmed name", "{{  user  }}!", []template.TokenType{template.TokenPlaceholder, template.TokenLiteral}, []string{"user"}},
		{"blank name is literal", "a {{ }} b", []template.TokenType{template.TokenLiteral}, nil},
		{"unterminated", "x {{y", []template.TokenType{template.TokenLiteral, template.TokenMalformed}, nil},
		{"placeholder then unterminated", "{{a}} and {{b", []template.TokenType{template.TokenPlaceholder, template.TokenLiteral, template.TokenMalformed}, []string{"a"}},
		{"adjacent", "{{a}}{{b}}", []template.TokenType{template.TokenPlaceholder, template.TokenPlaceholder}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := template.DefaultGrammar.Scan(tt.input)

			var types []template.TokenType
			var raw strings.Builder
			var names []string
			for _, tok := range tokens {
				types = append(types, tok.Type)
				raw.WriteString(tok.Raw)
				if tok.Type == template.TokenPlaceholder {
					names = append(names, tok.Name)
				}
			}
			assert.Equal(t, tt.want, types)
			assert.Equal(t, tt.names, names)
			assert.Equal(t, tt.input, raw.String(), "tokens must reconstruct the input")
		})
	}
}

func TestScan_Offsets(t *testing.T) {
	tokens := template.DefaultGrammar.Scan("ab {{c}} {{d")
	require.Len(t, tokens, 4)
	assert.Equal(t, 0, tokens[0].Offset)
	assert.Equal(t, 3, tokens[1].Offset)
	assert.Equal(t, 8, tokens[2].Offset)
	assert.Equal(t, 9, tokens[3].Offset)
	assert.Equal(t, template.TokenMalformed, tokens[3].Type)
}

func TestNames_Deduplicates(t *testing.T) {
	names := template.DefaultGrammar.Names("{{b}} {{a}} {{ b }} {{c}} {{a}}")
	assert.Equal(t, []string{"b", "a", "c"}, names)
}

func TestCustomGrammar(t *testing.T) {
	g := template.Grammar{Open: "${", Close: "}"}
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"user"}, g.Names("hi ${user}, {{ignored}}"))
	assert.Equal(t, "${x}", g.Placeholder("x"))
}

func TestInvalidGrammarFallsBack(t *testing.T) {
	g := template.Grammar{Open: "", Close: "]]"}
	assert.ErrorIs(t, g.Validate(), template.ErrEmptyDelimiter)
	assert.Equal(t, template.DefaultGrammar, g.OrDefault())
	assert.Equal(t, []string{"n"}, g.Names("{{n}}"))
}
