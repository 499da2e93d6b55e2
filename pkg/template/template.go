// Package template implements the placeholder grammar used by node content.
//
// A placeholder is a name enclosed in a pair of delimiters, `{{name}}` by
// default. The grammar has no escapes, filters or nesting: a scan only splits
// text into literal runs, placeholders and at most one trailing malformed
// span (an opener with no matching closer).
package template

import (
	"errors"
	"strings"
)

// ErrEmptyDelimiter is returned by Grammar.Validate when a delimiter is blank.
var ErrEmptyDelimiter = errors.New("template delimiters must not be empty")

// Grammar holds the placeholder delimiters.
type Grammar struct {
	Open  string
	Close string
}

// DefaultGrammar is the `{{name}}` grammar.
var DefaultGrammar = Grammar{Open: "{{", Close: "}}"}

// TokenType classifies a span produced by Scan.
type TokenType int

const (
	// TokenLiteral is text copied to the output unchanged.
	TokenLiteral TokenType = iota
	// TokenPlaceholder is a delimited, non-blank name.
	TokenPlaceholder
	// TokenMalformed is an opener without a closer, up to the end of the text.
	TokenMalformed
)

func (t TokenType) String() string {
	switch t {
	case TokenLiteral:
		return "literal"
	case TokenPlaceholder:
		return "placeholder"
	case TokenMalformed:
		return "malformed"
	}
	return "unknown"
}

// Token is one span of scanned text.
type Token struct {
	Type TokenType
	// Raw is the exact source text of the span, delimiters included.
	Raw string
	// Name is the trimmed placeholder name. Empty for other token types.
	Name string
	// Offset is the byte offset of Raw in the scanned text.
	Offset int
}

// Validate reports whether both delimiters are usable.
func (g Grammar) Validate() error {
	if g.Open == "" || g.Close == "" {
		return ErrEmptyDelimiter
	}
	return nil
}

// OrDefault returns DefaultGrammar when g is not usable.
func (g Grammar) OrDefault() Grammar {
	if g.Validate() != nil {
		return DefaultGrammar
	}
	return g
}

// Scan splits text into tokens. Concatenating every Raw field yields text.
// A delimited span whose name is blank is returned as a literal.
func (g Grammar) Scan(text string) []Token {
	g = g.OrDefault()

	var tokens []Token
	literalStart := 0
	pos := 0

	flush := func(end int) {
		if end > literalStart {
			tokens = append(tokens, Token{Type: TokenLiteral, Raw: text[literalStart:end], Offset: literalStart})
		}
	}

	for pos < len(text) {
		i := strings.Index(text[pos:], g.Open)
		if i < 0 {
			break
		}
		start := pos + i
		inner := start + len(g.Open)
		j := strings.Index(text[inner:], g.Close)
		if j < 0 {
			flush(start)
			tokens = append(tokens, Token{Type: TokenMalformed, Raw: text[start:], Offset: start})
			return tokens
		}
		end := inner + j + len(g.Close)
		name := strings.TrimSpace(text[inner : inner+j])
		if name == "" {
			// Blank names stay part of the surrounding literal.
			pos = end
			continue
		}
		flush(start)
		tokens = append(tokens, Token{Type: TokenPlaceholder, Raw: text[start:end], Name: name, Offset: start})
		literalStart = end
		pos = end
	}

	flush(len(text))
	return tokens
}

// Names returns the placeholder names in text, deduplicated, in
// first-occurrence order.
func (g Grammar) Names(text string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, tok := range g.Scan(text) {
		if tok.Type != TokenPlaceholder {
			continue
		}
		if _, ok := seen[tok.Name]; ok {
			continue
		}
		seen[tok.Name] = struct{}{}
		names = append(names, tok.Name)
	}
	return names
}

// Placeholder formats name with the grammar's delimiters.
func (g Grammar) Placeholder(name string) string {
	g = g.OrDefault()
	return g.Open + name + g.Close
}
