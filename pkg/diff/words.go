package diff

import (
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/aretw0/promptloom/pkg/domain"
)

// Op is the role of a span in a word comparison.
type Op int

const (
	OpEqual Op = iota
	OpDelete
	OpInsert
)

func (o Op) String() string {
	switch o {
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	}
	return "equal"
}

// Span is a run of text with one role.
type Span struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Words compares two lines word by word. Words and the whitespace between
// them are atomic, so a span never splits a word.
// Concatenating the equal and delete spans yields left; equal and insert
// spans yield right.
func Words(left, right string) []Span {
	if left == right {
		if left == "" {
			return nil
		}
		return []Span{{Op: OpEqual, Text: left}}
	}

	var vocab wordVocab
	ra := vocab.encode(tokenize(left))
	rb := vocab.encode(tokenize(right))

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	spans := make([]Span, 0, len(diffs))
	for _, d := range diffs {
		text := vocab.decode(d.Text)
		if text == "" {
			continue
		}
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		}
		if n := len(spans); n > 0 && spans[n-1].Op == op {
			spans[n-1].Text += text
			continue
		}
		spans = append(spans, Span{Op: op, Text: text})
	}
	return spans
}

// WordsForRows returns the word comparison of every changed row, keyed by row index.
func WordsForRows(rows []domain.DiffLine) map[int][]Span {
	out := make(map[int][]Span)
	for i, r := range rows {
		if r.Kind == domain.DiffChanged {
			out[i] = Words(r.Left, r.Right)
		}
	}
	return out
}

// tokenize splits s into alternating runs of word and non-word characters.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	var prevWord bool
	for i, r := range s {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
		if i > start && isWord != prevWord {
			tokens = append(tokens, s[start:i])
			start = i
		}
		prevWord = isWord
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// wordVocab maps each distinct token to a rune, the same trick
// diffmatchpatch uses for whole lines.
type wordVocab struct {
	index  map[string]rune
	tokens []string
}

func (v *wordVocab) encode(tokens []string) []rune {
	if v.index == nil {
		v.index = make(map[string]rune)
	}
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, ok := v.index[tok]
		if !ok {
			r = indexToRune(len(v.tokens))
			v.index[tok] = r
			v.tokens = append(v.tokens, tok)
		}
		out[i] = r
	}
	return out
}

func (v *wordVocab) decode(encoded string) string {
	var out []byte
	for _, r := range encoded {
		idx := runeToIndex(r)
		if idx >= 0 && idx < len(v.tokens) {
			out = append(out, v.tokens[idx]...)
		}
	}
	return string(out)
}

// Surrogates do not survive a string round trip, so the encoding skips them.
const (
	surrogateMin = 0xD800
	surrogateLen = 0x800
)

func indexToRune(i int) rune {
	r := rune(i + 1)
	if r >= surrogateMin {
		r += surrogateLen
	}
	return r
}

func runeToIndex(r rune) int {
	if r >= surrogateMin+surrogateLen {
		r -= surrogateLen
	}
	return int(r) - 1
}
