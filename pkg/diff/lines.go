package diff

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/promptloom/pkg/domain"
)

// DefaultMaxCells bounds the alignment table of one comparison
// (4096 x 4096 lines, 64 MiB of table).
const DefaultMaxCells = 1 << 24

var (
	// ErrInvalidEncoding is returned by Validate for text that is not UTF-8.
	ErrInvalidEncoding = errors.New("diff input is not valid UTF-8")
	// ErrTooLarge is returned by CheckSize when an alignment would exceed its budget.
	ErrTooLarge = errors.New("diff input too large")
)

// CheckSize reports ErrTooLarge when aligning n left lines with m right
// lines needs more than maxCells table cells. Align allocates
// (n+1)*(m+1) cells, so callers comparing untrusted input run this first.
// A maxCells of zero or less disables the check.
func CheckSize(n, m, maxCells int) error {
	if maxCells <= 0 {
		return nil
	}
	if cells := int64(n+1) * int64(m+1); cells > int64(maxCells) {
		return fmt.Errorf("%w: %d x %d lines needs %d cells, limit is %d", ErrTooLarge, n, m, cells, maxCells)
	}
	return nil
}

// Validate checks that text can be compared. Lines itself never fails;
// callers that accept untrusted bytes run this first.
func Validate(text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidEncoding
	}
	return nil
}

// SplitLines breaks text on "\n", "\r\n" and "\r".
// A single trailing line break does not start another line, so "a\n" is one
// line and "a\n\n" is two. The empty string has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// Lines aligns left and right and returns one row per aligned position.
// Every input line appears in exactly one row, in input order.
func Lines(left, right string) []domain.DiffLine {
	return Align(SplitLines(left), SplitLines(right))
}

// Align is Lines over pre-split input.
func Align(a, b []string) []domain.DiffLine {
	n, m := len(a), len(b)
	out := make([]domain.DiffLine, 0, max(n, m))

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int32, n+1)
	for i := range lcs {
		lcs[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	// Walk forward, collecting the unmatched runs between anchors.
	var gapA, gapB []string
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			out = pairGap(out, gapA, gapB)
			gapA, gapB = gapA[:0], gapB[:0]
			out = append(out, domain.DiffLine{Left: a[i], Right: b[j], Kind: domain.DiffSame})
			i++
			j++
		case skipLeft(lcs, a, b, i, j):
			gapA = append(gapA, a[i])
			i++
		default:
			gapB = append(gapB, b[j])
			j++
		}
	}
	gapA = append(gapA, a[i:]...)
	gapB = append(gapB, b[j:]...)
	return pairGap(out, gapA, gapB)
}

// skipLeft decides which side to advance when a[i] != b[j].
// When both moves keep an optimal alignment, the lexically smaller line is
// skipped. The rule only looks at line content, so it makes the same choice
// when the inputs are swapped.
func skipLeft(lcs [][]int32, a, b []string, i, j int) bool {
	down, right := lcs[i+1][j], lcs[i][j+1]
	if down != right {
		return down > right
	}
	return a[i] < b[j]
}

// pairGap emits the rows for the unmatched runs between two anchors.
// Lines are paired index by index as changed; the surplus of the longer run
// is one-sided.
func pairGap(out []domain.DiffLine, gapA, gapB []string) []domain.DiffLine {
	paired := min(len(gapA), len(gapB))
	for k := 0; k < paired; k++ {
		out = append(out, domain.DiffLine{Left: gapA[k], Right: gapB[k], Kind: domain.DiffChanged})
	}
	for _, line := range gapA[paired:] {
		out = append(out, domain.DiffLine{Left: line, Kind: domain.DiffMissingRight})
	}
	for _, line := range gapB[paired:] {
		out = append(out, domain.DiffLine{Right: line, Kind: domain.DiffMissingLeft})
	}
	return out
}

// Summary counts rows by kind.
type Summary struct {
	Same         int `json:"same"`
	Changed      int `json:"changed"`
	MissingLeft  int `json:"missingLeft"`
	MissingRight int `json:"missingRight"`
}

// Identical reports whether the compared texts had the same lines.
func (s Summary) Identical() bool {
	return s.Changed == 0 && s.MissingLeft == 0 && s.MissingRight == 0
}

// LeftLines is the number of lines in the left input.
func (s Summary) LeftLines() int { return s.Same + s.Changed + s.MissingRight }

// RightLines is the number of lines in the right input.
func (s Summary) RightLines() int { return s.Same + s.Changed + s.MissingLeft }

// Stats tallies rows by kind.
func Stats(lines []domain.DiffLine) Summary {
	var s Summary
	for _, l := range lines {
		switch l.Kind {
		case domain.DiffSame:
			s.Same++
		case domain.DiffChanged:
			s.Changed++
		case domain.DiffMissingLeft:
			s.MissingLeft++
		case domain.DiffMissingRight:
			s.MissingRight++
		}
	}
	return s
}
