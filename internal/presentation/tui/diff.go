package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
)

// DiffPrinter writes aligned diff rows in a two-prefix layout:
// "  " same, "- " left only, "+ " right only, and a -/+ pair for changed rows.
type DiffPrinter struct {
	out *termenv.Output

	// Words highlights the changed words inside changed rows.
	Words bool
}

// NewDiffPrinter writes to w, with ANSI colors when color is set.
func NewDiffPrinter(w io.Writer, color bool) *DiffPrinter {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI
	}
	return &DiffPrinter{out: termenv.NewOutput(w, termenv.WithProfile(profile))}
}

// Print writes the rows followed by a one-line summary.
func (p *DiffPrinter) Print(rows []domain.DiffLine) error {
	var spans map[int][]diff.Span
	if p.Words {
		spans = diff.WordsForRows(rows)
	}

	var sb strings.Builder
	for i, row := range rows {
		switch row.Kind {
		case domain.DiffSame:
			sb.WriteString("  " + row.Left + "\n")
		case domain.DiffMissingRight:
			sb.WriteString(p.style("- "+row.Left, "1") + "\n")
		case domain.DiffMissingLeft:
			sb.WriteString(p.style("+ "+row.Right, "2") + "\n")
		case domain.DiffChanged:
			if s, ok := spans[i]; ok {
				sb.WriteString(p.style("- ", "1") + p.spans(s, diff.OpDelete, "1") + "\n")
				sb.WriteString(p.style("+ ", "2") + p.spans(s, diff.OpInsert, "2") + "\n")
				continue
			}
			sb.WriteString(p.style("- "+row.Left, "1") + "\n")
			sb.WriteString(p.style("+ "+row.Right, "2") + "\n")
		}
	}

	s := diff.Stats(rows)
	fmt.Fprintf(&sb, "%d same, %d changed, %d left only, %d right only\n",
		s.Same, s.Changed, s.MissingRight, s.MissingLeft)

	_, err := io.WriteString(p.out, sb.String())
	return err
}

// spans rebuilds one side of a changed row, emphasizing the spans with op.
func (p *DiffPrinter) spans(spans []diff.Span, op diff.Op, color string) string {
	var sb strings.Builder
	for _, s := range spans {
		switch s.Op {
		case diff.OpEqual:
			sb.WriteString(p.style(s.Text, color))
		case op:
			sb.WriteString(p.out.String(s.Text).Foreground(p.out.Color(color)).Bold().Underline().String())
		}
	}
	return sb.String()
}

func (p *DiffPrinter) style(text, color string) string {
	return p.out.String(text).Foreground(p.out.Color(color)).String()
}
