package diff

import (
	"bytes"
	"fmt"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/aretw0/promptloom/pkg/domain"
)

// DefaultContext is the number of unchanged lines kept around each hunk.
const DefaultContext = 3

// Unified renders rows as a unified diff between origName and newName.
// It returns the empty string when the rows contain no change.
func Unified(origName, newName string, rows []domain.DiffLine, context int) (string, error) {
	fd := FileDiff(origName, newName, rows, context)
	if len(fd.Hunks) == 0 {
		return "", nil
	}
	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("failed to print unified diff: %w", err)
	}
	return string(out), nil
}

// FileDiff groups rows into hunks with the given amount of context.
func FileDiff(origName, newName string, rows []domain.DiffLine, context int) *godiff.FileDiff {
	if context < 0 {
		context = DefaultContext
	}
	fd := &godiff.FileDiff{OrigName: origName, NewName: newName}

	// Line counts consumed before each row.
	oldBefore := make([]int, len(rows)+1)
	newBefore := make([]int, len(rows)+1)
	for k, r := range rows {
		oldBefore[k+1] = oldBefore[k]
		newBefore[k+1] = newBefore[k]
		if hasLeft(r.Kind) {
			oldBefore[k+1]++
		}
		if hasRight(r.Kind) {
			newBefore[k+1]++
		}
	}

	for _, rg := range hunkRanges(rows, context) {
		fd.Hunks = append(fd.Hunks, buildHunk(rows[rg.start:rg.end], oldBefore[rg.start], newBefore[rg.start]))
	}
	return fd
}

type rowRange struct{ start, end int }

// hunkRanges returns the row ranges to print, merging changes whose context overlaps.
func hunkRanges(rows []domain.DiffLine, context int) []rowRange {
	var ranges []rowRange
	for k, r := range rows {
		if r.Kind == domain.DiffSame {
			continue
		}
		start := max(0, k-context)
		end := min(len(rows), k+context+1)
		if n := len(ranges); n > 0 && start <= ranges[n-1].end {
			ranges[n-1].end = max(ranges[n-1].end, end)
			continue
		}
		ranges = append(ranges, rowRange{start, end})
	}
	return ranges
}

func buildHunk(rows []domain.DiffLine, oldStart, newStart int) *godiff.Hunk {
	var (
		body        bytes.Buffer
		dels, ins   []string
		origN, newN int
	)
	flush := func() {
		for _, l := range dels {
			body.WriteString("-" + l + "\n")
		}
		for _, l := range ins {
			body.WriteString("+" + l + "\n")
		}
		dels, ins = dels[:0], ins[:0]
	}

	for _, r := range rows {
		if hasLeft(r.Kind) {
			origN++
		}
		if hasRight(r.Kind) {
			newN++
		}
		switch r.Kind {
		case domain.DiffSame:
			flush()
			body.WriteString(" " + r.Left + "\n")
		case domain.DiffChanged:
			dels = append(dels, r.Left)
			ins = append(ins, r.Right)
		case domain.DiffMissingRight:
			dels = append(dels, r.Left)
		case domain.DiffMissingLeft:
			ins = append(ins, r.Right)
		}
	}
	flush()

	return &godiff.Hunk{
		OrigStartLine: startLine(oldStart, origN),
		OrigLines:     int32(origN),
		NewStartLine:  startLine(newStart, newN),
		NewLines:      int32(newN),
		Body:          body.Bytes(),
	}
}

// startLine follows the unified format: an empty side points at the line before it.
func startLine(before, count int) int32 {
	if count == 0 {
		return int32(before)
	}
	return int32(before + 1)
}

func hasLeft(k domain.DiffKind) bool {
	return k == domain.DiffSame || k == domain.DiffChanged || k == domain.DiffMissingRight
}

func hasRight(k domain.DiffKind) bool {
	return k == domain.DiffSame || k == domain.DiffChanged || k == domain.DiffMissingLeft
}
