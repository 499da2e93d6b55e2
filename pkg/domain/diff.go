package domain

// DiffKind classifies one aligned row of a line comparison.
type DiffKind string

const (
	// DiffSame marks a line present on both sides.
	DiffSame DiffKind = "same"
	// DiffChanged pairs two different lines at the same alignment position.
	DiffChanged DiffKind = "changed"
	// DiffMissingLeft marks a line that only exists on the right.
	DiffMissingLeft DiffKind = "missing-left"
	// DiffMissingRight marks a line that only exists on the left.
	DiffMissingRight DiffKind = "missing-right"
)

// Mirror returns the kind seen from the other side of the comparison.
func (k DiffKind) Mirror() DiffKind {
	switch k {
	case DiffMissingLeft:
		return DiffMissingRight
	case DiffMissingRight:
		return DiffMissingLeft
	}
	return k
}

// DiffLine is one row of a two-column comparison.
// An absent side is the empty string.
type DiffLine struct {
	Left  string   `json:"left"`
	Right string   `json:"right"`
	Kind  DiffKind `json:"kind"`
}

// Mirror swaps the sides of the row.
func (l DiffLine) Mirror() DiffLine {
	return DiffLine{Left: l.Right, Right: l.Left, Kind: l.Kind.Mirror()}
}
