/*
Package diff compares two texts line by line.

Lines aligns both inputs on a longest common subsequence of whole lines and
classifies every row as same, changed, missing-left or missing-right. The
alignment is deterministic and symmetric: swapping the inputs mirrors the
result row for row.

On top of the row model the package offers summary counts (Stats), an
intra-line word comparison for changed rows (Words) and a unified diff
rendering (Unified).
*/
package diff
