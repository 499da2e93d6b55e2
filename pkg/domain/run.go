package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// RunStatus is the outcome of a replayed row.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Dataset is a list of JSON rows used to replay a project with overrides.
type Dataset struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Rows      []json.RawMessage `json:"rows"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// RunRecord is a persisted render of one dataset row.
type RunRecord struct {
	RunID                 string    `json:"runId"`
	CreatedAt             time.Time `json:"createdAt"`
	ProjectID             string    `json:"projectId"`
	DatasetID             string    `json:"datasetId"`
	RowIndex              int       `json:"rowIndex"`
	Status                RunStatus `json:"status"`
	OutputDigest          string    `json:"outputDigest"`
	MissingVariablesCount int       `json:"missingVariablesCount"`
	Trace                 TraceRun  `json:"trace"`
}

// RunSummary is the listing form of a RunRecord.
type RunSummary struct {
	RunID                 string    `json:"runId"`
	CreatedAt             time.Time `json:"createdAt"`
	RowIndex              int       `json:"rowIndex"`
	Status                RunStatus `json:"status"`
	OutputDigest          string    `json:"outputDigest"`
	MissingVariablesCount int       `json:"missingVariablesCount"`
}

// Summary returns the listing form of r.
func (r RunRecord) Summary() RunSummary {
	return RunSummary{
		RunID:                 r.RunID,
		CreatedAt:             r.CreatedAt,
		RowIndex:              r.RowIndex,
		Status:                r.Status,
		OutputDigest:          r.OutputDigest,
		MissingVariablesCount: r.MissingVariablesCount,
	}
}

// RunFilter narrows a run listing. Zero values mean "any".
type RunFilter struct {
	DatasetID string
	RowIndex  *int
	Limit     int
}

// Match reports whether r passes the filter (Limit is applied by the store).
func (f RunFilter) Match(r RunRecord) bool {
	if f.DatasetID != "" && r.DatasetID != f.DatasetID {
		return false
	}
	if f.RowIndex != nil && r.RowIndex != *f.RowIndex {
		return false
	}
	return true
}

// SelectRuns filters records, orders them newest first and applies the limit.
// Stores without a native index share it.
func SelectRuns(records []RunRecord, filter RunFilter) []RunSummary {
	out := make([]RunSummary, 0, len(records))
	for _, r := range records {
		if filter.Match(r) {
			out = append(out, r.Summary())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RunID > out[j].RunID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
