// Package replay renders a project once per dataset row, with each row
// overriding project variables, and records every render as a run.
package replay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

const (
	DefaultLimit       = 20
	MaxLimit           = 200
	DefaultConcurrency = 4
)

// ErrInvalidRow marks rows that are not JSON objects (or whose "variables"
// field is not an object).
var ErrInvalidRow = errors.New("row_invalid")

// Window selects a slice of dataset rows.
type Window struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// bounds clamps the window to n rows. Limit defaults to 20 and is capped at 200.
func (w Window) bounds(n int) (start, end int) {
	limit := w.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	start = min(max(w.Offset, 0), n)
	end = min(start+limit, n)
	return start, end
}

// Renderer is the part of promptloom.Engine the replayer needs.
type Renderer interface {
	RenderResolved(ctx context.Context, p domain.Project, opts ...promptloom.RenderOption) domain.TraceRun
}

// Replayer renders dataset rows and persists the runs.
type Replayer struct {
	renderer    Renderer
	runs        ports.RunStore
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replayer) {
		r.logger = logger
	}
}

// WithClock sets the time source for run IDs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Replayer) {
		r.now = now
	}
}

// WithConcurrency bounds how many rows render at once.
func WithConcurrency(n int) Option {
	return func(r *Replayer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New creates a Replayer that renders with renderer and saves into runs.
func New(renderer Renderer, runs ports.RunStore, opts ...Option) *Replayer {
	r := &Replayer{
		renderer:    renderer,
		runs:        runs,
		now:         func() time.Time { return time.Now().UTC() },
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Replay renders the window of dataset rows against project in labeled
// style and saves one RunRecord per row. Summaries come back in row order.
// Rows that are not objects produce failed runs rendered without variables.
func (r *Replayer) Replay(ctx context.Context, project domain.Project, dataset domain.Dataset, w Window) ([]domain.RunSummary, error) {
	ordered := compiler.Order(project)
	start, end := w.bounds(len(dataset.Rows))
	logger := r.logger.With("project", project.ID, "dataset", dataset.ID)
	logger.Debug("Replay started", "offset", start, "rows", end-start)

	summaries := make([]domain.RunSummary, end-start)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := start; i < end; i++ {
		g.Go(func() error {
			rec := r.replayRow(gctx, ordered, dataset, i)
			if err := r.runs.Save(gctx, rec); err != nil {
				return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
			}
			if rec.Status == domain.RunFailed {
				logger.Warn("Row is not an object", "row", i, "run_id", rec.RunID)
			}
			summaries[i-start] = rec.Summary()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Replay complete", "runs", len(summaries))
	return summaries, nil
}

func (r *Replayer) replayRow(ctx context.Context, p domain.Project, dataset domain.Dataset, row int) domain.RunRecord {
	createdAt := r.now()
	runID := fmt.Sprintf("run_%d_%d", createdAt.UnixMilli(), row)

	rec := domain.RunRecord{
		RunID:     runID,
		CreatedAt: createdAt,
		ProjectID: p.ID,
		DatasetID: dataset.ID,
		RowIndex:  row,
		Status:    domain.RunSucceeded,
	}

	overrides, err := RowOverrides(dataset.Rows[row])
	var trace domain.TraceRun
	if err != nil {
		trace = r.renderer.RenderResolved(ctx, p.WithVariables(nil), promptloom.WithStyle(domain.StyleLabeled))
		rec.Status = domain.RunFailed
		rec.OutputDigest = Digest("")
	} else {
		trace = r.renderer.RenderResolved(ctx, ApplyOverrides(p, overrides), promptloom.WithStyle(domain.StyleLabeled))
		rec.OutputDigest = Digest(trace.Text)
	}
	trace.RunID = runID
	trace.CreatedAt = createdAt

	rec.Trace = trace
	rec.MissingVariablesCount = len(trace.MissingVariables())
	return rec
}

// RowOverrides extracts variable overrides from a dataset row. A row is
// either a flat object or an object with a "variables" object. Keys starting
// with "_" are ignored; non-string values are converted to their JSON text.
func RowOverrides(row json.RawMessage) (map[string]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(row, &obj); err != nil || obj == nil {
		return nil, ErrInvalidRow
	}
	if vars, ok := obj["variables"]; ok {
		obj = nil
		if err := json.Unmarshal(vars, &obj); err != nil || obj == nil {
			return nil, ErrInvalidRow
		}
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = jsonText(v)
	}
	return out, nil
}

func jsonText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return strings.TrimSpace(string(v))
	}
	return buf.String()
}

// ApplyOverrides returns a copy of p where every variable named in overrides
// becomes static with the override value. Names the project does not
// declare are appended in sorted order.
func ApplyOverrides(p domain.Project, overrides map[string]string) domain.Project {
	vars := append([]domain.ProjectVariable(nil), p.Variables...)
	declared := make(map[string]bool, len(vars))
	for i, v := range vars {
		declared[v.Name] = true
		if value, ok := overrides[v.Name]; ok {
			vars[i].Value = value
			vars[i].Type = domain.VariableStatic
			vars[i].Resolver = ""
		}
	}

	extra := make([]string, 0, len(overrides))
	for name := range overrides {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		vars = append(vars, domain.ProjectVariable{
			ID:    "row:" + name,
			Name:  name,
			Value: overrides[name],
			Type:  domain.VariableStatic,
		})
	}
	return p.WithVariables(vars)
}

// Digest is the base64 SHA-256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return base64.StdEncoding.EncodeToString(sum[:])
}
