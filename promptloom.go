package promptloom

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/promptloom/internal/runtime"
	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/resolve"
	"github.com/aretw0/promptloom/pkg/template"
)

const tracerName = "github.com/aretw0/promptloom"

// Engine is the high-level entry point for the promptloom library.
// It wraps the internal composer and the diff package and provides a
// simplified API for consumers. An Engine is safe for concurrent use.
type Engine struct {
	composer    *runtime.Composer
	resolvers   *resolve.Registry
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	tracer      trace.Tracer
	maxMessages int
	maxCells    int

	composerOpts []runtime.ComposerOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the timestamp source of rendered runs.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.composerOpts = append(e.composerOpts, runtime.WithClock(clock))
	}
}

// WithIDGenerator sets the run ID source of rendered runs.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.composerOpts = append(e.composerOpts, runtime.WithIDGenerator(gen))
	}
}

// WithGrammar replaces the `{{name}}` placeholder delimiters.
func WithGrammar(g template.Grammar) Option {
	return func(e *Engine) {
		e.composerOpts = append(e.composerOpts, runtime.WithGrammar(g))
	}
}

// WithResolvers sets the registry used by RenderResolved.
func WithResolvers(reg *resolve.Registry) Option {
	return func(e *Engine) {
		e.resolvers = reg
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithDefaultMaxMessages sets the history cap used when a render does not pass one.
func WithDefaultMaxMessages(n int) Option {
	return func(e *Engine) {
		e.maxMessages = n
	}
}

// WithMaxDiffCells bounds the alignment table built by Compare; inputs
// needing more cells fail with diff.ErrTooLarge. Zero or less disables the
// bound. Defaults to diff.DefaultMaxCells.
func WithMaxDiffCells(n int) Option {
	return func(e *Engine) {
		e.maxCells = n
	}
}

// New initializes a new Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{maxCells: diff.DefaultMaxCells}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.tracer == nil {
		eng.tracer = otel.Tracer(tracerName)
	}
	if eng.resolvers == nil {
		eng.resolvers = resolve.NewRegistry(resolve.WithLogger(eng.logger))
	}
	eng.composer = runtime.NewComposer(eng.composerOpts...)
	return eng
}

// RenderOption tunes a single render.
type RenderOption func(*runtime.RenderOptions)

// WithStyle selects plain (default) or labeled output.
func WithStyle(style domain.OutputStyle) RenderOption {
	return func(o *runtime.RenderOptions) {
		o.Style = style
	}
}

// WithMaxMessages caps the chat history pulled in by dynamic variables.
func WithMaxMessages(n int) RenderOption {
	return func(o *runtime.RenderOptions) {
		o.MaxMessages = n
	}
}

func (e *Engine) renderOptions(opts []RenderOption) runtime.RenderOptions {
	o := runtime.RenderOptions{Style: domain.StylePlain, MaxMessages: e.maxMessages}
	for _, opt := range opts {
		opt(&o)
	}
	o.Style = domain.NormalizeOutputStyle(o.Style)
	return o
}

// Grammar returns the placeholder grammar in use.
func (e *Engine) Grammar() template.Grammar {
	return e.composer.Grammar()
}

// Render composes the project into a transcript. Static values are used as
// they are; dynamic variables are not resolved (see RenderResolved).
// Render never fails: problems are reported in the run messages.
func (e *Engine) Render(ctx context.Context, p domain.Project, opts ...RenderOption) domain.TraceRun {
	return e.render(ctx, p, e.renderOptions(opts))
}

// RenderResolved resolves dynamic variables through the registry, then
// renders. Resolver diagnostics lead the run messages.
func (e *Engine) RenderResolved(ctx context.Context, p domain.Project, opts ...RenderOption) domain.TraceRun {
	o := e.renderOptions(opts)

	ctx, span := e.tracer.Start(ctx, "promptloom.Resolve", trace.WithAttributes(
		attribute.String("project.id", p.ID),
		attribute.Int("variables", len(p.Variables)),
	))
	vars, msgs := e.resolvers.ResolveAll(ctx, p.Variables, o.MaxMessages)
	span.SetAttributes(attribute.Int("variables.resolved", len(vars)))
	span.End()

	o.ExtraMessages = append(o.ExtraMessages, msgs...)
	return e.render(ctx, p.WithVariables(vars), o)
}

func (e *Engine) render(ctx context.Context, p domain.Project, o runtime.RenderOptions) domain.TraceRun {
	ctx, span := e.tracer.Start(ctx, "promptloom.Render", trace.WithAttributes(
		attribute.String("project.id", p.ID),
		attribute.String("style", string(o.Style)),
		attribute.Int("nodes", len(p.Nodes)),
	))
	defer span.End()

	started := time.Now()
	if e.hooks.OnRenderStart != nil {
		e.hooks.OnRenderStart(ctx, &domain.RenderEvent{
			EventBase: domain.EventBase{Timestamp: started, Type: domain.EventRenderStart},
			ProjectID: p.ID,
			Style:     o.Style,
			NodeCount: len(p.Nodes),
		})
	}

	run := e.composer.Compose(p, o)
	logger := e.logger.With("project", p.ID, "run_id", run.RunID)

	if e.hooks.OnSegment != nil {
		for _, seg := range run.Segments {
			e.hooks.OnSegment(ctx, &domain.SegmentEvent{
				EventBase: domain.EventBase{Timestamp: run.CreatedAt, Type: domain.EventSegment, RunID: run.RunID},
				NodeID:    seg.NodeID,
				Kind:      seg.Kind,
				Missing:   seg.MissingVariables,
			})
		}
	}

	counts := run.CountBySeverity()
	span.SetAttributes(
		attribute.String("run.id", run.RunID),
		attribute.Int("messages.warn", counts[domain.SeverityWarn]),
		attribute.Int("messages.error", counts[domain.SeverityError]),
	)
	if counts[domain.SeverityError] > 0 {
		span.SetStatus(codes.Error, "render produced error diagnostics")
		logger.Warn("Render produced errors", "errors", counts[domain.SeverityError], "warnings", counts[domain.SeverityWarn])
	} else {
		logger.Debug("Render complete", "segments", len(run.Segments), "warnings", counts[domain.SeverityWarn])
	}

	if e.hooks.OnRenderComplete != nil {
		e.hooks.OnRenderComplete(ctx, &domain.RenderEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRenderComplete, RunID: run.RunID},
			ProjectID: p.ID,
			Style:     o.Style,
			NodeCount: len(p.Nodes),
			Warnings:  counts[domain.SeverityWarn],
			Errors:    counts[domain.SeverityError],
			Duration:  time.Since(started),
		})
	}
	return run
}

// Diff aligns two texts line by line.
func (e *Engine) Diff(left, right string) []domain.DiffLine {
	return diff.Lines(left, right)
}

// Comparison is a diff with its summary.
type Comparison struct {
	Lines   []domain.DiffLine `json:"lines"`
	Summary diff.Summary      `json:"summary"`
}

// Compare validates both texts as UTF-8, checks the alignment fits the
// engine's cell budget and diffs them.
func (e *Engine) Compare(ctx context.Context, left, right string) (Comparison, error) {
	if err := diff.Validate(left); err != nil {
		return Comparison{}, fmt.Errorf("left: %w", err)
	}
	if err := diff.Validate(right); err != nil {
		return Comparison{}, fmt.Errorf("right: %w", err)
	}

	ctx, span := e.tracer.Start(ctx, "promptloom.Diff")
	defer span.End()

	a, b := diff.SplitLines(left), diff.SplitLines(right)
	if err := diff.CheckSize(len(a), len(b), e.maxCells); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diff input too large")
		return Comparison{}, err
	}

	started := time.Now()
	lines := diff.Align(a, b)
	summary := diff.Stats(lines)
	span.SetAttributes(
		attribute.Int("lines.left", summary.LeftLines()),
		attribute.Int("lines.right", summary.RightLines()),
		attribute.Int("lines.changed", summary.Changed),
	)

	if e.hooks.OnDiff != nil {
		e.hooks.OnDiff(ctx, &domain.DiffEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventDiffComplete},
			LeftLines:  summary.LeftLines(),
			RightLines: summary.RightLines(),
			Changed:    summary.Changed + summary.MissingLeft + summary.MissingRight,
			Duration:   time.Since(started),
		})
	}
	return Comparison{Lines: lines, Summary: summary}, nil
}

// CompareRuns diffs the text of two rendered runs.
func (e *Engine) CompareRuns(ctx context.Context, left, right domain.TraceRun) (Comparison, error) {
	return e.Compare(ctx, left.Text, right.Text)
}
