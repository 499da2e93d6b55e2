package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/promptloom/pkg/domain"
)

// LogHooks returns lifecycle hooks that log each event on logger.
// Segments are logged at debug level, everything else at info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRenderStart: func(ctx context.Context, e *domain.RenderEvent) {
			logger.DebugContext(ctx, "render_start",
				"project", e.ProjectID,
				"style", e.Style,
				"nodes", e.NodeCount,
			)
		},
		OnSegment: func(ctx context.Context, e *domain.SegmentEvent) {
			logger.DebugContext(ctx, "segment_rendered",
				"run_id", e.RunID,
				"node_id", e.NodeID,
				"kind", e.Kind,
				"missing", len(e.Missing),
			)
		},
		OnRenderComplete: func(ctx context.Context, e *domain.RenderEvent) {
			logger.InfoContext(ctx, "render_complete",
				"project", e.ProjectID,
				"run_id", e.RunID,
				"warnings", e.Warnings,
				"errors", e.Errors,
				"duration", e.Duration,
			)
		},
		OnDiff: func(ctx context.Context, e *domain.DiffEvent) {
			logger.InfoContext(ctx, "diff_complete",
				"left_lines", e.LeftLines,
				"right_lines", e.RightLines,
				"changed", e.Changed,
				"duration", e.Duration,
			)
		},
	}
}

// Combine merges hook sets. Each callback runs the non-nil callbacks of
// every set in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnRenderStart = chain(out.OnRenderStart, h.OnRenderStart)
		out.OnSegment = chain(out.OnSegment, h.OnSegment)
		out.OnRenderComplete = chain(out.OnRenderComplete, h.OnRenderComplete)
		out.OnDiff = chain(out.OnDiff, h.OnDiff)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}
