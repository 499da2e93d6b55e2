package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRenderStart    EventType = "render_start"
	EventSegment        EventType = "segment_rendered"
	EventRenderComplete EventType = "render_complete"
	EventDiffComplete   EventType = "diff_complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
}

// RenderEvent describes a whole render.
type RenderEvent struct {
	EventBase
	ProjectID string        `json:"project_id"`
	Style     OutputStyle   `json:"style"`
	NodeCount int           `json:"node_count"`
	Warnings  int           `json:"warnings,omitempty"`
	Errors    int           `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// SegmentEvent describes one rendered node.
type SegmentEvent struct {
	EventBase
	NodeID  string   `json:"node_id"`
	Kind    NodeKind `json:"kind"`
	Missing []string `json:"missing,omitempty"`
}

// DiffEvent describes a finished comparison.
type DiffEvent struct {
	EventBase
	LeftLines  int           `json:"left_lines"`
	RightLines int           `json:"right_lines"`
	Changed    int           `json:"changed"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRenderStart    func(context.Context, *RenderEvent)
	OnSegment        func(context.Context, *SegmentEvent)
	OnRenderComplete func(context.Context, *RenderEvent)
	OnDiff           func(context.Context, *DiffEvent)
}
