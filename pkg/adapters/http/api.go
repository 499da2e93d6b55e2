package http

import (
	"encoding/json"

	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
)

// RenderOptions tunes a render request.
type RenderOptions struct {
	OutputStyle string `json:"outputStyle" validate:"omitempty,oneof=plain labeled"`
	MaxMessages int    `json:"maxMessages" validate:"gte=0"`
	Resolve     bool   `json:"resolve"`
}

// NodeInput is a node of an ad-hoc render.
type NodeInput struct {
	ID      string          `json:"id" validate:"required"`
	Label   string          `json:"label"`
	Kind    domain.NodeKind `json:"kind"`
	Content string          `json:"content"`
}

// VariableInput is a variable of an ad-hoc render.
type VariableInput struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Value    string `json:"value"`
	Type     string `json:"type" validate:"omitempty,oneof=static dynamic"`
	Resolver string `json:"resolver" validate:"required_if=Type dynamic"`
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	RenderOptions
	Nodes     []NodeInput     `json:"nodes" validate:"dive"`
	Variables []VariableInput `json:"variables" validate:"dive"`
	Edges     []domain.Edge   `json:"edges"`
}

func (req ExecuteRequest) project() domain.Project {
	p := domain.Project{
		Nodes:     make([]domain.ProjectNode, len(req.Nodes)),
		Edges:     req.Edges,
		Variables: make([]domain.ProjectVariable, len(req.Variables)),
	}
	for i, n := range req.Nodes {
		kind := n.Kind
		if kind == "" {
			kind = domain.KindText
		}
		p.Nodes[i] = domain.ProjectNode{ID: n.ID, Label: n.Label, Kind: kind, Content: n.Content}
	}
	for i, v := range req.Variables {
		p.Variables[i] = domain.ProjectVariable{
			ID:       v.ID,
			Name:     v.Name,
			Value:    v.Value,
			Type:     domain.VariableType(v.Type),
			Resolver: v.Resolver,
		}
	}
	return p
}

// DiffRequest is the body of POST /diff.
type DiffRequest struct {
	Left    string `json:"left"`
	Right   string `json:"right"`
	Unified bool   `json:"unified"`
	Context *int   `json:"context" validate:"omitempty,gte=0,lte=100"`
}

// DiffResponse carries the aligned rows, their summary and, on request, a
// unified diff of the same rows.
type DiffResponse struct {
	Lines   []domain.DiffLine `json:"lines"`
	Summary diff.Summary      `json:"summary"`
	Unified string            `json:"unified,omitempty"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Name string `json:"name" validate:"max=200"`
}

// MessageInput is one message of AppendMessagesRequest.
type MessageInput struct {
	Role    string `json:"role" validate:"max=64"`
	Content string `json:"content" validate:"required"`
}

// AppendMessagesRequest is the body of POST /sessions/{id}/messages.
type AppendMessagesRequest struct {
	Messages []MessageInput `json:"messages" validate:"required,min=1,dive"`
}

// RenderSessionRequest is the body of POST /sessions/{id}/render.
type RenderSessionRequest struct {
	MaxMessages int `json:"maxMessages" validate:"gte=0"`
}

// RenderSessionResponse carries the session transcript.
type RenderSessionResponse struct {
	Value string `json:"value"`
}

// DatasetRequest is the body of PUT /datasets/{id}.
type DatasetRequest struct {
	Name string            `json:"name" validate:"max=200"`
	Rows []json.RawMessage `json:"rows" validate:"required"`
}

// ReplayRequest is the body of POST /datasets/{id}/replay.
// Limit defaults to 20 and is capped at 200.
type ReplayRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Offset    int    `json:"offset" validate:"gte=0"`
	Limit     int    `json:"limit" validate:"gte=0"`
}

// DataSourceRequest is the body of POST /datasources. An empty driver is
// taken from the URL scheme.
type DataSourceRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Driver string `json:"driver" validate:"omitempty,oneof=sqlite sqlite3 postgres postgresql"`
	URL    string `json:"url" validate:"required"`
}

// DataSourcePatchRequest is the body of PUT /datasources/{id}. Absent
// fields keep their stored value.
type DataSourcePatchRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=200"`
	Driver *string `json:"driver" validate:"omitempty,oneof=sqlite sqlite3 postgres postgresql"`
	URL    *string `json:"url" validate:"omitempty,min=1"`
}

// DataSourceTestResponse reports whether a data source answered a ping.
type DataSourceTestResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Health is the body of GET /healthz.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
