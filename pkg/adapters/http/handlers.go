package http

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/replay"
)

func pathID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return "", &RequestError{Code: "invalid_parameter", Err: err}
	}
	return id, nil
}

func (o RenderOptions) options() []promptloom.RenderOption {
	style, _ := domain.ParseOutputStyle(o.OutputStyle)
	opts := []promptloom.RenderOption{promptloom.WithStyle(style)}
	if o.MaxMessages > 0 {
		opts = append(opts, promptloom.WithMaxMessages(o.MaxMessages))
	}
	return opts
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, Health{Status: "ok", Version: strings.TrimSpace(promptloom.Version)})
}

// Execute handles POST /execute: it renders the nodes and variables of the
// request body without storing anything.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p := compiler.Order(req.project())
	var run domain.TraceRun
	if req.Resolve {
		run = s.Engine.RenderResolved(r.Context(), p, req.options()...)
	} else {
		run = s.Engine.Render(r.Context(), p, req.options()...)
	}
	s.respond(w, http.StatusOK, run)
}

// Diff handles POST /diff.
func (s *Server) Diff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	cmp, err := s.Engine.Compare(r.Context(), req.Left, req.Right)
	if errors.Is(err, diff.ErrTooLarge) {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		s.writeError(w, r, &RequestError{Code: "invalid_text", Err: err})
		return
	}
	resp := DiffResponse{Lines: cmp.Lines, Summary: cmp.Summary}
	if req.Unified {
		ctxLines := diff.DefaultContext
		if req.Context != nil {
			ctxLines = *req.Context
		}
		resp.Unified, err = diff.Unified("left", "right", cmp.Lines, ctxLines)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.respond(w, http.StatusOK, resp)
}

// ListProjects handles GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.Projects.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, list)
}

// GetProject handles GET /projects/{id}.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Projects.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, p)
}

// PutProject handles PUT /projects/{id}. The body is a project document in
// the native layout or the flow editor export; the path ID wins over any ID
// in the document.
func (s *Server) PutProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := compiler.Decode(data, compiler.FormatJSON)
	if err != nil {
		s.writeError(w, r, &RequestError{Code: "invalid_project", Err: err})
		return
	}
	p.ID = id
	if p.Name == "" {
		p.Name = id
	}
	if err := compiler.Validate(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.Projects.Save(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("Project saved", "project", id, "nodes", len(p.Nodes))
	s.respond(w, http.StatusOK, p)
}

// RenderProject handles POST /projects/{id}/render. Dynamic variables are
// resolved before rendering.
func (s *Server) RenderProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req RenderOptions
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Projects.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	run := s.Engine.RenderResolved(r.Context(), compiler.Order(p), req.options()...)
	s.respond(w, http.StatusOK, run)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.Sessions.Summaries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, list)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.Create(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, sess)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, sess)
}

// AppendMessages handles POST /sessions/{id}/messages.
func (s *Server) AppendMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req AppendMessagesRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	msgs := make([]domain.SessionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = domain.SessionMessage{Role: m.Role, Content: m.Content}
	}
	sess, err := s.Sessions.AppendMessages(r.Context(), id, msgs...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, sess)
}

// RenderSession handles POST /sessions/{id}/render.
func (s *Server) RenderSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req RenderSessionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	text, err := s.Sessions.Render(r.Context(), id, req.MaxMessages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, RenderSessionResponse{Value: text})
}

// ListDatasets handles GET /datasets.
func (s *Server) ListDatasets(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Datasets.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	slices.Sort(ids)
	s.respond(w, http.StatusOK, ids)
}

// GetDataset handles GET /datasets/{id}.
func (s *Server) GetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ds, err := s.Datasets.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, ds)
}

// PutDataset handles PUT /datasets/{id}. CreatedAt survives replacement.
func (s *Server) PutDataset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req DatasetRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	now := s.now().UTC()
	ds := domain.Dataset{ID: id, Name: req.Name, Rows: req.Rows, CreatedAt: now, UpdatedAt: now}
	prev, err := s.Datasets.Load(r.Context(), id)
	switch {
	case err == nil:
		ds.CreatedAt = prev.CreatedAt
	case !errors.Is(err, domain.ErrDatasetNotFound):
		s.writeError(w, r, err)
		return
	}
	if ds.Name == "" {
		ds.Name = id
	}

	if err := s.Datasets.Save(r.Context(), ds); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, ds)
}

// ReplayDataset handles POST /datasets/{id}/replay.
func (s *Server) ReplayDataset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ReplayRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ds, err := s.Datasets.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Projects.Load(r.Context(), req.ProjectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	runs, err := s.Replayer.Replay(r.Context(), p, ds, replay.Window{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Metrics.ObserveRuns(runs)
	s.respond(w, http.StatusOK, runs)
}

// ListDatasetRuns handles GET /datasets/{id}/runs?projectId=&rowIndex=&limit=.
func (s *Server) ListDatasetRuns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	var projectID string
	if err := runtime.BindQueryParameter("form", true, true, "projectId", query, &projectID); err != nil {
		s.writeError(w, r, &RequestError{Code: "invalid_parameter", Err: err})
		return
	}
	var rowIndex, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "rowIndex", query, &rowIndex); err != nil {
		s.writeError(w, r, &RequestError{Code: "invalid_parameter", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		s.writeError(w, r, &RequestError{Code: "invalid_parameter", Err: err})
		return
	}

	filter := domain.RunFilter{DatasetID: id, RowIndex: rowIndex}
	if limit != nil {
		filter.Limit = *limit
	}
	runs, err := s.Runs.List(r.Context(), projectID, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.Runs.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, rec)
}
