package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/promptloom/pkg/datasource"
	"github.com/aretw0/promptloom/pkg/domain"
)

// ListDataSources handles GET /datasources.
func (s *Server) ListDataSources(w http.ResponseWriter, r *http.Request) {
	list, err := s.DataSources.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, list)
}

// CreateDataSource handles POST /datasources.
func (s *Server) CreateDataSource(w http.ResponseWriter, r *http.Request) {
	var req DataSourceRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.DataSources.Create(r.Context(), datasource.Input{Name: req.Name, Driver: req.Driver, URL: req.URL})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, view)
}

// GetDataSource handles GET /datasources/{id}.
func (s *Server) GetDataSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.DataSources.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, view)
}

// UpdateDataSource handles PUT /datasources/{id}.
func (s *Server) UpdateDataSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req DataSourcePatchRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.DataSources.Update(r.Context(), id, datasource.Patch{Name: req.Name, Driver: req.Driver, URL: req.URL})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, view)
}

// DeleteDataSource handles DELETE /datasources/{id}.
func (s *Server) DeleteDataSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.DataSources.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestDataSource handles POST /datasources/{id}/test. A data source that
// cannot be reached is reported in the body, not as a failed request.
func (s *Server) TestDataSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.DataSources.Test(r.Context(), id)
	if errors.Is(err, domain.ErrDataSourceNotFound) {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		s.logger.Warn("Data source test failed", "datasource_id", id, "err", err)
		s.respond(w, http.StatusOK, DataSourceTestResponse{OK: false, Message: err.Error()})
		return
	}
	s.respond(w, http.StatusOK, DataSourceTestResponse{OK: true})
}
