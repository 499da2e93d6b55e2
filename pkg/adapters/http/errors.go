package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aretw0/promptloom/internal/compiler"
	"github.com/aretw0/promptloom/pkg/datasource"
	"github.com/aretw0/promptloom/pkg/diff"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/session"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Issues  []string `json:"issues,omitempty"`
}

// RequestError marks a malformed request. It maps to 400.
type RequestError struct {
	Code string
	Err  error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

var notFound = []struct {
	err  error
	code string
}{
	{domain.ErrProjectNotFound, "project_not_found"},
	{domain.ErrSessionNotFound, "session_not_found"},
	{domain.ErrDatasetNotFound, "dataset_not_found"},
	{domain.ErrRunNotFound, "run_not_found"},
	{domain.ErrDataSourceNotFound, "datasource_not_found"},
}

// classify maps an error to its status code and response body.
func classify(err error) (int, ErrorResponse) {
	for _, nf := range notFound {
		if errors.Is(err, nf.err) {
			return http.StatusNotFound, ErrorResponse{Error: nf.code, Message: err.Error()}
		}
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload_too_large", Message: err.Error()}
	}
	if errors.Is(err, diff.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: "diff_too_large", Message: err.Error()}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		issues := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, fieldPath(fe)+": failed on '"+fe.Tag()+"'")
		}
		return http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "request validation failed", Issues: issues}
	}

	var cerr *compiler.ValidationError
	if errors.As(err, &cerr) {
		issues := make([]string, 0, len(cerr.Issues))
		for _, is := range cerr.Issues {
			issues = append(issues, is.String())
		}
		return http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "project validation failed", Issues: issues}
	}

	if errors.Is(err, datasource.ErrInvalid) {
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_datasource", Message: err.Error()}
	}
	if errors.Is(err, datasource.ErrReadOnly) {
		return http.StatusConflict, ErrorResponse{Error: "datasource_read_only", Message: err.Error()}
	}

	if errors.Is(err, session.ErrEmptyMessage) {
		return http.StatusBadRequest, ErrorResponse{Error: "empty_message", Message: err.Error()}
	}

	var rerr *RequestError
	if errors.As(err, &rerr) {
		return http.StatusBadRequest, ErrorResponse{Error: rerr.Code, Message: rerr.Error()}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()}
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
