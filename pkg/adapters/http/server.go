package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/datasource"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/observability"
	"github.com/aretw0/promptloom/pkg/ports"
	"github.com/aretw0/promptloom/pkg/replay"
	"github.com/aretw0/promptloom/pkg/session"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Engine is the part of promptloom.Engine the server needs.
type Engine interface {
	Render(ctx context.Context, p domain.Project, opts ...promptloom.RenderOption) domain.TraceRun
	RenderResolved(ctx context.Context, p domain.Project, opts ...promptloom.RenderOption) domain.TraceRun
	Compare(ctx context.Context, left, right string) (promptloom.Comparison, error)
}

// Server exposes the engine and its stores over HTTP.
type Server struct {
	Engine   Engine
	Projects ports.ProjectStore
	Datasets ports.DatasetStore
	Runs     ports.RunStore
	Sessions *session.Manager
	Replayer *replay.Replayer
	Metrics  *observability.Metrics

	DataSources *datasource.Registry

	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	validate     *validator.Validate
	maxBodyBytes int64
	now          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithProjectStore sets where projects are kept.
func WithProjectStore(store ports.ProjectStore) Option {
	return func(s *Server) {
		s.Projects = store
	}
}

// WithSessionManager sets the session manager.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Server) {
		s.Sessions = m
	}
}

// WithDatasetStore sets where datasets are kept.
func WithDatasetStore(store ports.DatasetStore) Option {
	return func(s *Server) {
		s.Datasets = store
	}
}

// WithRunStore sets where replayed runs are kept. Ignored by the default
// replayer when WithReplayer is also given.
func WithRunStore(store ports.RunStore) Option {
	return func(s *Server) {
		s.Runs = store
	}
}

// WithReplayer sets the dataset replayer.
func WithReplayer(r *replay.Replayer) Option {
	return func(s *Server) {
		s.Replayer = r
	}
}

// WithDataSources sets the data source registry. It should be the one the
// engine's sql:// resolver looks up.
func WithDataSources(reg *datasource.Registry) Option {
	return func(s *Server) {
		s.DataSources = reg
	}
}

// WithMetrics sets the collectors and the registry served on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// WithClock sets the timestamp source for stored projects and datasets.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer builds a Server. Missing stores default to in-memory ones.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{Engine: engine}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.Projects == nil {
		s.Projects = memory.NewProjectStore()
	}
	if s.Datasets == nil {
		s.Datasets = memory.NewDatasetStore()
	}
	if s.Runs == nil {
		s.Runs = memory.NewRunStore()
	}
	if s.Sessions == nil {
		s.Sessions = session.NewManager(memory.NewStore(), session.WithLogger(s.logger))
	}
	if s.Replayer == nil {
		s.Replayer = replay.New(engine, s.Runs, replay.WithLogger(s.logger))
	}
	if s.DataSources == nil {
		s.DataSources = datasource.NewEphemeral(datasource.WithLogger(s.logger))
	}
	if s.Metrics == nil {
		reg := prometheus.NewRegistry()
		s.Metrics = observability.NewMetrics(reg)
		s.gatherer = reg
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.validate = validator.New(validator.WithRequiredStructEnabled())
	s.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return s
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	return NewServer(engine, opts...).Handler(context.Background())
}

// Handler builds the router. Requests are checked against the embedded
// OpenAPI document before they reach the handlers.
func (s *Server) Handler(ctx context.Context) (http.Handler, error) {
	doc, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	validateRequest, err := s.requestValidator(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(s.limitBody)
	r.Use(validateRequest)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		if _, err := w.Write(rawSpec); err != nil {
			s.logger.Error("Failed to write OpenAPI spec", "err", err)
		}
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/healthz", s.Healthz)
	r.Post("/execute", s.Execute)
	r.Post("/diff", s.Diff)

	r.Get("/projects", s.ListProjects)
	r.Get("/projects/{id}", s.GetProject)
	r.Put("/projects/{id}", s.PutProject)
	r.Post("/projects/{id}/render", s.RenderProject)

	r.Get("/sessions", s.ListSessions)
	r.Post("/sessions", s.CreateSession)
	r.Get("/sessions/{id}", s.GetSession)
	r.Post("/sessions/{id}/messages", s.AppendMessages)
	r.Post("/sessions/{id}/render", s.RenderSession)

	r.Get("/datasets", s.ListDatasets)
	r.Get("/datasets/{id}", s.GetDataset)
	r.Put("/datasets/{id}", s.PutDataset)
	r.Post("/datasets/{id}/replay", s.ReplayDataset)
	r.Get("/datasets/{id}/runs", s.ListDatasetRuns)
	r.Get("/runs/{id}", s.GetRun)

	r.Get("/datasources", s.ListDataSources)
	r.Post("/datasources", s.CreateDataSource)
	r.Get("/datasources/{id}", s.GetDataSource)
	r.Put("/datasources/{id}", s.UpdateDataSource)
	r.Delete("/datasources/{id}", s.DeleteDataSource)
	r.Post("/datasources/{id}/test", s.TestDataSource)

	return enableCORS(r), nil
}

// instrument counts requests by route pattern and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads an optional JSON body into dst and validates it.
// An empty body leaves dst untouched.
func (s *Server) decode(r *http.Request, dst any) error {
	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return err
			}
			return &RequestError{Code: "invalid_json", Err: err}
		}
	}
	return s.validate.Struct(dst)
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v, s.logger)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>promptloom API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
