package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/logging"
	httpadapter "github.com/aretw0/promptloom/pkg/adapters/http"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/observability"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...httpadapter.Option) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	eng := promptloom.New(
		promptloom.WithLogger(logging.NewNop()),
		promptloom.WithLifecycleHooks(metrics.Hooks()),
		promptloom.WithClock(func() time.Time { return fixedTime }),
		promptloom.WithIDGenerator(func() string { return "run-1" }),
	)
	base := []httpadapter.Option{
		httpadapter.WithMetrics(metrics, reg),
		httpadapter.WithClock(func() time.Time { return fixedTime }),
	}
	handler, err := httpadapter.NewHandler(eng, append(base, opts...)...)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeAs[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)
	resp, data := do(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decodeAs[httpadapter.Health](t, data)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, strings.TrimSpace(promptloom.Version), health.Version)
}

func TestServer_Execute(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{
		"nodes": []map[string]any{
			{"id": "n1", "label": "System", "kind": "system", "content": "Hello {{name}}"},
			{"id": "n2", "label": "User", "kind": "user", "content": "I am {{name}}."},
			{"id": "n3", "label": "Tool", "kind": "tool", "content": "Tool sees {{missing}}."},
		},
		"variables":   []map[string]any{{"id": "v1", "name": "name", "value": "Alice"}},
		"outputStyle": "labeled",
	}

	resp, data := do(t, srv, http.MethodPost, "/execute", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	run := decodeAs[domain.TraceRun](t, data)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, domain.StyleLabeled, run.OutputStyle)
	require.Len(t, run.Segments, 3)
	assert.Equal(t, "Hello Alice", run.Segments[0].Rendered)
	assert.Equal(t, "Hello {{name}}", run.Segments[0].Template)
	assert.Empty(t, run.Segments[0].MissingVariables)
	assert.Equal(t, "Tool sees {{missing}}.", run.Segments[2].Rendered)
	assert.Equal(t, []string{"missing"}, run.Segments[2].MissingVariables)
	require.NotEmpty(t, run.Segments[2].Messages)
	assert.Equal(t, domain.CodeMissingVariable, run.Segments[2].Messages[0].Code)
	assert.True(t, strings.HasPrefix(run.Text, "[system] System\nHello Alice"), run.Text)
}

func TestServer_ExecuteOrdersByEdges(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{
		"nodes": []map[string]any{
			{"id": "b", "content": "second"},
			{"id": "a", "content": "first"},
		},
		"edges": []map[string]any{{"source": "a", "target": "b"}},
	}
	resp, data := do(t, srv, http.MethodPost, "/execute", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	run := decodeAs[domain.TraceRun](t, data)
	assert.Equal(t, "first\n\nsecond", run.Text)
}

func TestServer_ExecuteRejectsInvalidBodies(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		body any
		code string
	}{
		{
			name: "malformed json",
			body: `{"nodes": [`,
			code: "invalid_request",
		},
		{
			name: "node without id",
			body: map[string]any{"nodes": []map[string]any{{"content": "x"}}},
			code: "invalid_request",
		},
		{
			name: "unknown output style",
			body: map[string]any{"nodes": []any{}, "outputStyle": "fancy"},
			code: "invalid_request",
		},
		{
			name: "dynamic variable without resolver",
			body: map[string]any{
				"nodes":     []any{},
				"variables": []map[string]any{{"name": "history", "type": "dynamic"}},
			},
			code: "validation_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, srv, http.MethodPost, "/execute", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			errResp := decodeAs[httpadapter.ErrorResponse](t, data)
			assert.Equal(t, tt.code, errResp.Error)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestServer_BodyLimit(t *testing.T) {
	srv := newTestServer(t, httpadapter.WithMaxBodyBytes(64))
	body := map[string]any{
		"nodes": []map[string]any{{"id": "n", "content": strings.Repeat("x", 256)}},
	}
	resp, _ := do(t, srv, http.MethodPost, "/execute", body)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, resp.StatusCode)
}

func TestServer_Diff(t *testing.T) {
	srv := newTestServer(t)
	resp, data := do(t, srv, http.MethodPost, "/diff", map[string]any{
		"left":    "a\nb\nc",
		"right":   "a\nx\nc\nd",
		"unified": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	out := decodeAs[httpadapter.DiffResponse](t, data)
	assert.Equal(t, []domain.DiffLine{
		{Left: "a", Right: "a", Kind: domain.DiffSame},
		{Left: "b", Right: "x", Kind: domain.DiffChanged},
		{Left: "c", Right: "c", Kind: domain.DiffSame},
		{Left: "", Right: "d", Kind: domain.DiffMissingLeft},
	}, out.Lines)
	assert.Equal(t, 2, out.Summary.Same)
	assert.Contains(t, out.Unified, "--- left")
	assert.Contains(t, out.Unified, "-b\n+x")

	resp, _ = do(t, srv, http.MethodPost, "/diff", map[string]any{"left": "a"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DiffRejectsOversizedAlignment(t *testing.T) {
	srv := newTestServer(t)

	// About 96 KiB of body, far below the body limit, but 16384 x 16384 lines.
	resp, data := do(t, srv, http.MethodPost, "/diff", map[string]any{
		"left":  strings.Repeat("a\n", 16384),
		"right": strings.Repeat("b\n", 16384),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "diff_too_large", decodeAs[httpadapter.ErrorResponse](t, data).Error)
}

func TestServer_Projects(t *testing.T) {
	srv := newTestServer(t)

	resp, data := do(t, srv, http.MethodGet, "/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "project_not_found", decodeAs[httpadapter.ErrorResponse](t, data).Error)

	doc := map[string]any{
		"name": "Greeter",
		"nodes": []map[string]any{
			{"id": "sys", "label": "System", "kind": "system", "content": "You greet {{who}}."},
		},
		"variables": []map[string]any{{"id": "v1", "name": "who", "value": "everyone"}},
	}
	resp, data = do(t, srv, http.MethodPut, "/projects/greeter", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	saved := decodeAs[domain.Project](t, data)
	assert.Equal(t, "greeter", saved.ID)
	assert.Equal(t, fixedTime, saved.UpdatedAt)

	resp, data = do(t, srv, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeAs[[]domain.ProjectSummary](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, "Greeter", list[0].Name)

	resp, data = do(t, srv, http.MethodPost, "/projects/greeter/render", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	run := decodeAs[domain.TraceRun](t, data)
	assert.Equal(t, "You greet everyone.", run.Text)
	require.NotEmpty(t, run.Messages)
	assert.Equal(t, domain.CodeVariableStatic, run.Messages[0].Code)

	resp, data = do(t, srv, http.MethodPost, "/projects/greeter/render", map[string]any{"outputStyle": "labeled"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "[system] System\nYou greet everyone.", decodeAs[domain.TraceRun](t, data).Text)

	resp, _ = do(t, srv, http.MethodPost, "/projects/missing/render", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PutProjectValidates(t *testing.T) {
	srv := newTestServer(t)
	doc := map[string]any{
		"nodes": []map[string]any{
			{"id": "dup", "kind": "user", "content": "a"},
			{"id": "dup", "kind": "user", "content": "b"},
		},
	}
	resp, data := do(t, srv, http.MethodPut, "/projects/bad", doc)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decodeAs[httpadapter.ErrorResponse](t, data)
	assert.Equal(t, "validation_failed", errResp.Error)
	assert.NotEmpty(t, errResp.Issues)
}

func TestServer_Sessions(t *testing.T) {
	srv := newTestServer(t)

	resp, data := do(t, srv, http.MethodPost, "/sessions", map[string]any{"name": "support"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	sess := decodeAs[domain.Session](t, data)
	require.NotEmpty(t, sess.ID)

	resp, data = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/messages", map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Len(t, decodeAs[domain.Session](t, data).Messages, 2)

	resp, data = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/render", map[string]any{"maxMessages": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "[Assistant]: hello", decodeAs[httpadapter.RenderSessionResponse](t, data).Value)

	resp, data = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/render", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "[User]: hi\n[Assistant]: hello", decodeAs[httpadapter.RenderSessionResponse](t, data).Value)

	resp, data = do(t, srv, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summaries := decodeAs[[]domain.SessionSummary](t, data)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].MessageCount)

	resp, data = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/messages", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": ""}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", decodeAs[httpadapter.ErrorResponse](t, data).Error)

	resp, _ = do(t, srv, http.MethodGet, "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/sessions/nope/messages", map[string]any{
		"messages": []map[string]any{{"content": "x"}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_DatasetReplay(t *testing.T) {
	srv := newTestServer(t)

	resp, data := do(t, srv, http.MethodPut, "/projects/p1", map[string]any{
		"nodes":     []map[string]any{{"id": "u", "kind": "user", "label": "Q", "content": "Hi {{name}}"}},
		"variables": []map[string]any{{"id": "v", "name": "name", "value": "default"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = do(t, srv, http.MethodPut, "/datasets/d1", map[string]any{
		"name": "names",
		"rows": []any{
			map[string]any{"name": "Ada"},
			map[string]any{"variables": map[string]any{"name": "Grace"}},
			"not an object",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	ds := decodeAs[domain.Dataset](t, data)
	assert.Equal(t, fixedTime, ds.CreatedAt)

	resp, data = do(t, srv, http.MethodGet, "/datasets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"d1"}, decodeAs[[]string](t, data))

	resp, data = do(t, srv, http.MethodPost, "/datasets/d1/replay", map[string]any{"projectId": "p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	runs := decodeAs[[]domain.RunSummary](t, data)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, i, r.RowIndex)
	}
	assert.Equal(t, domain.RunSucceeded, runs[0].Status)
	assert.Equal(t, domain.RunFailed, runs[2].Status)

	resp, data = do(t, srv, http.MethodGet, "/runs/"+runs[1].RunID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	rec := decodeAs[domain.RunRecord](t, data)
	assert.Equal(t, "[user] Q\nHi Grace", rec.Trace.Text)
	assert.Equal(t, "d1", rec.DatasetID)

	resp, data = do(t, srv, http.MethodGet, "/datasets/d1/runs?projectId=p1&rowIndex=0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	listed := decodeAs[[]domain.RunSummary](t, data)
	require.Len(t, listed, 1)
	assert.Equal(t, runs[0].RunID, listed[0].RunID)

	resp, data = do(t, srv, http.MethodGet, "/datasets/d1/runs?projectId=p1&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Len(t, decodeAs[[]domain.RunSummary](t, data), 2)

	resp, _ = do(t, srv, http.MethodGet, "/datasets/d1/runs", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "projectId is required")

	resp, _ = do(t, srv, http.MethodPost, "/datasets/d1/replay", map[string]any{"projectId": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, data = do(t, srv, http.MethodPost, "/datasets/missing/replay", map[string]any{"projectId": "p1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "dataset_not_found", decodeAs[httpadapter.ErrorResponse](t, data).Error)
	resp, _ = do(t, srv, http.MethodPost, "/datasets/d1/replay", map[string]any{"projectId": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodGet, "/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MetricsAndSpec(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, srv, http.MethodPost, "/execute", map[string]any{
		"nodes": []map[string]any{{"id": "n", "content": "{{gone}}"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(data)
	assert.Contains(t, text, `promptloom_http_requests_total{code="200",method="POST",route="/execute"} 1`)
	assert.Contains(t, text, `promptloom_renders_total{status="ok",style="plain"} 1`)
	assert.Contains(t, text, "promptloom_missing_variables_total 1")

	resp, data = do(t, srv, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, httpadapter.Spec(), data)
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, srv, http.MethodOptions, "/execute", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestLoadSpec(t *testing.T) {
	doc, err := httpadapter.LoadSpec(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/datasets/{id}/replay"))
}
