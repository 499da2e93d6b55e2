package http_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/promptloom"
	"github.com/aretw0/promptloom/internal/logging"
	httpadapter "github.com/aretw0/promptloom/pkg/adapters/http"
	"github.com/aretw0/promptloom/pkg/datasource"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/resolve"
)

func seedFacts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facts.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE facts (k TEXT, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO facts VALUES ('product', 'Widget')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func newDataSourceServer(t *testing.T, opts ...datasource.Option) *httptest.Server {
	t.Helper()
	opts = append([]datasource.Option{datasource.WithIDGenerator(func() string { return "ds_facts" })}, opts...)
	reg := datasource.NewEphemeral(opts...)
	eng := promptloom.New(
		promptloom.WithLogger(logging.NewNop()),
		promptloom.WithResolvers(resolve.NewRegistry(resolve.Standard(nil, reg)...)),
	)
	handler, err := httpadapter.NewHandler(eng, httpadapter.WithDataSources(reg))
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_DataSources(t *testing.T) {
	path := seedFacts(t)
	srv := newDataSourceServer(t)

	resp, data := do(t, srv, http.MethodPost, "/datasources", map[string]any{
		"name": "Facts", "url": "sqlite://" + path,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	created := decodeAs[domain.DataSourceView](t, data)
	assert.Equal(t, "ds_facts", created.ID)
	assert.Equal(t, "sqlite", created.Driver)
	assert.Equal(t, domain.RedactedURL, created.URL)
	assert.NotContains(t, string(data), path)

	resp, data = do(t, srv, http.MethodGet, "/datasources", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeAs[[]domain.DataSourceView](t, data)
	require.Len(t, list, 1)
	assert.NotContains(t, string(data), path)

	resp, data = do(t, srv, http.MethodPut, "/datasources/ds_facts", map[string]any{"name": "Catalogue"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "Catalogue", decodeAs[domain.DataSourceView](t, data).Name)

	resp, data = do(t, srv, http.MethodPost, "/datasources/ds_facts/test", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.True(t, decodeAs[httpadapter.DataSourceTestResponse](t, data).OK)

	resp, data = do(t, srv, http.MethodPost, "/execute", map[string]any{
		"resolve": true,
		"nodes":   []map[string]any{{"id": "n", "kind": "system", "content": "You sell {{product}}."}},
		"variables": []map[string]any{{
			"name": "product", "type": "dynamic", "resolver": "sql://ds_facts",
			"value": "SELECT v FROM facts WHERE k = 'product'",
		}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "You sell Widget.", decodeAs[domain.TraceRun](t, data).Text)

	resp, _ = do(t, srv, http.MethodDelete, "/datasources/ds_facts", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = do(t, srv, http.MethodGet, "/datasources/ds_facts", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "datasource_not_found", decodeAs[httpadapter.ErrorResponse](t, data).Error)
}

func TestServer_DataSourceErrors(t *testing.T) {
	srv := newDataSourceServer(t, datasource.WithStatic(map[string]string{"analytics": "postgres://u:p@db/analytics"}))

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"missing url", http.MethodPost, "/datasources", map[string]any{"name": "x"}, http.StatusBadRequest, "invalid_request"},
		{"unknown driver", http.MethodPost, "/datasources", map[string]any{"name": "x", "driver": "mysql", "url": "mysql://db"}, http.StatusBadRequest, "invalid_request"},
		{"driver mismatch", http.MethodPost, "/datasources", map[string]any{"name": "x", "driver": "postgres", "url": "sqlite:///tmp/x.db"}, http.StatusBadRequest, "invalid_datasource"},
		{"unsupported scheme", http.MethodPost, "/datasources", map[string]any{"name": "x", "url": "mysql://db"}, http.StatusBadRequest, "invalid_datasource"},
		{"configured is read-only", http.MethodPut, "/datasources/analytics", map[string]any{"name": "y"}, http.StatusConflict, "datasource_read_only"},
		{"configured cannot be deleted", http.MethodDelete, "/datasources/analytics", nil, http.StatusConflict, "datasource_read_only"},
		{"test unknown", http.MethodPost, "/datasources/ghost/test", nil, http.StatusNotFound, "datasource_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, srv, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(data))
			assert.Equal(t, tt.wantCode, decodeAs[httpadapter.ErrorResponse](t, data).Error)
		})
	}

	resp, data := do(t, srv, http.MethodGet, "/datasources/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeAs[domain.DataSourceView](t, data)
	assert.True(t, view.ReadOnly)
	assert.NotContains(t, string(data), "u:p@")
}
