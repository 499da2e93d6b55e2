// Package testutils holds fixtures shared by the loader and CLI tests.
package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// SetupProjectRepo initializes a Loam repository in a temp dir and writes
// files (name to content) into it. It returns the absolute path and the
// repository, failing the test on any error.
func SetupProjectRepo(t *testing.T, files map[string]string, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "failed to init loam repo")

	for name, content := range files {
		WriteDoc(t, dir, name, content)
	}
	return dir, repo
}

// WriteDoc writes one document below dir, creating parent directories.
func WriteDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// NodeDoc formats a markdown node document of the given kind and order.
func NodeDoc(kind string, order int, body string) string {
	return fmt.Sprintf("---\nkind: %s\norder: %d\n---\n%s", kind, order, body)
}
