package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// errNotExist is returned by readJSON when the document is absent.
var errNotExist = errors.New("document does not exist")

// jsonDir stores one JSON document per ID inside a directory.
type jsonDir struct {
	path string
}

func (d jsonDir) file(id string) string {
	return filepath.Join(d.path, id+".json")
}

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// write persists v atomically: it writes a temporary file in the same
// directory, fsyncs it and renames it over the destination.
func (d jsonDir) write(id string, v any) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmpFile, err := os.CreateTemp(d.path, "tmp-"+id+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := d.file(id)
	if _, err := os.Stat(dest); err == nil {
		// os.Rename does not replace an existing file on Windows.
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (d jsonDir) read(id string, v any) error {
	if err := validID(id); err != nil {
		return err
	}
	data, err := os.ReadFile(d.file(id))
	if err != nil {
		if os.IsNotExist(err) {
			return errNotExist
		}
		return fmt.Errorf("failed to read %s: %w", id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}
	return nil
}

func (d jsonDir) remove(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(d.file(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

// ids lists the stored document IDs, skipping temp files.
func (d jsonDir) ids() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", d.path, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
