package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/promptloom/pkg/domain"
)

// ReadDataset reads a dataset file. Three layouts are accepted: a dataset
// document ({"id", "name", "rows"}), a bare JSON array of rows, or JSON Lines
// with one row per line. The ID defaults to the file name without extension.
func ReadDataset(path string) (domain.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds domain.Dataset
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return domain.Dataset{}, fmt.Errorf("%s: dataset is empty", path)

	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &ds.Rows); err != nil {
			return domain.Dataset{}, fmt.Errorf("%s: %w", path, err)
		}

	case trimmed[0] == '{' && isDatasetDocument(trimmed):
		if err := json.Unmarshal(trimmed, &ds); err != nil {
			return domain.Dataset{}, fmt.Errorf("%s: %w", path, err)
		}

	default:
		rows, err := readJSONLines(trimmed)
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("%s: %w", path, err)
		}
		ds.Rows = rows
	}

	if ds.ID == "" {
		ds.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if ds.Name == "" {
		ds.Name = ds.ID
	}
	return ds, nil
}

// isDatasetDocument reports whether a single JSON object carries a "rows"
// array, as opposed to being the first line of a JSON Lines file.
func isDatasetDocument(data []byte) bool {
	var envelope struct {
		Rows json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return false
	}
	return len(envelope.Rows) > 0 && envelope.Rows[0] == '['
}

func readJSONLines(data []byte) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		rows = append(rows, json.RawMessage(bytes.Clone(text)))
	}
	return rows, sc.Err()
}
