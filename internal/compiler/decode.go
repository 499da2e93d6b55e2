// Package compiler turns project documents into render-ready projects:
// it decodes JSON or YAML, validates the result and orders nodes by edges.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/promptloom/pkg/domain"
)

// Format is the serialization of a project document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension. Unknown
// extensions are sniffed: a leading '{' means JSON.
func FormatFromPath(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return FormatJSON
	}
	return FormatYAML
}

// document accepts two layouts: the native one (nodes at the top level) and
// the flow editor export, which nests nodes, edges and variables under
// "state" and keeps kinds in data.type.
type document struct {
	ID        string                   `json:"id" yaml:"id"`
	Name      string                   `json:"name" yaml:"name"`
	Nodes     []nodeDocument           `json:"nodes" yaml:"nodes"`
	Edges     []domain.Edge            `json:"edges" yaml:"edges"`
	Variables []domain.ProjectVariable `json:"variables" yaml:"variables"`
	UpdatedAt timestamp                `json:"updatedAt" yaml:"updated_at"`
	State     *flowState               `json:"state,omitempty" yaml:"state,omitempty"`
}

type nodeDocument struct {
	ID      string    `json:"id" yaml:"id"`
	Label   string    `json:"label" yaml:"label"`
	Kind    string    `json:"kind" yaml:"kind"`
	Content string    `json:"content" yaml:"content"`
	Data    *flowData `json:"data,omitempty" yaml:"data,omitempty"`
}

type flowState struct {
	Nodes     []nodeDocument           `json:"nodes" yaml:"nodes"`
	Edges     []domain.Edge            `json:"edges" yaml:"edges"`
	Variables []domain.ProjectVariable `json:"variables" yaml:"variables"`
}

type flowData struct {
	Label   string `json:"label" yaml:"label"`
	Type    string `json:"type" yaml:"type"`
	Content string `json:"content" yaml:"content"`
}

// timestamp accepts RFC 3339 strings and Unix milliseconds, as a number or
// a numeric string.
type timestamp struct {
	time.Time
}

func (ts *timestamp) parse(s string) error {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		ts.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	ts.Time = t
	return nil
}

func (ts *timestamp) UnmarshalJSON(data []byte) error {
	return ts.parse(string(data))
}

func (ts *timestamp) UnmarshalYAML(value *yaml.Node) error {
	return ts.parse(value.Value)
}

// Decode parses a project document without validating or ordering it.
func Decode(data []byte, format Format) (domain.Project, error) {
	var doc document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return domain.Project{}, fmt.Errorf("unsupported project format %q", format)
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("failed to decode project: %w", err)
	}
	return doc.project(), nil
}

func (d document) project() domain.Project {
	nodes, edges, vars := d.Nodes, d.Edges, d.Variables
	if d.State != nil {
		nodes = append(nodes, d.State.Nodes...)
		edges = append(edges, d.State.Edges...)
		vars = append(vars, d.State.Variables...)
	}

	p := domain.Project{
		ID:        d.ID,
		Name:      d.Name,
		Nodes:     make([]domain.ProjectNode, 0, len(nodes)),
		Edges:     edges,
		Variables: vars,
		UpdatedAt: d.UpdatedAt.Time,
	}
	if p.Variables == nil {
		p.Variables = []domain.ProjectVariable{}
	}
	for _, n := range nodes {
		p.Nodes = append(p.Nodes, n.node())
	}
	return p
}

func (n nodeDocument) node() domain.ProjectNode {
	if n.Data != nil {
		// Flow editor nodes map unknown types to text.
		return domain.ProjectNode{
			ID:      n.ID,
			Label:   n.Data.Label,
			Kind:    domain.NodeKindFromFlowType(n.Data.Type),
			Content: n.Data.Content,
		}
	}
	return domain.ProjectNode{ID: n.ID, Label: n.Label, Kind: parseKind(n.Kind), Content: n.Content}
}

// parseKind maps native kinds and flow types; anything else is kept verbatim
// so Validate can report it.
func parseKind(raw string) domain.NodeKind {
	if strings.TrimSpace(raw) == "" {
		return domain.KindText
	}
	if k, ok := domain.ParseNodeKind(raw); ok {
		return k
	}
	if k := domain.NodeKindFromFlowType(raw); k != domain.KindText {
		return k
	}
	return domain.NodeKind(raw)
}

// Compile decodes, validates and orders a project document.
func Compile(data []byte, format Format) (domain.Project, error) {
	p, err := Decode(data, format)
	if err != nil {
		return domain.Project{}, err
	}
	if err := Validate(p); err != nil {
		return domain.Project{}, err
	}
	return Order(p), nil
}

// CompileFile reads and compiles the project at path. A missing ID defaults
// to the file name without extension.
func CompileFile(path string) (domain.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Project{}, fmt.Errorf("failed to read project file: %w", err)
	}
	p, err := Compile(data, FormatFromPath(path, data))
	if err != nil {
		return domain.Project{}, fmt.Errorf("%s: %w", path, err)
	}
	if p.ID == "" {
		p.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}
