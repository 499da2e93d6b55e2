package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/promptloom/pkg/domain"
)

// GraphOverlay contains render results to visualize on the graph.
type GraphOverlay struct {
	// Missing maps node IDs to the placeholders they could not fill.
	Missing map[string][]string
}

// OverlayFromRun marks the nodes of run that left placeholders unresolved.
func OverlayFromRun(run domain.TraceRun) *GraphOverlay {
	o := &GraphOverlay{Missing: make(map[string][]string)}
	for _, seg := range run.Segments {
		if len(seg.MissingVariables) > 0 {
			o.Missing[seg.NodeID] = seg.MissingVariables
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of a project.
// Node shapes follow the node kind:
// - System: ((Circle))
// - Tool: [[Subroutine]]
// - User: [/Parallelogram/]
// - Memory, Retrieval: [(Database)]
// - Assistant: ([Stadium])
// - Default: [Rectangle]
// Explicit edges are solid arrows. A project without edges is drawn as a
// dotted chain in node order, which is the order it renders in.
func GenerateMermaid(p domain.Project, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	known := make(map[string]bool, len(p.Nodes))
	for _, node := range p.Nodes {
		known[node.ID] = true

		opener, closer := shape(node.Kind)
		label := node.Label
		if label == "" {
			label = node.ID
		}
		label = fmt.Sprintf("%s <br/> <i>%s</i>", escape(label), node.Kind)
		if overlay != nil {
			if missing := overlay.Missing[node.ID]; len(missing) > 0 {
				label += fmt.Sprintf(" <br/> ⚠️ %s", escape(strings.Join(missing, ", ")))
			}
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, label, closer))
	}

	if len(p.Edges) == 0 {
		for i := 1; i < len(p.Nodes); i++ {
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n",
				sanitizeMermaidID(p.Nodes[i-1].ID), sanitizeMermaidID(p.Nodes[i].ID)))
		}
	}
	for _, e := range p.Edges {
		// Edges to unknown nodes do not affect ordering, so they are not drawn.
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target)))
	}

	if overlay != nil && len(overlay.Missing) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds.
		sb.WriteString("    classDef missing fill:#fff3e0,stroke:#e65100,stroke-width:2px,color:#000;\n")
		for _, node := range p.Nodes {
			if len(overlay.Missing[node.ID]) > 0 {
				sb.WriteString(fmt.Sprintf("    class %s missing;\n", sanitizeMermaidID(node.ID)))
			}
		}
	}

	return sb.String()
}

func shape(kind domain.NodeKind) (string, string) {
	switch kind {
	case domain.KindSystem:
		return "((", "))"
	case domain.KindTool:
		return "[[", "]]"
	case domain.KindUser:
		return "[/", "/]"
	case domain.KindMemory, domain.KindRetrieval:
		return "[(", ")]"
	case domain.KindAssistant:
		return "([", "])"
	}
	return "[", "]"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
