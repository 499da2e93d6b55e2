package dsl

import "github.com/aretw0/promptloom/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.ProjectNode
	builder *Builder
}

// Label sets the display label used by labeled transcripts.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Label = label
	return n
}

// Kind sets the node kind. Unknown kinds fail at Build time.
func (n *NodeBuilder) Kind(kind domain.NodeKind) *NodeBuilder {
	n.node.Kind = kind
	return n
}

// Content sets the template of the node without changing its kind.
func (n *NodeBuilder) Content(content string) *NodeBuilder {
	n.node.Content = content
	return n
}

// System sets the content of the node and marks it as a system prompt.
func (n *NodeBuilder) System(content string) *NodeBuilder {
	return n.Kind(domain.KindSystem).Content(content)
}

// User sets the content of the node and marks it as a user turn.
func (n *NodeBuilder) User(content string) *NodeBuilder {
	return n.Kind(domain.KindUser).Content(content)
}

// Assistant sets the content of the node and marks it as an assistant turn.
func (n *NodeBuilder) Assistant(content string) *NodeBuilder {
	return n.Kind(domain.KindAssistant).Content(content)
}

// Tool sets the content of the node and marks it as a tool description.
func (n *NodeBuilder) Tool(content string) *NodeBuilder {
	return n.Kind(domain.KindTool).Content(content)
}

// Memory sets the content of the node and marks it as memory.
func (n *NodeBuilder) Memory(content string) *NodeBuilder {
	return n.Kind(domain.KindMemory).Content(content)
}

// Retrieval sets the content of the node and marks it as retrieved context.
func (n *NodeBuilder) Retrieval(content string) *NodeBuilder {
	return n.Kind(domain.KindRetrieval).Content(content)
}

// Text sets the content of the node and marks it as plain text.
func (n *NodeBuilder) Text(content string) *NodeBuilder {
	return n.Kind(domain.KindText).Content(content)
}

// Go adds an edge from this node to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.Edge(n.node.ID, target)
	return n
}

// After adds an edge from the source node to this node.
func (n *NodeBuilder) After(source string) *NodeBuilder {
	n.builder.Edge(source, n.node.ID)
	return n
}

// Build returns the underlying domain.ProjectNode.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.ProjectNode {
	return n.node
}
