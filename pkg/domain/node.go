package domain

import (
	"encoding/json"
	"strings"
)

// NodeKind tags the conversational role of a node.
// The set is closed: adding a kind means extending the constants, AllNodeKinds
// and the switch statements that use them.
type NodeKind string

const (
	KindSystem    NodeKind = "system"
	KindUser      NodeKind = "user"
	KindAssistant NodeKind = "assistant"
	KindTool      NodeKind = "tool"
	KindMemory    NodeKind = "memory"
	KindRetrieval NodeKind = "retrieval"
	KindText      NodeKind = "text"
)

// AllNodeKinds lists every kind in display order.
var AllNodeKinds = []NodeKind{
	KindSystem,
	KindUser,
	KindAssistant,
	KindTool,
	KindMemory,
	KindRetrieval,
	KindText,
}

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindSystem, KindUser, KindAssistant, KindTool, KindMemory, KindRetrieval, KindText:
		return true
	}
	return false
}

func (k NodeKind) String() string {
	return string(k)
}

// ParseNodeKind converts a case-insensitive name into a NodeKind.
func ParseNodeKind(s string) (NodeKind, bool) {
	k := NodeKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", false
	}
	return k, true
}

// NodeKindFromFlowType maps the node types used by the flow editor to kinds.
// Anything unknown renders as plain text.
func NodeKindFromFlowType(flowType string) NodeKind {
	switch flowType {
	case "system_prompt":
		return KindSystem
	case "user_input":
		return KindUser
	case "messages":
		return KindAssistant
	case "tools":
		return KindTool
	case "memory":
		return KindMemory
	case "retrieval":
		return KindRetrieval
	}
	if k, ok := ParseNodeKind(flowType); ok {
		return k
	}
	return KindText
}

// UnmarshalText accepts kinds and flow editor types alike.
// Unknown names decode as KindText, matching how the editor renders them.
func (k *NodeKind) UnmarshalText(text []byte) error {
	*k = NodeKindFromFlowType(strings.TrimSpace(string(text)))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k), nil
}

// MarshalJSON keeps the wire form a plain string.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return k.UnmarshalText([]byte(s))
}

// ProjectNode is a typed unit of conversational content.
// It is immutable input to rendering.
type ProjectNode struct {
	ID      string   `json:"id" yaml:"id"`
	Label   string   `json:"label" yaml:"label"`
	Kind    NodeKind `json:"kind" yaml:"kind"`
	Content string   `json:"content" yaml:"content"`
}
