package loam

// KindProject marks a document as a project manifest instead of a node.
const KindProject = "project"

// DocumentMetadata is the frontmatter of a document in a project directory.
// The same shape serves node documents and project manifests; Kind tells
// them apart.
type DocumentMetadata struct {
	ID   string `json:"id" mapstructure:"id"`
	Kind string `json:"kind" mapstructure:"kind"`

	// Node fields.
	Project string `json:"project" mapstructure:"project"`
	Label   string `json:"label" mapstructure:"label"`
	Order   int    `json:"order" mapstructure:"order"`
	// To is edge sugar: "to: next" adds an edge from this node to next.
	To string `json:"to" mapstructure:"to"`

	// Manifest fields.
	Name      string             `json:"name" mapstructure:"name"`
	Variables []VariableMetadata `json:"variables" mapstructure:"variables"`
	Edges     []EdgeMetadata     `json:"edges" mapstructure:"edges"`
}

// VariableMetadata declares a project variable in a manifest.
type VariableMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Value       string `json:"value" mapstructure:"value"`
	Type        string `json:"type" mapstructure:"type"`
	Resolver    string `json:"resolver" mapstructure:"resolver"`
	Description string `json:"description" mapstructure:"description"`
}

// EdgeMetadata is an explicit edge in a manifest.
type EdgeMetadata struct {
	From string `json:"from" mapstructure:"from"`
	To   string `json:"to" mapstructure:"to"`
}
