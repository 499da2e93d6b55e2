package runtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/template"
)

// Clock returns the timestamp stamped on a run.
type Clock func() time.Time

// IDGenerator returns a fresh run identifier.
type IDGenerator func() string

// RenderOptions tunes a single composition.
type RenderOptions struct {
	Style OutputStyle
	// MaxMessages caps conversation history pulled in by resolvers before
	// composition. Zero means domain.DefaultMaxMessages. Compose ignores it.
	MaxMessages int
	// ExtraMessages are run-level diagnostics produced before composition,
	// such as variable resolution results. They lead the run messages.
	ExtraMessages []domain.TraceMessage
}

// OutputStyle aliases the domain type so callers of this package need a single import.
type OutputStyle = domain.OutputStyle

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithClock injects the timestamp source.
func WithClock(c Clock) ComposerOption {
	return func(cp *Composer) {
		if c != nil {
			cp.clock = c
		}
	}
}

// WithIDGenerator injects the run id source.
func WithIDGenerator(g IDGenerator) ComposerOption {
	return func(cp *Composer) {
		if g != nil {
			cp.newID = g
		}
	}
}

// WithGrammar replaces the placeholder grammar.
func WithGrammar(g template.Grammar) ComposerOption {
	return func(cp *Composer) {
		cp.grammar = g.OrDefault()
	}
}

// Composer turns a Project into a TraceRun.
// It holds configuration only; Compose is safe for concurrent use.
type Composer struct {
	grammar template.Grammar
	clock   Clock
	newID   IDGenerator
}

// NewComposer creates a Composer with UTC wall clock and UUID run ids unless overridden.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		grammar: template.DefaultGrammar,
		clock:   func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Grammar returns the placeholder grammar in use.
func (c *Composer) Grammar() template.Grammar {
	return c.grammar
}

// Compose renders every node of p, in order, and assembles the transcript.
// p is only read. Composition never fails: problems surface as messages.
// Unknown styles are composed, and recorded, as plain.
func (c *Composer) Compose(p domain.Project, opts RenderOptions) domain.TraceRun {
	style := domain.NormalizeOutputStyle(opts.Style)

	run := domain.TraceRun{
		RunID:       c.newID(),
		CreatedAt:   c.clock(),
		OutputStyle: style,
		Segments:    make([]domain.TraceSegment, 0, len(p.Nodes)),
		Messages:    make([]domain.TraceMessage, 0, len(opts.ExtraMessages)),
	}
	run.Messages = append(run.Messages, opts.ExtraMessages...)

	store := NewVariableStore(p.Variables)
	pending := store.Duplicates()

	for _, node := range p.Nodes {
		res := renderNode(c.grammar, node, store)
		seg := domain.TraceSegment{
			NodeID:           node.ID,
			Label:            node.Label,
			Kind:             node.Kind,
			Template:         node.Content,
			Rendered:         res.Rendered,
			MissingVariables: res.Missing,
			Messages:         res.Messages,
		}

		if len(pending) > 0 {
			pending = c.placeDuplicates(&run, pending, node)
		}
		run.Messages = append(run.Messages, seg.Messages...)
		run.Segments = append(run.Segments, seg)
	}

	for _, name := range pending {
		run.Messages = append(run.Messages, duplicateVariableMessage(name))
	}

	run.Text = Assemble(run.Segments, style)
	return run
}

// placeDuplicates appends the duplicate warnings for the names node refers to
// and returns the names still waiting for a referencing node.
func (c *Composer) placeDuplicates(run *domain.TraceRun, pending []string, node domain.ProjectNode) []string {
	refs := make(map[string]struct{})
	for _, name := range c.grammar.Names(node.Content) {
		refs[name] = struct{}{}
	}
	rest := pending[:0:0]
	for _, name := range pending {
		if _, ok := refs[name]; ok {
			run.Messages = append(run.Messages, duplicateVariableMessage(name))
			continue
		}
		rest = append(rest, name)
	}
	return rest
}

func duplicateVariableMessage(name string) domain.TraceMessage {
	return domain.TraceMessage{
		Severity: domain.SeverityWarn,
		Code:     domain.CodeDuplicateVariableName,
		Message:  fmt.Sprintf("Variable %q is declared more than once; the last value wins", name),
		Details:  map[string]any{"variable": name},
	}
}

// Assemble joins rendered segments into transcript text.
// Plain output separates bodies with a blank line. Labeled output puts a
// "[kind] label" header line above each body.
func Assemble(segments []domain.TraceSegment, style OutputStyle) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if style == domain.StyleLabeled {
			parts = append(parts, Header(seg)+"\n"+seg.Rendered)
			continue
		}
		parts = append(parts, seg.Rendered)
	}
	return strings.Join(parts, "\n\n")
}

// Header is the labeled-style heading of a segment.
func Header(seg domain.TraceSegment) string {
	label := strings.TrimSpace(seg.Label)
	if label == "" {
		label = seg.NodeID
	}
	return fmt.Sprintf("[%s] %s", seg.Kind, label)
}
