package domain

// Limits shared by the renderer collaborators.
const (
	// DefaultMaxMessages is the number of chat messages forwarded when a
	// request does not say otherwise.
	DefaultMaxMessages = 20

	// MaxMessagesCap bounds any requested message count.
	MaxMessagesCap = 200

	// MaxResolvedValueBytes bounds a value produced by a resolver.
	MaxResolvedValueBytes = 20_000
)
