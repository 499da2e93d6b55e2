package resolve

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/session"
)

// SessionLoader is the part of a session store the chat resolver needs.
// Both ports.SessionStore and session.Manager satisfy it.
type SessionLoader interface {
	Load(ctx context.Context, id string) (*domain.Session, error)
}

// ChatResolver renders "chat://<session-id>" variables.
// The variable value is the requested number of messages.
type ChatResolver struct {
	Sessions SessionLoader
}

// NewChatResolver creates a chat resolver backed by sessions.
func NewChatResolver(sessions SessionLoader) *ChatResolver {
	return &ChatResolver{Sessions: sessions}
}

// Resolve loads the session and renders its most recent messages.
func (c *ChatResolver) Resolve(ctx context.Context, req Request) (Value, error) {
	sessionID := strings.TrimSpace(strings.TrimPrefix(req.URL, "chat://"))
	if sessionID == "" {
		return Value{}, fmt.Errorf("%w: chat resolver needs a session id", ErrResolverMissing)
	}

	requested, err := strconv.Atoi(strings.TrimSpace(req.Variable.Value))
	if err != nil || requested <= 0 {
		requested = domain.DefaultMaxMessages
	}
	hardCap := session.ClampMessagesTo(domain.MaxMessagesCap, req.MaxMessagesCap)

	limit, cappedBy := requested, ""
	if req.MaxMessages > 0 && req.MaxMessages < limit {
		limit, cappedBy = req.MaxMessages, "render"
	}
	if limit > hardCap {
		limit, cappedBy = hardCap, "cap"
	}

	s, err := c.Sessions.Load(ctx, sessionID)
	if err != nil {
		return Value{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	value := Value{
		Text: session.RenderText(s, limit),
		Debug: map[string]any{
			"requestedMaxMessages": requested,
			"maxMessages":          limit,
			"sessionId":            sessionID,
			"messageCount":         len(s.Messages),
		},
	}
	if cappedBy != "" {
		value.Messages = []domain.TraceMessage{{
			Severity: domain.SeverityInfo,
			Code:     domain.CodeMessageCapApplied,
			Message:  fmt.Sprintf("Chat history of %s capped at %d messages (requested %d)", sessionID, limit, requested),
			Details: map[string]any{
				"sessionId":            sessionID,
				"requestedMaxMessages": requested,
				"maxMessages":          limit,
				"maxMessagesCap":       hardCap,
				"cappedBy":             cappedBy,
			},
		}}
	}
	return value, nil
}
