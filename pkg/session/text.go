package session

import (
	"strings"

	"github.com/aretw0/promptloom/pkg/domain"
)

// ClampMessages resolves a requested message count: zero or negative means
// domain.DefaultMaxMessages and nothing exceeds domain.MaxMessagesCap.
func ClampMessages(n int) int {
	return ClampMessagesTo(n, domain.MaxMessagesCap)
}

// ClampMessagesTo is ClampMessages with a configured cap. A cap outside
// 1..domain.MaxMessagesCap falls back to domain.MaxMessagesCap.
func ClampMessagesTo(n, limit int) int {
	if limit <= 0 || limit > domain.MaxMessagesCap {
		limit = domain.MaxMessagesCap
	}
	if n <= 0 {
		n = domain.DefaultMaxMessages
	}
	return min(n, limit)
}

// RoleLabel returns the transcript label of a chat role.
func RoleLabel(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	case "tool":
		return "Tool"
	}
	return role
}

// RenderText renders the last maxMessages messages of s as "[Role]: content"
// lines, after ClampMessages.
func RenderText(s *domain.Session, maxMessages int) string {
	if s == nil {
		return ""
	}
	n := ClampMessages(maxMessages)
	msgs := s.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}

	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("[")
		b.WriteString(RoleLabel(m.Role))
		b.WriteString("]: ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
