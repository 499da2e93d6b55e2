package session_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/session"
)

func TestRenderText(t *testing.T) {
	s := &domain.Session{Messages: []domain.SessionMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "  hi  "},
		{Role: "assistant", Content: "hello\n"},
		{Role: "critic", Content: "meh"},
	}}

	assert.Equal(t, "[System]: be brief\n[User]: hi\n[Assistant]: hello\n[critic]: meh", session.RenderText(s, 0))
	assert.Equal(t, "[Assistant]: hello\n[critic]: meh", session.RenderText(s, 2))
	assert.Equal(t, "", session.RenderText(nil, 5))
	assert.Equal(t, "", session.RenderText(&domain.Session{}, 5))
}

func TestRenderText_HardCap(t *testing.T) {
	s := &domain.Session{}
	for i := 0; i < 250; i++ {
		s.Messages = append(s.Messages, domain.SessionMessage{Role: "user", Content: fmt.Sprint(i)})
	}
	text := session.RenderText(s, 1000)
	assert.Contains(t, text, "[User]: 249")
	assert.Contains(t, text, "[User]: 50")
	assert.NotContains(t, text, "[User]: 49\n")
}

func TestClampMessages(t *testing.T) {
	assert.Equal(t, domain.DefaultMaxMessages, session.ClampMessages(0))
	assert.Equal(t, 5, session.ClampMessages(5))
	assert.Equal(t, domain.MaxMessagesCap, session.ClampMessages(999))

	assert.Equal(t, 3, session.ClampMessagesTo(10, 3))
	assert.Equal(t, 3, session.ClampMessagesTo(0, 3), "default count is capped too")
	assert.Equal(t, domain.MaxMessagesCap, session.ClampMessagesTo(999, 0))
	assert.Equal(t, domain.MaxMessagesCap, session.ClampMessagesTo(999, 5000))
}
