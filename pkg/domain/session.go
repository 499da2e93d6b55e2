package domain

import "time"

// SessionMessage is one chat turn stored in a session.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a persisted chat history that dynamic variables can render.
type Session struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Messages  []SessionMessage `json:"messages"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SessionSummary is the listing form of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary returns the listing form of s.
func (s Session) Summary() SessionSummary {
	return SessionSummary{ID: s.ID, Name: s.Name, MessageCount: len(s.Messages), UpdatedAt: s.UpdatedAt}
}
