package models

import (
	"strings"
	"time"
)

// Roles used by the REN backend for stored messages.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Conversation is one stored conversation of a user. A user has at most
// one active conversation; replies are generated with it as context.
type Conversation struct {
	ID        string     `json:"conversation_id"`
	UserID    string     `json:"user_id"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// StoredMessage is a persisted conversation turn.
type StoredMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks that the message can be stored.
func (m StoredMessage) Validate() error {
	var errs ValidationErrors
	switch m.Role {
	case RoleUser, RoleModel:
	default:
		errs.Addf("role", "must be %s or %s, got %q", RoleUser, RoleModel, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		errs.Add("content", ErrEmptyText)
	}
	return errs.Err()
}

// History converts the stored message to the history-fetch shape.
func (m StoredMessage) History() HistoryMessage {
	return HistoryMessage{
		ID:        m.ID,
		Content:   m.Content,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
	}
}

// MessagePage is one page of a user's messages across all conversations.
// Page 1 holds the newest messages; Messages are oldest-first.
type MessagePage struct {
	Messages        []StoredMessage `json:"messages"`
	Page            int             `json:"current_page"`
	TotalPages      int             `json:"total_pages"`
	TotalMessages   int             `json:"total_messages"`
	PerPage         int             `json:"messages_per_page"`
	HasNextPage     bool            `json:"has_next_page"`
	HasPreviousPage bool            `json:"has_previous_page"`
}
