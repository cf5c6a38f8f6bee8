package models

import "time"

// EventType categorizes session notifications.
type EventType string

const (
	EventTypeTimelineChanged EventType = "timeline.changed"
	EventTypeTypingChanged   EventType = "typing.changed"
	EventTypeCursorChanged   EventType = "cursor.changed"
	EventTypeSessionClosed   EventType = "session.closed"
)

// ChangeKind names the timeline operation behind a timeline.changed event.
type ChangeKind string

const (
	ChangeHistoryPrepended ChangeKind = "history_prepended"
	ChangeLocalInserted    ChangeKind = "local_inserted"
	ChangePendingConfirmed ChangeKind = "pending_confirmed"
	ChangeErrorAppended    ChangeKind = "error_appended"
)

// TimelineChange describes a single timeline mutation.
type TimelineChange struct {
	Kind ChangeKind `json:"kind"`

	// IDs lists the entries added or transitioned by the mutation.
	IDs []string `json:"ids,omitempty"`
}

// Event is a notification published by a conversation session. Every event
// carries the state the session had right after the mutation.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// Messages is the rendered view, newest-first. While the assistant is
	// composing, the typing entry comes first.
	Messages []Message `json:"messages,omitempty"`

	Typing bool             `json:"typing"`
	Cursor PaginationCursor `json:"cursor"`

	// Change is set for timeline.changed events.
	Change *TimelineChange `json:"change,omitempty"`
}
