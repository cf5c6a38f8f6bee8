package models

import (
	"fmt"
	"strings"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Origin tracks where a timeline entry came from.
type Origin string

const (
	// OriginLocalPending is a locally authored message awaiting its reply.
	OriginLocalPending Origin = "local-pending"
	// OriginLocalConfirmed is a locally authored message (or its paired
	// reply) after the reply arrived.
	OriginLocalConfirmed Origin = "local-confirmed"
	// OriginRemoteHistory is a message loaded from the history service.
	OriginRemoteHistory Origin = "remote-history"
	// OriginLocalError is the synthetic notice shown when a reply failed.
	OriginLocalError Origin = "local-error"
)

// TypingEntryID is the id of the ephemeral typing entry in a rendered view.
const TypingEntryID = "typing-indicator"

// Message is the atomic unit of a conversation timeline.
type Message struct {
	// ID is unique within a timeline.
	ID string `json:"id"`

	// Text is the display string. It never changes after creation.
	Text string `json:"text"`

	// Sender is the authoring role.
	Sender Sender `json:"sender"`

	// Origin is the provenance used for reconciliation.
	Origin Origin `json:"origin"`

	// CreatedAt is informational only; timelines are never sorted by it.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IsPending reports whether the message is still awaiting a reply.
func (m Message) IsPending() bool {
	return m.Origin == OriginLocalPending
}

// IsError reports whether the message is a synthetic failure notice.
func (m Message) IsError() bool {
	return m.Origin == OriginLocalError
}

// Validate checks that the message can enter a timeline.
func (m Message) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(m.ID) == "" {
		errs.Addf("id", "is required")
	}
	if err := m.Sender.Validate(); err != nil {
		errs.Add("sender", err)
	}
	if err := m.Origin.Validate(); err != nil {
		errs.Add("origin", err)
	}
	return errs.Err()
}

// Validate checks the sender value.
func (s Sender) Validate() error {
	switch s {
	case SenderUser, SenderAssistant:
		return nil
	default:
		return fmt.Errorf("unknown sender %q", s)
	}
}

// Validate checks the origin value.
func (o Origin) Validate() error {
	switch o {
	case OriginLocalPending, OriginLocalConfirmed, OriginRemoteHistory, OriginLocalError:
		return nil
	default:
		return fmt.Errorf("unknown origin %q", o)
	}
}

// SenderFromRole maps a collaborator role onto a Sender. The REN backend
// uses "model" for assistant turns; anything that is not "user" is treated
// as the assistant.
func SenderFromRole(role string) Sender {
	if strings.EqualFold(strings.TrimSpace(role), string(SenderUser)) {
		return SenderUser
	}
	return SenderAssistant
}

// TypingEntry returns the ephemeral entry a view renders while the
// assistant is composing.
func TypingEntry() Message {
	return Message{
		ID:     TypingEntryID,
		Sender: SenderAssistant,
	}
}
