package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tOgg1/ren/internal/metrics"
	"github.com/tOgg1/ren/internal/models"
)

// SendStatus is the settled outcome of a send.
type SendStatus string

const (
	// SendIgnored means the text was blank; nothing happened.
	SendIgnored SendStatus = "ignored"
	// SendDelivered means the reply arrived and was placed in the timeline.
	SendDelivered SendStatus = "delivered"
	// SendFailed means reply generation failed; a failure notice was added.
	SendFailed SendStatus = "failed"
	// SendBusy means another send was still outstanding; nothing happened.
	SendBusy SendStatus = "busy"
	// SendDiscarded means the session closed before the send settled.
	SendDiscarded SendStatus = "discarded"
)

// SendResult describes what a send did to the timeline.
type SendResult struct {
	Status SendStatus

	// PendingID is the id of the user's message, if one was inserted.
	PendingID string

	// ReplyID is the id of the reply or failure notice, if one was inserted.
	ReplyID string

	// Reply is the text shown for the assistant's turn.
	Reply string

	Err error
}

// Send runs the optimistic send pipeline: the user's message is inserted as
// pending, the typing signal is raised, and the reply (or a failure notice)
// is reconciled into the timeline once the reply generator settles.
func (s *Session) Send(ctx context.Context, text string) SendResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		metrics.SendsTotal.WithLabelValues(string(SendIgnored)).Inc()
		return SendResult{Status: SendIgnored}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.SendsTotal.WithLabelValues(string(SendDiscarded)).Inc()
		return SendResult{Status: SendDiscarded, Err: ErrSessionClosed}
	}
	if s.sendState == opLoading {
		s.mu.Unlock()
		metrics.SendsTotal.WithLabelValues(string(SendBusy)).Inc()
		return SendResult{Status: SendBusy}
	}
	s.sendState = opLoading

	pending := models.Message{
		ID:        s.newID(),
		Text:      trimmed,
		Sender:    models.SenderUser,
		Origin:    models.OriginLocalPending,
		CreatedAt: s.now(),
	}
	s.timeline.InsertLocal(pending)
	s.setTypingLocked(true)
	s.unlockAndNotify()

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	reply, err := s.replies.GenerateReply(callCtx, trimmed)
	metrics.ReplyDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.sendState = opIdle
	if s.closed {
		s.mu.Unlock()
		metrics.SendsTotal.WithLabelValues(string(SendDiscarded)).Inc()
		s.logger.Debug().Str("pending_id", pending.ID).Msg("discarding reply for closed session")
		return SendResult{Status: SendDiscarded, PendingID: pending.ID, Err: ErrSessionClosed}
	}
	s.setTypingLocked(false)

	if err != nil {
		notice := models.Message{
			ID:        s.newID(),
			Text:      ReplyFailureText,
			Sender:    models.SenderAssistant,
			Origin:    models.OriginLocalError,
			CreatedAt: s.now(),
		}
		s.timeline.AppendError(notice)
		s.unlockAndNotify()

		metrics.SendsTotal.WithLabelValues(string(SendFailed)).Inc()
		s.logger.Warn().Err(err).Str("pending_id", pending.ID).Msg("reply generation failed")
		return SendResult{
			Status:    SendFailed,
			PendingID: pending.ID,
			ReplyID:   notice.ID,
			Reply:     notice.Text,
			Err:       fmt.Errorf("%w: %w", ErrReplyGeneration, err),
		}
	}

	if strings.TrimSpace(reply) == "" {
		reply = EmptyReplyText
	}
	confirmed := models.Message{
		ID:        s.newID(),
		Text:      reply,
		Sender:    models.SenderAssistant,
		Origin:    models.OriginLocalConfirmed,
		CreatedAt: s.now(),
	}
	if !s.timeline.ReplacePendingWithConfirmed(pending.ID, confirmed) {
		s.logger.Warn().Str("pending_id", pending.ID).Msg("pending message no longer in timeline")
	}
	s.unlockAndNotify()

	metrics.SendsTotal.WithLabelValues(string(SendDelivered)).Inc()
	s.logger.Debug().Str("pending_id", pending.ID).Str("reply_id", confirmed.ID).Msg("reply delivered")
	return SendResult{
		Status:    SendDelivered,
		PendingID: pending.ID,
		ReplyID:   confirmed.ID,
		Reply:     reply,
	}
}
