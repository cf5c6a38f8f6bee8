package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/tOgg1/ren/internal/metrics"
	"github.com/tOgg1/ren/internal/models"
)

// LoadNext fetches the next page of older history and prepends it to the
// timeline.
//
// A call made while another fetch is in flight, or after the cursor is
// exhausted, returns immediately without fetching. On failure the cursor is
// left unchanged and the error is returned in the result; nothing is
// retried.
func (s *Session) LoadNext(ctx context.Context) models.LoadResult {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return models.LoadResult{Exhausted: true, Err: ErrSessionClosed}
	case s.cursor.Exhausted:
		s.mu.Unlock()
		metrics.HistoryPagesTotal.WithLabelValues("skipped").Inc()
		return models.LoadResult{Exhausted: true}
	case s.pageState == opLoading:
		exhausted := s.cursor.Exhausted
		s.mu.Unlock()
		metrics.HistoryPagesTotal.WithLabelValues("skipped").Inc()
		return models.LoadResult{Exhausted: exhausted}
	}
	s.pageState = opLoading
	page := s.cursor.Page
	s.mu.Unlock()

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	fetched, err := s.history.FetchHistory(callCtx, page)

	s.mu.Lock()
	s.pageState = opIdle
	if s.closed {
		s.mu.Unlock()
		metrics.HistoryPagesTotal.WithLabelValues("discarded").Inc()
		s.logger.Debug().Int("page", page).Msg("discarding history page for closed session")
		return models.LoadResult{Exhausted: true, Err: ErrSessionClosed}
	}
	if err != nil {
		exhausted := s.cursor.Exhausted
		s.mu.Unlock()
		metrics.HistoryPagesTotal.WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Int("page", page).Msg("history fetch failed")
		return models.LoadResult{Exhausted: exhausted, Err: fmt.Errorf("%w: %w", ErrHistoryFetch, err)}
	}

	msgs := historyToTimeline(page, fetched.Messages)
	appended := s.timeline.PrependHistory(msgs)
	s.cursor.Page++
	s.cursor.Exhausted = !fetched.HasNextPage
	s.queue(models.EventTypeCursorChanged, nil)
	result := models.LoadResult{Appended: appended, Exhausted: s.cursor.Exhausted}
	s.unlockAndNotify()

	metrics.HistoryPagesTotal.WithLabelValues("loaded").Inc()
	metrics.HistoryMessagesAppended.Add(float64(appended))
	metrics.HistoryDuplicatesSkipped.Add(float64(len(msgs) - appended))
	s.logger.Debug().
		Int("page", page).
		Int("fetched", len(fetched.Messages)).
		Int("appended", appended).
		Bool("exhausted", result.Exhausted).
		Msg("history page loaded")
	return result
}

// historyToTimeline converts an oldest-first page into newest-first
// timeline entries.
func historyToTimeline(page int, msgs []models.HistoryMessage) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		hm := msgs[i]
		out = append(out, models.Message{
			ID:        HistoryMessageID(page, i, hm),
			Text:      hm.Content,
			Sender:    models.SenderFromRole(hm.Role),
			Origin:    models.OriginRemoteHistory,
			CreatedAt: hm.CreatedAt,
		})
	}
	return out
}

// HistoryMessageID returns the timeline id of a history message. The
// server-provided id wins. Otherwise the id is derived from role, content
// and creation time, falling back to the page position when the message has
// no timestamp.
func HistoryMessageID(page, index int, msg models.HistoryMessage) string {
	if id := strings.TrimSpace(msg.ID); id != "" {
		return id
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", models.SenderFromRole(msg.Role), msg.Content)
	if !msg.CreatedAt.IsZero() {
		fmt.Fprint(h, msg.CreatedAt.UTC().Format(time.RFC3339Nano))
	} else {
		fmt.Fprintf(h, "p%d\x00i%d", page, index)
	}
	return "h-" + hex.EncodeToString(h.Sum(nil))[:24]
}
