package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/ren/internal/events"
	"github.com/tOgg1/ren/internal/logging"
	"github.com/tOgg1/ren/internal/metrics"
	"github.com/tOgg1/ren/internal/models"
)

// opState is the in-flight guard of a session operation.
type opState string

const (
	opIdle    opState = "idle"
	opLoading opState = "loading"
)

// Session owns the timeline, pagination cursor and typing signal of one
// chat screen.
//
// All state lives behind mu; collaborator calls run without it. Results are
// applied in the order they resolve. Events are queued under mu and drained
// in mutation order by a single dispatcher with no lock held, so handlers
// may read the session. A mutation made while another goroutine is
// dispatching is delivered by that goroutine.
type Session struct {
	id      string
	history HistoryFetcher
	replies ReplyGenerator
	logger  zerolog.Logger
	newID   func() string
	now     func() time.Time

	mu        sync.Mutex
	timeline  *Timeline
	cursor    models.PaginationCursor
	pageState opState
	sendState opState
	typing    bool
	closed    bool
	queued    []*models.Event

	// dispatching is held by the goroutine draining queued.
	dispatching bool
	publisher   *events.InMemoryPublisher

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

// WithSessionID sets the session id used in events and logs.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithIDGenerator overrides how local message ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the time source for message timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Session) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSession creates a session with an empty timeline and a fresh cursor.
func NewSession(history HistoryFetcher, replies ReplyGenerator, opts ...Option) (*Session, error) {
	if history == nil {
		return nil, ErrNoHistory
	}
	if replies == nil {
		return nil, ErrNoReplies
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.New().String(),
		history:   history,
		replies:   replies,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
		cursor:    models.NewPaginationCursor(),
		pageState: opIdle,
		sendState: opIdle,
		publisher: events.NewInMemoryPublisher(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.logger = logging.Component("chat")
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithSession(s.logger, s.id)
	s.timeline = NewTimeline(s.onTimelineChange)

	metrics.ActiveSessions.Inc()
	s.logger.Debug().Msg("session opened")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the timeline, newest-first.
func (s *Session) Snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Snapshot()
}

// View returns the timeline as a view renders it: the ephemeral typing
// entry first while the assistant is composing, then the timeline.
func (s *Session) View() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Typing reports whether the assistant is composing a reply.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// HasMore reports whether older history may still be loaded.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.cursor.Exhausted && !s.closed
}

// Cursor returns the pagination cursor.
func (s *Session) Cursor() models.PaginationCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Loading reports whether a history page is being fetched.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageState == opLoading
}

// Sending reports whether a send is outstanding.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendState == opLoading
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Subscribe registers a handler for session events.
func (s *Session) Subscribe(id string, filter events.Filter, handler events.EventHandler) error {
	filter.SessionID = s.id
	return s.publisher.Subscribe(id, filter, handler)
}

// Unsubscribe removes a subscription.
func (s *Session) Unsubscribe(id string) error {
	return s.publisher.Unsubscribe(id)
}

// Close tears the session down. In-flight collaborator calls are cancelled
// and their late results discarded. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.typing = false
	s.cancel()
	s.queue(models.EventTypeSessionClosed, nil)
	s.unlockAndNotify()

	metrics.ActiveSessions.Dec()
	s.logger.Debug().Msg("session closed")
}

// callContext derives a context for a collaborator call that is cancelled
// when either the caller's ctx or the session is done.
func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) setTypingLocked(typing bool) {
	if s.typing == typing {
		return
	}
	s.typing = typing
	s.queue(models.EventTypeTypingChanged, nil)
}

func (s *Session) onTimelineChange(change models.TimelineChange) {
	s.queue(models.EventTypeTimelineChanged, &change)
}

// queue records an event carrying the current state. Must hold mu.
func (s *Session) queue(eventType models.EventType, change *models.TimelineChange) {
	s.queued = append(s.queued, &models.Event{
		Type:      eventType,
		SessionID: s.id,
		Timestamp: s.now().UTC(),
		Messages:  s.viewLocked(),
		Typing:    s.typing,
		Cursor:    s.cursor,
		Change:    change,
	})
}

// unlockAndNotify releases mu and delivers queued events unless another
// goroutine is already dispatching. The dispatcher keeps draining until the
// queue is empty and closes the publisher once the closed event is out.
func (s *Session) unlockAndNotify() {
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.queued) > 0 {
		pending := s.queued
		s.queued = nil
		s.mu.Unlock()

		for _, ev := range pending {
			s.publisher.Publish(context.Background(), ev)
		}
		s.mu.Lock()
	}
	s.dispatching = false
	closed := s.closed
	s.mu.Unlock()

	if closed {
		s.publisher.Close()
	}
}

func (s *Session) viewLocked() []models.Message {
	snapshot := s.timeline.Snapshot()
	if !s.typing {
		return snapshot
	}
	view := make([]models.Message, 0, len(snapshot)+1)
	view = append(view, models.TypingEntry())
	return append(view, snapshot...)
}
