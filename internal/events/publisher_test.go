package events

import (
	"context"
	"sync"
	"testing"

	"github.com/tOgg1/ren/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event:  &models.Event{Type: models.EventTypeTimelineChanged, SessionID: "s1"},
			want:   true,
		},
		{
			name:   "nil event returns false",
			filter: Filter{},
			event:  nil,
			want:   false,
		},
		{
			name:   "event type filter matches",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeTypingChanged}},
			event:  &models.Event{Type: models.EventTypeTypingChanged, SessionID: "s1"},
			want:   true,
		},
		{
			name:   "event type filter rejects non-matching",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeTypingChanged}},
			event:  &models.Event{Type: models.EventTypeCursorChanged, SessionID: "s1"},
			want:   false,
		},
		{
			name: "multiple event types - matches any",
			filter: Filter{EventTypes: []models.EventType{
				models.EventTypeTypingChanged,
				models.EventTypeSessionClosed,
			}},
			event: &models.Event{Type: models.EventTypeSessionClosed, SessionID: "s1"},
			want:  true,
		},
		{
			name:   "session filter rejects other sessions",
			filter: Filter{SessionID: "s1"},
			event:  &models.Event{Type: models.EventTypeTimelineChanged, SessionID: "s2"},
			want:   false,
		},
		{
			name: "combined filters - all must match",
			filter: Filter{
				EventTypes: []models.EventType{models.EventTypeTimelineChanged},
				SessionID:  "s1",
			},
			event: &models.Event{Type: models.EventTypeTimelineChanged, SessionID: "s1"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Matches(tt.event)
			if got != tt.want {
				t.Errorf("Filter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryPublisher_Subscribe(t *testing.T) {
	pub := NewInMemoryPublisher()

	handler := func(event *models.Event) {}

	err := pub.Subscribe("sub-1", Filter{}, handler)
	if err != nil {
		t.Errorf("Subscribe() error = %v, want nil", err)
	}

	if pub.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", pub.SubscriberCount())
	}

	err = pub.Subscribe("sub-1", Filter{}, handler)
	if err != ErrSubscriptionExists {
		t.Errorf("Subscribe() duplicate error = %v, want %v", err, ErrSubscriptionExists)
	}

	err = pub.Subscribe("", Filter{}, handler)
	if err != ErrInvalidSubscriptionID {
		t.Errorf("Subscribe() empty ID error = %v, want %v", err, ErrInvalidSubscriptionID)
	}

	err = pub.Subscribe("sub-2", Filter{}, nil)
	if err != ErrNilHandler {
		t.Errorf("Subscribe() nil handler error = %v, want %v", err, ErrNilHandler)
	}
}

func TestInMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {})

	if err := pub.Unsubscribe("sub-1"); err != nil {
		t.Errorf("Unsubscribe() error = %v, want nil", err)
	}
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", pub.SubscriberCount())
	}
	if err := pub.Unsubscribe("sub-1"); err != ErrSubscriptionNotFound {
		t.Errorf("Unsubscribe() non-existent error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestInMemoryPublisher_PublishInSubscriptionOrder(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	for _, id := range []string{"c", "a", "b"} {
		id := id
		_ = pub.Subscribe(id, Filter{}, func(event *models.Event) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		})
	}

	pub.Publish(ctx, &models.Event{Type: models.EventTypeTimelineChanged})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "c" || order[1] != "a" || order[2] != "b" {
		t.Fatalf("handlers ran out of subscription order: %v", order)
	}
}

func TestInMemoryPublisher_PublishWithFilter(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var typingEvents, timelineEvents int
	_ = pub.Subscribe("typing", Filter{
		EventTypes: []models.EventType{models.EventTypeTypingChanged},
	}, func(event *models.Event) {
		typingEvents++
	})
	_ = pub.Subscribe("timeline", Filter{
		EventTypes: []models.EventType{models.EventTypeTimelineChanged},
	}, func(event *models.Event) {
		timelineEvents++
	})

	pub.Publish(ctx, &models.Event{Type: models.EventTypeTypingChanged, Typing: true})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeTimelineChanged})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeTimelineChanged})

	if typingEvents != 1 {
		t.Errorf("typingEvents = %d, want 1", typingEvents)
	}
	if timelineEvents != 2 {
		t.Errorf("timelineEvents = %d, want 2", timelineEvents)
	}
}

func TestInMemoryPublisher_PublishNilEvent(t *testing.T) {
	pub := NewInMemoryPublisher()

	called := false
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {
		called = true
	})

	pub.Publish(context.Background(), nil)

	if called {
		t.Error("handler was called for nil event")
	}
}

func TestInMemoryPublisher_HandlerMayUnsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()

	calls := 0
	_ = pub.Subscribe("once", Filter{}, func(event *models.Event) {
		calls++
		_ = pub.Unsubscribe("once")
	})

	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeSessionClosed})
	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeSessionClosed})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestInMemoryPublisher_Close(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {})
	_ = pub.Subscribe("sub-2", Filter{}, func(event *models.Event) {})

	pub.Close()

	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after Close = %d, want 0", pub.SubscriberCount())
	}
}
