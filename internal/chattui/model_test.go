package chattui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/ren/internal/chat"
	"github.com/tOgg1/ren/internal/models"
)

func pagedHistory(pages int, perPage int, calls *atomic.Int32) chat.HistoryFetcherFunc {
	return func(_ context.Context, page int) (models.HistoryPage, error) {
		calls.Add(1)
		msgs := make([]models.HistoryMessage, 0, perPage)
		for i := 0; i < perPage; i++ {
			msgs = append(msgs, models.HistoryMessage{
				ID:      fmt.Sprintf("p%d-%d", page, i),
				Content: fmt.Sprintf("page %d message %d", page, i),
				Role:    models.RoleModel,
			})
		}
		return models.HistoryPage{Messages: msgs, HasNextPage: page < pages}, nil
	}
}

func echoReplies() chat.ReplyGeneratorFunc {
	return func(_ context.Context, text string) (string, error) {
		return "echo: " + text, nil
	}
}

func newTestModel(t *testing.T, history chat.HistoryFetcher, cfg Config) *Model {
	t.Helper()
	s, err := chat.NewSession(history, echoReplies())
	require.NoError(t, err)
	cfg.Session = s
	m, err := NewModel(context.Background(), cfg)
	require.NoError(t, err)
	m.width, m.height = 80, 30
	t.Cleanup(m.Close)
	return m
}

// drain applies every queued session event to the model.
func drain(m *Model) {
	for {
		select {
		case ev := <-m.events:
			m.Update(sessionEventMsg{event: ev})
		default:
			return
		}
	}
}

func run(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	m.Update(cmd())
	drain(m)
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestModelLoadsFirstPage(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 2, &calls), Config{})

	run(m, m.loadNext())

	require.False(t, m.loading)
	require.True(t, m.cursor.Exhausted)
	require.Len(t, m.view, 2)
	require.Nil(t, m.loadNext())
	require.Equal(t, int32(1), calls.Load())

	out := m.View()
	require.Contains(t, out, "Chat with REN")
	require.Contains(t, out, "Online")
	require.Contains(t, out, "page 1 message 1")
}

func TestModelSendShowsReply(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 0, &calls), Config{})

	typeText(m, "hello")
	cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, m.sending)
	require.Empty(t, m.input)

	run(m, cmd)

	require.False(t, m.sending)
	require.False(t, m.typing)
	require.Len(t, m.view, 2)
	require.Equal(t, "echo: hello", m.view[0].Text)
	require.Equal(t, "hello", m.view[1].Text)
	require.Contains(t, m.View(), "echo: hello")
}

func TestModelIgnoresBlankAndSendWhileSending(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 0, &calls), Config{})

	typeText(m, "   ")
	require.Nil(t, m.handleKey(tea.KeyMsg{Type: tea.KeyEnter}))

	m.input = []rune("first")
	require.NotNil(t, m.send())
	m.input = []rune("second")
	require.Nil(t, m.send())
	require.Equal(t, "second", string(m.input))
}

func TestModelInputIsCapped(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 0, &calls), Config{MaxInputLength: 5})

	typeText(m, "abc")
	typeText(m, "defgh")
	require.Equal(t, "abcde", string(m.input))
	require.Contains(t, m.View(), "5/5")

	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	require.Equal(t, "abcd", string(m.input))
}

func TestModelScrollingNearOldestLoadsMore(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(3, 5, &calls), Config{LoadThreshold: 2})

	run(m, m.loadNext())
	require.Len(t, m.view, 5)
	require.Equal(t, int32(1), calls.Load())

	// Scrolling up one message is still far from the oldest.
	require.Nil(t, m.scrollBy(1))

	run(m, m.scrollBy(1))
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, m.view, 10)
	require.Equal(t, 3, m.cursor.Page)

	run(m, m.scrollBy(-10))
	require.Equal(t, 0, m.scroll)
}

func TestModelLoadFailureAllowsRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	history := chat.HistoryFetcherFunc(func(_ context.Context, page int) (models.HistoryPage, error) {
		if fail.Load() {
			return models.HistoryPage{}, fmt.Errorf("offline")
		}
		return models.HistoryPage{Messages: []models.HistoryMessage{{ID: "a", Content: "hi", Role: models.RoleModel}}}, nil
	})
	m := newTestModel(t, history, Config{})

	run(m, m.loadNext())
	require.NotEmpty(t, m.status)
	require.Contains(t, m.View(), "Couldn't load earlier messages")

	fail.Store(false)
	run(m, m.scrollBy(1))
	require.Empty(t, m.status)
	require.Len(t, m.view, 1)
	require.True(t, m.cursor.Exhausted)
}

func TestModelHeaderShowsTyping(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 0, &calls), Config{})

	m.Update(sessionEventMsg{event: &models.Event{
		Type:     models.EventTypeTypingChanged,
		Typing:   true,
		Messages: []models.Message{models.TypingEntry()},
	}})

	out := m.View()
	require.Contains(t, out, "Typing...")
	require.False(t, strings.Contains(out, "Online"))
}

func TestModelQuitsWhenSessionCloses(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 0, &calls), Config{})

	_, cmd := m.Update(sessionEventMsg{event: &models.Event{Type: models.EventTypeSessionClosed}})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, pagedHistory(1, 0, &calls), Config{})

	for i := 0; i < eventBuffer+3; i++ {
		m.enqueue(&models.Event{Type: models.EventTypeCursorChanged, Cursor: models.PaginationCursor{Page: i}})
	}
	require.Len(t, m.events, eventBuffer)
	first := <-m.events
	require.Equal(t, 3, first.Cursor.Page)
}
