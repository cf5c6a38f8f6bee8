// Package chattui is the interactive chat screen for a conversation session.
package chattui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/ren/internal/chat"
	"github.com/tOgg1/ren/internal/events"
	"github.com/tOgg1/ren/internal/models"
)

const (
	defaultMaxInput      = 500
	defaultLoadThreshold = 3
	eventBuffer          = 64
	subscriberID         = "chattui"
)

// Config configures the chat screen.
type Config struct {
	Session        *chat.Session
	MaxInputLength int
	LoadThreshold  int
	ShowTimestamps bool
	Theme          string
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx     context.Context
	session *chat.Session
	events  chan *models.Event
	styles  styles
	now     func() time.Time

	maxInput       int
	loadThreshold  int
	showTimestamps bool

	// view is the last rendered session state, newest-first.
	view    []models.Message
	typing  bool
	cursor  models.PaginationCursor
	loading bool
	sending bool
	status  string

	input  []rune
	scroll int // messages hidden below the viewport
	width  int
	height int
}

type sessionEventMsg struct {
	event *models.Event
}

type loadResultMsg struct {
	result models.LoadResult
}

type sendResultMsg struct {
	result chat.SendResult
}

// NewModel subscribes to cfg.Session and returns the screen model.
func NewModel(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("chat session is required")
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = defaultMaxInput
	}
	if cfg.LoadThreshold < 0 {
		cfg.LoadThreshold = defaultLoadThreshold
	}

	m := &Model{
		ctx:            ctx,
		session:        cfg.Session,
		events:         make(chan *models.Event, eventBuffer),
		styles:         newStyles(cfg.Theme),
		now:            time.Now,
		maxInput:       cfg.MaxInputLength,
		loadThreshold:  cfg.LoadThreshold,
		showTimestamps: cfg.ShowTimestamps,
		view:           cfg.Session.View(),
		typing:         cfg.Session.Typing(),
		cursor:         cfg.Session.Cursor(),
	}
	if err := cfg.Session.Subscribe(subscriberID, events.Filter{}, m.enqueue); err != nil {
		return nil, fmt.Errorf("subscribe to session: %w", err)
	}
	return m, nil
}

// Run shows the chat screen until the user quits, then closes the session.
func Run(ctx context.Context, cfg Config) error {
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close detaches from the session and closes it.
func (m *Model) Close() {
	_ = m.session.Unsubscribe(subscriberID)
	m.session.Close()
}

// enqueue runs on the session's publishing goroutine. Every event carries
// the full view, so when the screen falls behind the oldest one is dropped.
func (m *Model) enqueue(ev *models.Event) {
	for {
		select {
		case m.events <- ev:
			return
		default:
		}
		select {
		case <-m.events:
		default:
		}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return sessionEventMsg{event: ev}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) loadNext() tea.Cmd {
	if m.loading || m.cursor.Exhausted || m.session.Closed() {
		return nil
	}
	m.loading = true
	return func() tea.Msg {
		return loadResultMsg{result: m.session.LoadNext(m.ctx)}
	}
}

func (m *Model) send() tea.Cmd {
	text := strings.TrimSpace(string(m.input))
	if text == "" || m.sending {
		return nil
	}
	m.sending = true
	m.input = m.input[:0]
	m.scroll = 0
	m.status = ""
	return func() tea.Msg {
		return sendResultMsg{result: m.session.Send(m.ctx, text)}
	}
}

// Init starts listening for session events and requests the first page.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.loadNext())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil

	case sessionEventMsg:
		m.apply(typed.event)
		if typed.event.Type == models.EventTypeSessionClosed {
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case loadResultMsg:
		m.loading = false
		if typed.result.Err != nil {
			m.status = "Couldn't load earlier messages. Scroll up to retry."
			return m, nil
		}
		m.cursor.Exhausted = typed.result.Exhausted
		return m, nil

	case sendResultMsg:
		m.sending = false
		if typed.result.Status == chat.SendBusy {
			m.status = "Still waiting for the last reply."
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) apply(ev *models.Event) {
	if ev == nil {
		return
	}
	m.view = ev.Messages
	m.typing = ev.Typing
	m.cursor = ev.Cursor
	if m.scroll > len(m.view)-1 {
		m.scroll = max(0, len(m.view)-1)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return tea.Quit
	case tea.KeyEnter:
		return m.send()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return nil
	case tea.KeyUp, tea.KeyPgUp:
		step := 1
		if msg.Type == tea.KeyPgUp {
			step = 5
		}
		return m.scrollBy(step)
	case tea.KeyDown, tea.KeyPgDown:
		step := 1
		if msg.Type == tea.KeyPgDown {
			step = 5
		}
		return m.scrollBy(-step)
	case tea.KeySpace:
		m.insert([]rune{' '})
		return nil
	case tea.KeyRunes:
		m.insert(msg.Runes)
		return nil
	}
	return nil
}

func (m *Model) insert(runes []rune) {
	room := m.maxInput - len(m.input)
	if room <= 0 {
		return
	}
	if len(runes) > room {
		runes = runes[:room]
	}
	m.input = append(m.input, runes...)
}

// scrollBy moves the viewport towards older (positive) or newer messages
// and requests another page once the oldest loaded message is close.
func (m *Model) scrollBy(delta int) tea.Cmd {
	m.scroll = min(max(0, m.scroll+delta), max(0, len(m.view)-1))
	if delta > 0 && len(m.view)-1-m.scroll <= m.loadThreshold {
		if m.status != "" && !m.loading {
			m.status = ""
		}
		return m.loadNext()
	}
	return nil
}

// View implements tea.Model.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	header := m.renderHeader(width)
	footer := m.renderFooter(width)
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderMessages(width, bodyHeight), footer)
}

func (m *Model) renderHeader(width int) string {
	subtitle := "Online"
	if m.typing {
		subtitle = "Typing..."
	}
	left := m.styles.title.Render("Chat with REN")
	right := m.styles.subtitle.Render(subtitle)
	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

// renderMessages fills height from the bottom with the newest visible
// messages.
func (m *Model) renderMessages(width, height int) string {
	if len(m.view) == 0 {
		text := "Say hello to start the conversation."
		if m.loading {
			text = "Loading conversation..."
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, m.styles.muted.Render(text))
	}

	now := m.now()
	var lines []string
	for i := m.scroll; i < len(m.view) && len(lines) < height; i++ {
		bubble := m.styles.renderBubble(m.view[i], width, m.showTimestamps, now)
		lines = append(append(bubble, ""), lines...)
	}
	if len(lines) < height && m.loading {
		lines = append([]string{m.styles.muted.Render("Loading earlier messages...")}, lines...)
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append([]string{""}, lines...)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter(width int) string {
	prompt := string(m.input)
	if m.sending {
		prompt = m.styles.muted.Render("Waiting for reply...")
	} else if prompt == "" {
		prompt = m.styles.muted.Render("Type a message...")
	}
	counter := m.styles.muted.Render(fmt.Sprintf("%d/%d", utf8.RuneCountInString(string(m.input)), m.maxInput))
	box := m.styles.input.Width(max(10, width-2)).Render(prompt)

	status := m.styles.muted.Render("enter send  ↑/↓ scroll  esc quit")
	if m.status != "" {
		status = m.styles.errorText.Render(m.status)
	}
	gap := max(1, width-lipgloss.Width(status)-lipgloss.Width(counter))
	return lipgloss.JoinVertical(lipgloss.Left, box, status+strings.Repeat(" ", gap)+counter)
}
