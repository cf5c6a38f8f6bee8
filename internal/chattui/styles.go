package chattui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/ren/internal/models"
)

// Palette defines the chat screen colors (ANSI-256 codes).
type Palette struct {
	Name       string
	Foreground string
	Muted      string
	Accent     string
	UserBubble string
	BotBubble  string
	Error      string
	Border     string
}

// Palettes lists available palettes by name.
var Palettes = map[string]Palette{
	"default": {
		Name:       "default",
		Foreground: "252",
		Muted:      "244",
		Accent:     "39",
		UserBubble: "25",
		BotBubble:  "238",
		Error:      "160",
		Border:     "240",
	},
	"high-contrast": {
		Name:       "high-contrast",
		Foreground: "15",
		Muted:      "250",
		Accent:     "51",
		UserBubble: "21",
		BotBubble:  "0",
		Error:      "196",
		Border:     "15",
	},
}

// styles holds the pre-built styles for one palette.
type styles struct {
	palette Palette

	title     lipgloss.Style
	subtitle  lipgloss.Style
	muted     lipgloss.Style
	errorText lipgloss.Style
	user      lipgloss.Style
	bot       lipgloss.Style
	failed    lipgloss.Style
	pending   lipgloss.Style
	input     lipgloss.Style
}

func newStyles(name string) styles {
	p, ok := Palettes[name]
	if !ok {
		p = Palettes["default"]
	}
	bubble := lipgloss.NewStyle().Padding(0, 1)
	return styles{
		palette:   p,
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Accent)),
		subtitle:  lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)),
		errorText: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)),
		user: bubble.
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color(p.UserBubble)),
		bot: bubble.
			Foreground(lipgloss.Color(p.Foreground)).
			Background(lipgloss.Color(p.BotBubble)),
		failed: bubble.
			Foreground(lipgloss.Color(p.Error)).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color(p.Error)),
		pending: bubble.
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color(p.UserBubble)).
			Faint(true),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Border)).
			Padding(0, 1),
	}
}

// renderBubble renders one timeline entry as right-aligned (user) or
// left-aligned (assistant) lines inside width.
func (s styles) renderBubble(msg models.Message, width int, showTime bool, now time.Time) []string {
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 8 {
		bubbleWidth = width
	}

	text := msg.Text
	style := s.bot
	switch {
	case msg.ID == models.TypingEntryID:
		text = "Typing..."
		style = s.bot.Italic(true)
	case msg.IsError():
		style = s.failed
	case msg.IsPending():
		style = s.pending
	case msg.Sender == models.SenderUser:
		style = s.user
	}

	body := style.Render(wrapText(text, bubbleWidth-style.GetHorizontalFrameSize()))
	if showTime && !msg.CreatedAt.IsZero() {
		body = lipgloss.JoinVertical(lipgloss.Left, body, s.muted.Render(humanize.RelTime(msg.CreatedAt, now, "ago", "from now")))
	}

	align := lipgloss.Left
	if msg.Sender == models.SenderUser {
		align = lipgloss.Right
	}
	placed := lipgloss.PlaceHorizontal(width, align, body)
	return strings.Split(placed, "\n")
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	parts := strings.Split(text, "\n")
	for i := range parts {
		parts[i] = wordwrap.String(parts[i], width)
	}
	return strings.Join(parts, "\n")
}
