package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragbot/internal/dispatch"
)

// Dispatcher is the TUI-facing view of the chat dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) dispatch.Reply
}

type turn struct {
	user  string
	reply dispatch.Reply
}

type replyMsg struct {
	input string
	reply dispatch.Reply
	took  time.Duration
}

// Model is the Bubble Tea model of the chat console. It stands in for the
// messaging channel: each line typed is dispatched like an inbound message.
type Model struct {
	dispatcher Dispatcher
	timeout    time.Duration
	title      string
	summary    string
	input      textinput.Model
	viewport   viewport.Model
	turns      []turn
	status     string
	pending    bool
	ready      bool
}

// New creates a new chat console for title, showing summary under the header.
func New(d Dispatcher, title, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type 'get report'"
	ti.Focus()
	ti.CharLimit = 0
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return Model{
		dispatcher: d,
		timeout:    timeout,
		title:      title,
		summary:    summary,
		input:      ti,
		viewport:   viewport.New(0, 0),
		status:     "Ready. Type 'hello' to start, Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) dispatch(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		start := time.Now()
		reply := m.dispatcher.Dispatch(ctx, text)
		return replyMsg{input: text, reply: reply, took: time.Since(start)}
	}
}

// Update handles key, window and reply events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.pending = false
		m.turns = append(m.turns, turn{user: msg.input, reply: msg.reply})
		m.status = fmt.Sprintf("%s in %s", msg.reply.Intent, msg.took.Round(time.Millisecond))
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.pending {
				return m, nil
			}
			// empty input is dispatched too, it has its own reply
			text := m.input.Value()
			m.input.SetValue("")
			m.pending = true
			m.status = "Thinking..."
			return m, m.dispatch(text)
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the console layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.title + " chatbot")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet."
	}
	var sb strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(userStyle.Render("you: "))
		sb.WriteString(t.user)
		for _, seg := range t.reply.Segments {
			sb.WriteString("\n")
			sb.WriteString(botStyle.Render("bot: "))
			sb.WriteString(seg.Text)
			if seg.MediaURL != "" {
				sb.WriteString("\n     ")
				sb.WriteString(mediaStyle.Render("[attachment] " + seg.MediaURL))
			}
		}
	}
	return sb.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	mediaStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Underline(true)
)
