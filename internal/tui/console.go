// Package tui implements the interactive console of the dasc front-end.
package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/das/internal/frontend"
	"github.com/mattjoyce/das/internal/protocol"
)

// maxLines bounds the scrollback kept in memory.
const maxLines = 1000

// Sender delivers requests to the supervisor.
type Sender interface {
	Send(req *protocol.Request) error
	Close() error
}

// --- Message types ---

type responseMsg string

type streamClosedMsg struct{}

// Model is the BubbleTea model of the console: a prompt for commands above a
// scrolling log of what was sent and what the supervisor reported.
type Model struct {
	parser    *frontend.Parser
	sender    Sender
	responses <-chan string

	width  int
	height int

	input    textinput.Model
	viewport viewport.Model
	lines    []string
	theme    Theme

	// requestsClosed is set once exit was sent or the stream was closed.
	requestsClosed bool
	lastError      string
}

// New creates a console reading status lines from responses. The channel
// must be closed when the supervisor closes the response stream.
func New(parser *frontend.Parser, sender Sender, responses <-chan string) Model {
	theme := NewDefaultTheme()

	input := textinput.New()
	input.Placeholder = "command, or exit"
	input.Prompt = "das> "
	input.PromptStyle = theme.Prompt
	input.Focus()

	return Model{
		parser:    parser,
		sender:    sender,
		responses: responses,
		input:     input,
		viewport:  viewport.New(80, 20),
		theme:     theme,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForResponse(m.responses),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.closeRequests()
			return m, tea.Quit
		case "ctrl+d":
			m.closeRequests()
			return m, nil
		case "enter":
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-6, 10)
		m.viewport.Height = max(msg.Height-8, 3)
		m.input.Width = max(msg.Width-12, 10)
		m.refresh()

	case responseMsg:
		m.appendLine(m.styleResponse(string(msg)))
		return m, waitForResponse(m.responses)

	case streamClosedMsg:
		return m, tea.Quit
	}

	var inputCmd, viewCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

func (m *Model) submit() {
	text := m.input.Value()
	m.input.Reset()

	if m.requestsClosed {
		m.lastError = "request stream is closed"
		return
	}

	req, err := m.parser.Parse(text)
	if errors.Is(err, frontend.ErrEmptyLine) {
		return
	}
	m.appendLine(m.theme.Echo.Render("> " + strings.TrimSpace(text)))
	if err != nil {
		m.appendLine(m.theme.Failed.Render(err.Error()))
		return
	}

	if err := m.sender.Send(req); err != nil {
		m.lastError = err.Error()
		return
	}
	m.lastError = ""
	if req.Kind == protocol.KindExit {
		m.closeRequests()
	}
}

func (m *Model) closeRequests() {
	if m.requestsClosed {
		return
	}
	m.requestsClosed = true
	m.input.Blur()
	if err := m.sender.Close(); err != nil {
		m.lastError = err.Error()
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) styleResponse(line string) string {
	switch {
	case strings.HasPrefix(line, "spawned external"):
		return m.theme.Spawned.Render(line)
	case strings.HasPrefix(line, "json: "):
		return m.theme.Failed.Render(line)
	case strings.HasSuffix(line, "terminated: 0"):
		return m.theme.OK.Render(line)
	case strings.Contains(line, " terminated"):
		return m.theme.Failed.Render(line)
	case strings.Contains(line, " stopped by signal"), strings.HasSuffix(line, " continued"):
		return m.theme.Stopped.Render(line)
	default:
		return m.theme.Dim.Render(line)
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to das..."
	}
	innerWidth := m.width - 4

	log := m.theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("das"),
			m.viewport.View(),
		),
	)

	status := m.theme.Dim.Render(" [enter] Run • [ctrl+d] Close requests • [ctrl+c] Quit")
	if m.requestsClosed {
		status = m.theme.Dim.Render(" Requests closed, waiting for das to finish... [ctrl+c] Quit")
	}
	if m.lastError != "" {
		status = m.theme.Failed.Render(" ⚠ " + m.lastError)
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, log, m.input.View(), status),
	)
}

// --- Commands ---

func waitForResponse(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return responseMsg(line)
	}
}
