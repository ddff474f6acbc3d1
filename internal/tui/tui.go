// Package tui is a terminal front end for a live debate.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-debate/backend/internal/analysis/tone"
	"github.com/zhouzirui/z-debate/backend/internal/client"
	wsdebate "github.com/zhouzirui/z-debate/backend/internal/handler/debate"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	speakerStyles = []lipgloss.Style{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// Debater is the subset of client.Client the UI drives.
type Debater interface {
	StartDebate(speaker1, speaker2, topic string) error
	SendQuestion(question string) error
	ContinueDebate() error
	GenerateTopic() error
}

// Options configures a Model.
type Options struct {
	// Start 非空时在连接建立后立即开始辩论。
	Speaker1, Speaker2, Topic string
	// AutoContinue 大于 0 时每轮结束后按该间隔自动续辩。
	AutoContinue time.Duration
	// MaxLines 限制保留的记录行数，0 表示 200。
	MaxLines int
}

type lineKind int

const (
	lineTurn lineKind = iota
	lineUser
	lineInfo
	lineError
)

type line struct {
	kind    lineKind
	speaker string
	text    string
	tone    tone.Reading
}

// Message types
type eventMsg client.Event
type disconnectedMsg struct{}
type autoContinueMsg struct{ turn int }
type sendErrMsg struct{ err error }

// Model is the debate TUI.
type Model struct {
	debater Debater
	events  <-chan client.Event
	opts    Options

	input      textinput.Model
	transcript []line
	speakers   []string
	topic      string
	turns      int
	waiting    bool
	connected  bool
	quitting   bool
	width      int
}

// New creates the UI model. events is usually client.Events().
func New(debater Debater, events <-chan client.Event, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask the speakers a question, or /help"
	ti.CharLimit = 500
	ti.Width = 70
	ti.Focus()

	if opts.MaxLines <= 0 {
		opts.MaxLines = 200
	}

	return Model{
		debater: debater,
		events:  events,
		opts:    opts,
		input:   ti,
	}
}

// Init starts listening for server events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if text == "" {
				return m, nil
			}
			return m.submit(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 10 {
			m.input.Width = msg.Width - 6
		}

	case eventMsg:
		cmds = append(cmds, m.handleEvent(client.Event(msg)), waitForEvent(m.events))

	case disconnectedMsg:
		m.connected = false
		m.waiting = false
		m.appendLine(line{kind: lineError, text: "disconnected from server"})

	case autoContinueMsg:
		// 期间若已有新的轮次或请求，跳过这次自动续辩。
		if msg.turn == m.turns && !m.waiting && m.connected {
			m.waiting = true
			cmds = append(cmds, send(m.debater.ContinueDebate))
		}

	case sendErrMsg:
		m.waiting = false
		m.appendLine(line{kind: lineError, text: msg.err.Error()})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) submit(text string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(text, "/") {
		m.appendLine(line{kind: lineUser, text: text})
		m.waiting = true
		return *m, send(func() error { return m.debater.SendQuestion(text) })
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit":
		m.quitting = true
		return *m, tea.Quit
	case "/continue":
		m.waiting = true
		return *m, send(m.debater.ContinueDebate)
	case "/topic":
		return *m, send(m.debater.GenerateTopic)
	case "/start":
		sp1, sp2, topic, err := parseStart(strings.TrimSpace(strings.TrimPrefix(text, "/start")))
		if err != nil {
			m.appendLine(line{kind: lineError, text: err.Error()})
			return *m, nil
		}
		return *m, m.start(sp1, sp2, topic)
	case "/help":
		m.appendLine(line{kind: lineInfo, text: "/start <speaker> | <speaker> | <topic>, /continue, /topic, /quit; anything else is a question"})
		return *m, nil
	default:
		m.appendLine(line{kind: lineError, text: "unknown command " + fields[0]})
		return *m, nil
	}
}

func (m *Model) start(sp1, sp2, topic string) tea.Cmd {
	m.speakers = []string{sp1, sp2}
	m.topic = topic
	m.turns = 0
	m.transcript = nil
	m.waiting = true
	m.appendLine(line{kind: lineInfo, text: fmt.Sprintf("%s vs %s on %q", sp1, sp2, topic)})
	return send(func() error { return m.debater.StartDebate(sp1, sp2, topic) })
}

func (m *Model) handleEvent(ev client.Event) tea.Cmd {
	switch ev.Type {
	case wsdebate.TypeConnected:
		m.connected = true
		if m.opts.Speaker1 != "" && m.opts.Speaker2 != "" && m.opts.Topic != "" {
			return m.start(m.opts.Speaker1, m.opts.Speaker2, m.opts.Topic)
		}
		m.appendLine(line{kind: lineInfo, text: "connected; type /start <speaker> | <speaker> | <topic>"})

	case wsdebate.TypeTurnComplete:
		turn, err := ev.Turn()
		if err != nil {
			m.appendLine(line{kind: lineError, text: err.Error()})
			return nil
		}
		m.waiting = false
		m.turns++
		m.appendLine(line{kind: lineTurn, speaker: turn.Speaker, text: turn.Message, tone: tone.Analyze(turn.Message)})
		if m.opts.AutoContinue > 0 {
			turns := m.turns
			return tea.Tick(m.opts.AutoContinue, func(time.Time) tea.Msg { return autoContinueMsg{turn: turns} })
		}

	case wsdebate.TypeError:
		failure, err := ev.Failure()
		if err != nil {
			failure.Message = err.Error()
		}
		m.waiting = false
		m.appendLine(line{kind: lineError, text: failure.Message})

	case wsdebate.TypeTopic:
		result, err := ev.Topic()
		if err != nil {
			m.appendLine(line{kind: lineError, text: err.Error()})
			return nil
		}
		m.appendLine(line{kind: lineInfo, text: fmt.Sprintf("suggested topic: %s", result.Topic)})
	}
	return nil
}

func (m *Model) appendLine(l line) {
	m.transcript = append(m.transcript, l)
	if over := len(m.transcript) - m.opts.MaxLines; over > 0 {
		m.transcript = m.transcript[over:]
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	header := "Debate Stage"
	if len(m.speakers) == 2 {
		header = fmt.Sprintf("%s vs %s", m.speakers[0], m.speakers[1])
	}
	b.WriteString(titleStyle.Render(header) + "\n")
	if m.topic != "" {
		b.WriteString(infoStyle.Render("  Topic: "+m.topic) + "\n")
	}
	b.WriteString("\n")

	for _, l := range m.transcript {
		b.WriteString("  " + m.renderLine(l) + "\n")
	}
	if m.waiting {
		b.WriteString(infoStyle.Render("  ...") + "\n")
	}

	b.WriteString("\n  " + m.input.View() + "\n")
	b.WriteString(helpStyle.Render("  enter: send │ /continue │ /topic │ /start a | b | topic │ esc: quit"))
	return b.String()
}

func (m Model) renderLine(l line) string {
	switch l.kind {
	case lineTurn:
		style := speakerStyles[0]
		if len(m.speakers) == 2 && l.speaker == m.speakers[1] {
			style = speakerStyles[1]
		}
		rendered := style.Render(l.speaker+":") + " " + l.text
		if l.tone.Label != tone.Neutral && l.tone.Label != "" {
			rendered += " " + infoStyle.Render("["+string(l.tone.Label)+"]")
		}
		return rendered
	case lineUser:
		return userStyle.Render("You: " + l.text)
	case lineError:
		return errorStyle.Render("! " + l.text)
	default:
		return infoStyle.Render(l.text)
	}
}

// Transcript returns the plain text of the visible transcript.
func (m Model) Transcript() []string {
	out := make([]string, 0, len(m.transcript))
	for _, l := range m.transcript {
		if l.kind == lineTurn {
			out = append(out, l.speaker+": "+l.text)
			continue
		}
		out = append(out, l.text)
	}
	return out
}

var errStartUsage = errors.New("usage: /start <speaker> | <speaker> | <topic>")

// parseStart splits "Speaker One | Speaker Two | Topic".
func parseStart(args string) (string, string, string, error) {
	parts := strings.Split(args, "|")
	if len(parts) != 3 {
		return "", "", "", errStartUsage
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return "", "", "", errStartUsage
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// Commands

func waitForEvent(events <-chan client.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return disconnectedMsg{}
		}
		return eventMsg(ev)
	}
}

func send(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return sendErrMsg{err: err}
		}
		return nil
	}
}
