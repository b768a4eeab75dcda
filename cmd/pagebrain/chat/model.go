// Package chat is the interactive terminal surface of pagebrain. Every
// session action runs in a tea.Cmd; the session reports back through a
// Surface that forwards into the running program.
package chat

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"pagebrain/internal/logging"
	"pagebrain/internal/session"
)

// Options configures Run.
type Options struct {
	URL     string
	Session *session.Session
	Surface *Surface
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
)

type entry struct {
	kind entryKind
	text string
}

// doneMsg ends a session action. The session has already shown any failure.
type doneMsg struct {
	err error
}

// Model is the bubbletea model of the chat.
type Model struct {
	ctx     context.Context
	session *session.Session
	url     string
	styles  Styles

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries       []entry
	status        string
	busy          bool
	trigger       bool
	choices       []string
	pendingReload bool

	width  int
	height int
	ready  bool
}

// New creates the model. Init starts the session on url.
func New(ctx context.Context, sess *session.Session, url string) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about the page, or type /help"
	ti.CharLimit = 0
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  sess,
		url:      url,
		styles:   DefaultStyles(),
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		busy:     true,
	}
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts.Session, opts.URL)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	opts.Surface.attach(p)
	defer opts.Surface.attach(nil)

	logging.Session("Chat started: session=%s url=%s", opts.Session.ID(), opts.URL)
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.call(func(ctx context.Context) error { return m.session.Start(ctx, m.url) }),
	)
}

// call runs fn off the event loop.
func (m Model) call(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case assistantMsg:
		m.appendEntry(entryAssistant, string(msg))
	case userMsg:
		m.appendEntry(entryUser, string(msg))
	case noticeMsg:
		m.appendEntry(entryNotice, string(msg))
	case statusMsg:
		m.status = string(msg)
	case triggerMsg:
		m.trigger = bool(msg)
	case choicesMsg:
		m.choices = []string(msg)
		m.layout()
	case inputMsg:
		m.busy = !bool(msg)
		if m.busy {
			m.input.Blur()
			return m, nil
		}
		if m.pendingReload {
			m.pendingReload = false
			return m, m.call(m.session.Reload)
		}
		return m, m.input.Focus()
	case reloadMsg:
		if m.busy {
			m.pendingReload = true
			return m, nil
		}
		return m, m.call(m.session.Reload)
	case doneMsg:
		if msg.err != nil && !session.IsReported(msg.err) {
			m.appendEntry(entryNotice, session.DescribeError(msg.err))
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		if model, ok := m.choiceFor(text); ok {
			return m, m.call(func(ctx context.Context) error { return m.session.SelectModel(ctx, model) })
		}
		return m, m.call(func(ctx context.Context) error { return m.session.Submit(ctx, text) })
	case "ctrl+r":
		return m, m.call(m.session.Reload)
	case "ctrl+o":
		return m, m.call(m.session.Overview)
	case "ctrl+a":
		if m.trigger {
			return m, m.call(m.session.AnalyzeNow)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// choiceFor maps a number typed while choices are offered to the model id.
func (m Model) choiceFor(text string) (string, bool) {
	if len(m.choices) == 0 {
		return "", false
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(m.choices) {
		return "", false
	}
	return m.choices[n-1], true
}

func (m *Model) appendEntry(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(width-4, 20)))
	if err == nil {
		m.renderer = r
	}
	m.ready = true
	m.layout()
	m.refresh()
}

// layout gives the viewport whatever the fixed rows leave.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-headerHeight-statusHeight-inputHeight-footerHeight-m.choicesHeight(), 3)
	m.input.Width = max(m.width-6, 10)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}
