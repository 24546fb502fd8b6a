// Package shell is a terminal host for the monitoring engine: it renders the
// pushed status list and forwards selection back to the engine.
package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kyleking/gh-actionstatus/internal/bridge"
	"github.com/kyleking/gh-actionstatus/internal/model"
	"github.com/kyleking/gh-actionstatus/internal/ui"
)

// Engine is the part of the model the shell drives.
type Engine interface {
	Subscribe(l bridge.Listener) func()
	Refresh(ctx context.Context) *model.Pass
	CancelRefresh()
	Summary() string
}

// StatusMsg carries a pushed snapshot into the update loop.
type StatusMsg struct {
	Source  bridge.DataSource
	Passing bool
}

// RefreshDoneMsg reports the end of a refresh pass started from the shell.
type RefreshDoneMsg struct {
	Err error
}

// backgroundMsg carries the outcome of a pass the shell did not start.
type backgroundMsg struct {
	err error
}

type copiedMsg struct {
	text string
	err  error
}

// Model is the bubbletea model of the status view.
type Model struct {
	engine     Engine
	updates    chan StatusMsg
	background chan backgroundMsg
	ctx        context.Context

	src        bridge.DataSource
	passing    bool
	summary    string
	cursor     int
	refreshing bool
	status     string
	warning    string

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  ui.Styles
	copy    func(string) error
	text    func(src bridge.DataSource, item int) (string, error)
	width   int
}

// New creates the view. Call Attach before running the program.
func New(ctx context.Context, engine Engine, styles ui.Styles) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		engine:     engine,
		updates:    make(chan StatusMsg, 1),
		background: make(chan backgroundMsg, 1),
		ctx:        ctx,
		src:        bridge.NewSnapshot(nil, nil),
		passing:    true,
		// Init starts the first pass.
		refreshing: true,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		spinner:    sp,
		styles:     styles,
		copy:       clipboard.WriteAll,
	}
}

// WithClipboard replaces the clipboard writer.
func (m Model) WithClipboard(fn func(string) error) Model {
	m.copy = fn
	return m
}

// WithCopyText sets what the copy key puts on the clipboard for an item.
func (m Model) WithCopyText(fn func(src bridge.DataSource, item int) (string, error)) Model {
	m.text = fn
	return m
}

// Attach subscribes the view to the engine and returns the unsubscribe func.
// Notifications are coalesced: the view only ever renders the latest one.
func (m Model) Attach() func() {
	return m.engine.Subscribe(bridge.ListenerFunc(func(src bridge.DataSource, passing bool) {
		m.push(StatusMsg{Source: src, Passing: passing})
	}))
}

// Report shows the outcome of a scheduled pass. Only the latest unread
// report is kept.
func (m Model) Report(pass *model.Pass) {
	msg := backgroundMsg{err: pass.Err()}

	for {
		select {
		case m.background <- msg:
			return
		default:
		}

		select {
		case <-m.background:
		default:
		}
	}
}

func (m Model) waitForReport() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.background:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) push(msg StatusMsg) {
	for {
		select {
		case m.updates <- msg:
			return
		default:
		}

		select {
		case <-m.updates:
		default:
		}
	}
}

func (m Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.updates:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForStatus(), m.waitForReport(), m.spinner.Tick, m.refresh())
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		pass := m.engine.Refresh(m.ctx)
		return RefreshDoneMsg{Err: pass.Wait(m.ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

		return m, nil

	case StatusMsg:
		m.src = msg.Source
		m.passing = msg.Passing
		m.summary = m.engine.Summary()

		if n := m.src.ItemCount(); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}

		return m, m.waitForStatus()

	case RefreshDoneMsg:
		m.refreshing = false
		m.warning = ""

		if msg.Err != nil {
			m.warning = firstLine(msg.Err.Error())
		}

		return m, nil

	case backgroundMsg:
		// A pass started from the shell reports through RefreshDoneMsg.
		if !m.refreshing {
			m.warning = ""

			if msg.err != nil {
				m.warning = firstLine(msg.err.Error())
			}
		}

		return m, m.waitForReport()

	case copiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = "Copied " + msg.text
		}

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.src.ItemCount()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Select):
		if m.src.ItemCount() > 0 {
			m.src.SelectItem(m.cursor)
		}

	case key.Matches(msg, m.keys.Refresh):
		m.refreshing = true
		m.status = ""

		return m, m.refresh()

	case key.Matches(msg, m.keys.Cancel):
		m.engine.CancelRefresh()
		m.status = "Refresh cancelled"

	case key.Matches(msg, m.keys.Copy):
		if m.src.ItemCount() == 0 {
			return m, nil
		}

		src, item, text, write := m.src, m.cursor, m.text, m.copy
		label := src.Name(item)

		return m, func() tea.Msg {
			s, err := text(src, item)
			if err != nil {
				return copiedMsg{text: label, err: err}
			}

			return copiedMsg{text: label, err: write(s)}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Actions status"))
	b.WriteString("  ")
	b.WriteString(m.styles.Overall(m.passing))

	if m.refreshing {
		b.WriteString("  " + m.spinner.View())
	}

	b.WriteString("\n\n")

	n := m.src.ItemCount()
	if n == 0 {
		b.WriteString(m.styles.Subtitle.Render("No repos monitored. Add one with `gh actionstatus add`."))
		b.WriteString("\n")
	}

	for i := range n {
		line := m.styles.Status(m.src.Status(i)) + " " + m.src.Name(i)
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> ") + line)
		} else {
			b.WriteString("  " + m.styles.Normal.Render(line))
		}

		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render(m.summary))
	b.WriteString("\n")

	if m.warning != "" {
		b.WriteString(m.styles.Warning.Render("! " + m.warning))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(m.styles.Subtitle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))

	return b.String()
}

// Cursor returns the highlighted row.
func (m Model) Cursor() int {
	return m.cursor
}

// Run attaches m to its engine and blocks until the user quits.
func Run(ctx context.Context, m Model) error {
	detach := m.Attach()
	defer detach()

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("failed to run status view: %w", err)
	}

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " (and more)"
	}

	return s
}
