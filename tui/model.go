// Package tui is the live terminal view of the watched project.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/ratchetwatch/notify"
	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/projectapi"
	"github.com/GoCodeAlone/ratchetwatch/render"
	"github.com/GoCodeAlone/ratchetwatch/selector"
	"github.com/GoCodeAlone/ratchetwatch/watch"
)

// Engine is the part of *watch.Engine the view drives.
type Engine interface {
	Subscribe() (<-chan watch.View, func())
	Select(ctx context.Context, projectID string) error
	Deselect(ctx context.Context) error
	Dismiss(ctx context.Context, action notify.Action, dontShowAgain bool) (notify.Dismissal, bool, error)
}

// Searcher runs server-side project search. *selector.Selector satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (projectapi.Page, error)
}

type viewMsg watch.View

type viewsClosedMsg struct{}

type searchMsg struct {
	query string
	page  projectapi.Page
	err   error
}

type dismissedMsg struct {
	d   notify.Dismissal
	ok  bool
	err error
}

type selectErrMsg struct{ err error }

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	engine Engine
	search Searcher
	views  <-chan watch.View
	unsub  func()

	view    watch.View
	hasView bool

	width  int
	height int

	tasks     viewport.Model
	spinner   spinner.Model
	input     textinput.Model
	scheduler render.Scheduler
	styles    styles
	title     cases.Caser

	picking   bool
	results   []project.Project
	ranked    []project.Project
	cursor    int
	searchErr string

	dontShowAgain bool
	statusLine    string
}

// New returns a Model subscribed to engine. Call Close after the program
// exits.
func New(ctx context.Context, engine Engine, search Searcher) Model {
	views, unsub := engine.Subscribe()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	in := textinput.New()
	in.Placeholder = "search projects"
	in.Prompt = "/ "
	in.CharLimit = 80

	st := newStyles()
	sp.Style = st.warn

	return Model{
		ctx:     ctx,
		engine:  engine,
		search:  search,
		views:   views,
		unsub:   unsub,
		tasks:   viewport.New(80, 10),
		spinner: sp,
		input:   in,
		styles:  st,
		title:   cases.Title(language.English),
	}
}

// Close ends the view subscription.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitView(m.views), m.spinner.Tick)
}

func waitView(ch <-chan watch.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return viewsClosedMsg{}
		}
		return viewMsg(v)
	}
}

func (m Model) searchCmd(query string) tea.Cmd {
	if m.search == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		page, err := m.search.Search(ctx, query, 1)
		return searchMsg{query: query, page: page, err: err}
	}
}

func (m Model) selectCmd(id string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := m.engine.Select(ctx, id); err != nil {
			return selectErrMsg{err}
		}
		return nil
	}
}

func (m Model) deselectCmd() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := m.engine.Deselect(ctx); err != nil {
			return selectErrMsg{err}
		}
		return nil
	}
}

func (m Model) dismissCmd(action notify.Action, dontShowAgain bool) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		d, ok, err := m.engine.Dismiss(ctx, action, dontShowAgain)
		return dismissedMsg{d: d, ok: ok, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case viewMsg:
		m.applyView(watch.View(msg))
		cmds = append(cmds, waitView(m.views))
	case viewsClosedMsg:
		return m, tea.Quit
	case searchMsg:
		if msg.query != strings.TrimSpace(m.input.Value()) {
			break
		}
		if msg.err != nil {
			m.searchErr = msg.err.Error()
			break
		}
		m.searchErr = ""
		m.results = msg.page.Items
		m.rerank()
	case dismissedMsg:
		m.dontShowAgain = false
		if msg.err != nil {
			m.statusLine = "dismiss failed: " + msg.err.Error()
			break
		}
		if msg.ok && msg.d.Action == notify.ViewProject {
			m.tasks.GotoTop()
			m.scheduler.Scrolled(0)
		}
	case selectErrMsg:
		m.statusLine = "select failed: " + msg.err.Error()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTasks()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.view.Modal != nil {
		switch key {
		case "v", "enter":
			return m, m.dismissCmd(notify.ViewProject, m.dontShowAgain)
		case "s", "esc":
			return m, m.dismissCmd(notify.StayHere, m.dontShowAgain)
		case "d", " ":
			m.dontShowAgain = !m.dontShowAgain
		}
		return m, nil
	}

	if m.picking {
		return m.handlePickerKey(msg)
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "/":
		m.picking = true
		m.cursor = 0
		m.input.Reset()
		return m, tea.Batch(m.input.Focus(), m.searchCmd(""))
	case "x":
		if !m.view.Selected() {
			return m, nil
		}
		return m, m.deselectCmd()
	case "j", "down":
		m.tasks.LineDown(1)
	case "k", "up":
		m.tasks.LineUp(1)
	case "pgdown", "f":
		m.tasks.ViewDown()
	case "pgup", "b":
		m.tasks.ViewUp()
	case "g", "home":
		m.tasks.GotoTop()
	case "G", "end":
		m.tasks.GotoBottom()
	default:
		return m, nil
	}
	m.scheduler.Scrolled(m.tasks.YOffset)
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.picking = false
		m.input.Blur()
		return m, nil
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.ranked)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.cursor >= len(m.ranked) {
			return m, nil
		}
		id := m.ranked[m.cursor].ID
		m.picking = false
		m.input.Blur()
		m.tasks.GotoTop()
		m.scheduler.Scrolled(0)
		return m, m.selectCmd(id)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	m.cursor = 0
	m.rerank()
	return m, tea.Batch(cmd, m.searchCmd(strings.TrimSpace(m.input.Value())))
}

func (m *Model) rerank() {
	m.ranked = selector.Rank(m.results, m.input.Value())
	if m.cursor >= len(m.ranked) {
		m.cursor = 0
	}
}

// applyView commits an engine view. Backend-driven views keep the
// operator's scroll position.
func (m *Model) applyView(v watch.View) {
	if v.ProjectID != m.view.ProjectID {
		m.tasks.GotoTop()
		m.scheduler.Scrolled(0)
	}
	if v.Modal == nil {
		m.dontShowAgain = false
	}
	m.view = v
	m.hasView = true
	m.scheduler.Commit(render.Intent{RestoreScroll: v.RestoreScroll})
	m.renderTasks()
	m.scheduler.BeforePaint(func(offset int) {
		m.tasks.SetYOffset(offset)
	})
}

func (m *Model) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	h := m.height - headerLines - 4
	if h < 3 {
		h = 3
	}
	m.tasks.Width = w
	m.tasks.Height = h
	m.input.Width = w - 4
}

func (m *Model) renderTasks() {
	m.tasks.SetContent(m.taskLines())
}

// Scroll returns the current task list offset.
func (m Model) Scroll() int { return m.tasks.YOffset }
