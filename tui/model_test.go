package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/GoCodeAlone/ratchetwatch/notify"
	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/projectapi"
	"github.com/GoCodeAlone/ratchetwatch/task"
	"github.com/GoCodeAlone/ratchetwatch/watch"
)

type fakeEngine struct {
	mu         sync.Mutex
	views      chan watch.View
	selected   []string
	deselected int
	dismissed  []notify.Dismissal
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{views: make(chan watch.View, 4)}
}

func (f *fakeEngine) Subscribe() (<-chan watch.View, func()) {
	return f.views, func() {}
}

func (f *fakeEngine) Select(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, id)
	return nil
}

func (f *fakeEngine) Deselect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deselected++
	return nil
}

func (f *fakeEngine) Dismiss(_ context.Context, action notify.Action, dont bool) (notify.Dismissal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := notify.Dismissal{Action: action, DontShowAgain: dont}
	f.dismissed = append(f.dismissed, d)
	return d, true, nil
}

type fakeSearch struct {
	items []project.Project
}

func (f fakeSearch) Search(_ context.Context, _ string, _ int) (projectapi.Page, error) {
	return projectapi.Page{Items: f.items, Total: len(f.items), Page: 1, PageSize: 20}, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func manyTasks(n int) []task.Task {
	out := make([]task.Task, n)
	for i := range out {
		out[i] = task.Task{ID: fmt.Sprintf("t%02d", i), Title: fmt.Sprintf("task %d", i), Status: task.StatusPending}
	}
	return out
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestModel_ShowsProjectAfterView(t *testing.T) {
	m := sized(t, New(context.Background(), newFakeEngine(), nil))
	if !strings.Contains(m.View(), "starting") {
		t.Errorf("view before first publish = %q", m.View())
	}

	m, _ = send(t, m, viewMsg(watch.View{
		ProjectID: "p1",
		Project:   &project.Project{ID: "p1", Name: "Apollo", Status: project.StatusRunning, TotalTasks: 4, CompletedTasks: 1},
		Progress:  25,
		Connected: true,
	}))
	out := m.View()
	if !strings.Contains(out, "Apollo") {
		t.Errorf("view missing project name:\n%s", out)
	}
	if strings.Contains(out, "Connecting") {
		t.Errorf("connected view shows connecting indicator:\n%s", out)
	}
}

func TestModel_BackendUpdateKeepsScroll(t *testing.T) {
	m := sized(t, New(context.Background(), newFakeEngine(), nil))
	tasks := manyTasks(60)
	m, _ = send(t, m, viewMsg(watch.View{ProjectID: "p1", Tasks: tasks}))

	for i := 0; i < 5; i++ {
		m, _ = send(t, m, runes("j"))
	}
	if m.Scroll() != 5 {
		t.Fatalf("scroll after 5 lines = %d", m.Scroll())
	}

	updated := manyTasks(60)
	updated[0].Status = task.StatusCompleted
	m, _ = send(t, m, viewMsg(watch.View{ProjectID: "p1", Tasks: updated, RestoreScroll: true}))
	if m.Scroll() != 5 {
		t.Errorf("scroll after backend update = %d, want 5", m.Scroll())
	}

	m, _ = send(t, m, viewMsg(watch.View{ProjectID: "p2", Tasks: manyTasks(60)}))
	if m.Scroll() != 0 {
		t.Errorf("scroll after project switch = %d, want 0", m.Scroll())
	}
}

func TestModel_ModalKeys(t *testing.T) {
	eng := newFakeEngine()
	m := sized(t, New(context.Background(), eng, nil))
	m, _ = send(t, m, viewMsg(watch.View{
		ProjectID: "p1",
		Project:   &project.Project{ID: "p1", Name: "Apollo", Status: project.StatusCompleted},
		Connected: true,
		Modal:     &notify.Modal{ProjectID: "p1", ProjectName: "Apollo"},
	}))
	if !strings.Contains(m.View(), "Project completed") {
		t.Fatalf("modal not rendered:\n%s", m.View())
	}

	m, _ = send(t, m, runes("d"))
	if !strings.Contains(m.View(), "[x]") {
		t.Errorf("don't show again not toggled:\n%s", m.View())
	}

	m, cmd := send(t, m, runes("v"))
	if cmd == nil {
		t.Fatal("view project returned no command")
	}
	msg := cmd()
	if _, ok := msg.(dismissedMsg); !ok {
		t.Fatalf("command produced %T", msg)
	}
	if len(eng.dismissed) != 1 {
		t.Fatalf("dismissed %d times", len(eng.dismissed))
	}
	if d := eng.dismissed[0]; d.Action != notify.ViewProject || !d.DontShowAgain {
		t.Errorf("dismissal = %+v", d)
	}

	m, _ = send(t, m, msg)
	if m.dontShowAgain {
		t.Error("checkbox not reset after dismissal")
	}
}

func TestModel_PickerSelectsRankedProject(t *testing.T) {
	eng := newFakeEngine()
	items := []project.Project{
		{ID: "p1", Name: "alpha", Status: project.StatusRunning},
		{ID: "p2", Name: "beta", Status: project.StatusPaused},
	}
	m := sized(t, New(context.Background(), eng, fakeSearch{items: items}))
	m, _ = send(t, m, viewMsg(watch.View{}))

	m, cmd := send(t, m, runes("/"))
	if !m.picking || cmd == nil {
		t.Fatalf("picker not opened: picking=%v", m.picking)
	}
	m, _ = send(t, m, searchMsg{query: "", page: projectapi.Page{Items: items}})
	if len(m.ranked) != 2 {
		t.Fatalf("ranked = %d, want 2", len(m.ranked))
	}

	m, _ = send(t, m, runes("b"))
	m, _ = send(t, m, runes("e"))
	if len(m.ranked) == 0 || m.ranked[0].ID != "p2" {
		t.Fatalf("ranked after typing = %+v", m.ranked)
	}

	m, cmd = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.picking {
		t.Error("picker still open after enter")
	}
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("select produced %v", msg)
	}
	if len(eng.selected) != 1 || eng.selected[0] != "p2" {
		t.Errorf("selected = %v", eng.selected)
	}
}

func TestModel_StopWatching(t *testing.T) {
	eng := newFakeEngine()
	m := sized(t, New(context.Background(), eng, nil))
	m, _ = send(t, m, viewMsg(watch.View{}))
	if _, cmd := send(t, m, runes("x")); cmd != nil {
		t.Error("x without a selection returned a command")
	}

	m, _ = send(t, m, viewMsg(watch.View{ProjectID: "p1"}))
	_, cmd := send(t, m, runes("x"))
	if cmd == nil {
		t.Fatal("x returned no command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("deselect produced %v", msg)
	}
	if eng.deselected != 1 {
		t.Errorf("deselected %d times", eng.deselected)
	}
}

func TestModel_StaleSearchIgnored(t *testing.T) {
	m := sized(t, New(context.Background(), newFakeEngine(), fakeSearch{}))
	m, _ = send(t, m, runes("/"))
	m, _ = send(t, m, runes("x"))
	m, _ = send(t, m, searchMsg{query: "", page: projectapi.Page{Items: []project.Project{{ID: "p1", Name: "alpha"}}}})
	if len(m.results) != 0 {
		t.Errorf("stale search applied: %+v", m.results)
	}
}

func TestModel_ViewsClosedQuits(t *testing.T) {
	m := New(context.Background(), newFakeEngine(), nil)
	_, cmd := send(t, m, viewsClosedMsg{})
	if cmd == nil {
		t.Fatal("no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("views closed did not quit")
	}
}
