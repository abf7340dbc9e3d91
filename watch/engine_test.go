package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/GoCodeAlone/ratchetwatch/graphql"
	"github.com/GoCodeAlone/ratchetwatch/notify"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

// fakeBackend answers project queries from a per-project JSON body and
// serves taskUpdates from per-project channels.
type fakeBackend struct {
	mu       sync.Mutex
	projects map[string]string
	failing  map[string]bool
	updates  map[string]chan string
	active   int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		projects: make(map[string]string),
		failing:  make(map[string]bool),
		updates:  make(map[string]chan string),
	}
}

func (f *fakeBackend) setProject(id, status string, extra string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body := fmt.Sprintf(`{"project":{"id":%q,"name":"Project %s","status":%q,"totalTasks":4,"completedTasks":2%s}}`, id, id, status, extra)
	f.projects[id] = body
}

func (f *fakeBackend) setFailing(id string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[id] = failing
}

func (f *fakeBackend) updateChan(id string) chan string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.updates[id]
	if !ok {
		ch = make(chan string, 16)
		f.updates[id] = ch
	}
	return ch
}

func (f *fakeBackend) Do(_ context.Context, req graphql.Request, out any) error {
	id, _ := req.Variables["id"].(string)
	f.mu.Lock()
	body, ok := f.projects[id]
	failing := f.failing[id]
	f.mu.Unlock()
	if failing {
		return errors.New("backend unreachable")
	}
	if !ok {
		body = `{"project":null}`
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeBackend) Subscribe(ctx context.Context, req graphql.Request, onData func(json.RawMessage) error) error {
	atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)

	if !strings.Contains(req.Query, "taskUpdates") {
		<-ctx.Done()
		return ctx.Err()
	}
	id, _ := req.Variables["projectId"].(string)
	ch := f.updateChan(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := onData(json.RawMessage(msg)); err != nil {
				return err
			}
		}
	}
}

func taskUpdate(id, status string) string {
	return fmt.Sprintf(`{"taskUpdates":{"id":%q,"title":"task %s","status":%q}}`, id, id, status)
}

func startEngine(t *testing.T, backend *fakeBackend, n *notify.Notifier) (*Engine, <-chan View) {
	t.Helper()
	e := New(Config{PollInterval: 20 * time.Millisecond, ViewBuffer: 64}, backend, backend, n, zaptest.NewLogger(t))
	views, unsub := e.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		unsub()
	})
	return e, views
}

func waitView(t *testing.T, views <-chan View, what string, pred func(View) bool) View {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case v, ok := <-views:
			if !ok {
				t.Fatalf("view channel closed waiting for %s", what)
			}
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestEngine_SelectPollsProject(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "running", `,"completionPercentage":137,"completedTasksList":[{"id":"t1","status":"completed"}]`)
	e, views := startEngine(t, backend, nil)

	if err := e.Select(context.Background(), "p1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	v := waitView(t, views, "first poll", func(v View) bool { return v.Project != nil })
	if !v.Connected || v.ProjectID != "p1" {
		t.Errorf("view = %+v", v)
	}
	if v.Progress != 100 || v.CompletionRate != 100 {
		t.Errorf("progress = %d rate = %d, want 100", v.Progress, v.CompletionRate)
	}
	if len(v.Tasks) != 1 || v.Tasks[0].Status != task.StatusCompleted {
		t.Errorf("tasks = %+v", v.Tasks)
	}
	if !v.RestoreScroll {
		t.Error("poll-driven view should request scroll restore")
	}
}

func TestEngine_CompletedNeverRegresses(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "running", `,"completedTasksList":[{"id":"t1","status":"completed"}]`)
	e, views := startEngine(t, backend, nil)
	_ = e.Select(context.Background(), "p1")
	waitView(t, views, "poll", func(v View) bool { return v.Project != nil })

	backend.updateChan("p1") <- taskUpdate("t1", "in_progress")
	backend.updateChan("p1") <- taskUpdate("t2", "running")

	v := waitView(t, views, "t2 delta", func(v View) bool { return len(v.Tasks) == 2 })
	for _, tk := range v.Tasks {
		if tk.ID == "t1" && tk.Status != task.StatusCompleted {
			t.Errorf("t1 regressed to %s", tk.Status)
		}
	}
}

func TestEngine_ProjectSwitchClearsTasks(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "running", "")
	backend.setProject("p2", "running", "")
	e, views := startEngine(t, backend, nil)

	_ = e.Select(context.Background(), "p1")
	backend.updateChan("p1") <- taskUpdate("a", "in_progress")
	waitView(t, views, "p1 task", func(v View) bool { return len(v.Tasks) == 1 })

	_ = e.Select(context.Background(), "p2")
	v := waitView(t, views, "switch", func(v View) bool { return v.ProjectID == "p2" })
	if len(v.Tasks) != 0 || v.Project != nil || v.Connected {
		t.Errorf("first p2 view carried p1 state: %+v", v)
	}

	backend.updateChan("p2") <- taskUpdate("b", "pending")
	v = waitView(t, views, "p2 task", func(v View) bool { return len(v.Tasks) > 0 })
	if len(v.Tasks) != 1 || v.Tasks[0].ID != "b" {
		t.Errorf("tasks = %+v, want only b", v.Tasks)
	}
}

func TestEngine_ConnectedTracksLastPoll(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "running", "")
	backend.setFailing("p1", true)
	e, views := startEngine(t, backend, nil)
	_ = e.Select(context.Background(), "p1")

	v := waitView(t, views, "failed poll", func(v View) bool { return v.PollError != "" })
	if v.Connected {
		t.Error("Connected = true after a failed poll")
	}

	backend.setFailing("p1", false)
	waitView(t, views, "recovery", func(v View) bool { return v.Connected && v.PollError == "" })

	backend.setFailing("p1", true)
	waitView(t, views, "second failure", func(v View) bool { return !v.Connected && v.Project != nil })
}

func TestEngine_ModalAndDismiss(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "completed", "")
	w := &prefRecorder{}
	n := notify.New(w, zaptest.NewLogger(t))
	e, views := startEngine(t, backend, n)
	_ = e.Select(context.Background(), "p1")

	v := waitView(t, views, "modal", func(v View) bool { return v.Modal != nil })
	if v.Modal.ProjectID != "p1" || v.Modal.IsFailure {
		t.Errorf("modal = %+v", v.Modal)
	}

	d, ok, err := e.Dismiss(context.Background(), notify.ViewProject, true)
	if err != nil || !ok || d.Action != notify.ViewProject {
		t.Fatalf("Dismiss = %+v %v %v", d, ok, err)
	}
	waitView(t, views, "closed modal", func(v View) bool { return v.Modal == nil })
	n.Wait()
	if got := w.count(); got != 1 {
		t.Errorf("preference writes = %d, want 1", got)
	}

	// Subsequent polls of the same terminal project keep the modal closed.
	time.Sleep(60 * time.Millisecond)
	for {
		select {
		case v := <-views:
			if v.Modal != nil {
				t.Fatal("modal reopened during the same selection")
			}
			continue
		default:
		}
		break
	}
}

func TestEngine_StaleGenerationDropped(t *testing.T) {
	backend := newFakeBackend()
	e, _ := startEngine(t, backend, nil)
	_ = e.Select(context.Background(), "p1")

	applied := make(chan struct{}, 1)
	e.events <- event{gen: 1 << 40, apply: func() { applied <- struct{}{} }}
	// A command queued after the stale event proves the loop moved past it.
	synced := make(chan struct{})
	_ = e.command(context.Background(), func() { close(synced) })
	<-synced

	select {
	case <-applied:
		t.Error("event from an unknown session generation was applied")
	default:
	}
}

func TestEngine_DeselectClosesSession(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "running", `,"completedTasksList":[{"id":"t1","status":"completed"}]`)
	e, views := startEngine(t, backend, nil)

	_ = e.Select(context.Background(), "p1")
	waitView(t, views, "poll", func(v View) bool { return v.Project != nil })

	if err := e.Deselect(context.Background()); err != nil {
		t.Fatalf("Deselect: %v", err)
	}
	v := waitView(t, views, "empty view", func(v View) bool { return !v.Selected() })
	if v.Project != nil || len(v.Tasks) != 0 || v.Connected {
		t.Errorf("view after deselect = %+v", v)
	}
	if n := atomic.LoadInt32(&backend.active); n != 0 {
		t.Errorf("active subscriptions after deselect = %d, want 0", n)
	}
}

func TestEngine_RunReleasesSession(t *testing.T) {
	backend := newFakeBackend()
	backend.setProject("p1", "running", "")
	e := New(Config{PollInterval: 20 * time.Millisecond}, backend, backend, nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	_ = e.Select(context.Background(), "p1")
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&backend.active) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := atomic.LoadInt32(&backend.active); n != 3 {
		t.Fatalf("active subscriptions = %d, want 3", n)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
	if n := atomic.LoadInt32(&backend.active); n != 0 {
		t.Errorf("active subscriptions after Run = %d, want 0", n)
	}
	if err := e.Select(context.Background(), "p2"); !errors.Is(err, ErrStopped) {
		t.Errorf("Select after stop = %v, want ErrStopped", err)
	}
}

func TestHub_DropsOldestForSlowSubscriber(t *testing.T) {
	h := newHub(2)
	ch, unsub := h.subscribe()
	defer unsub()
	for i := uint64(1); i <= 5; i++ {
		h.publish(View{Seq: i})
	}
	first, second := <-ch, <-ch
	if first.Seq != 4 || second.Seq != 5 {
		t.Errorf("got %d,%d want 4,5", first.Seq, second.Seq)
	}

	late, unsubLate := h.subscribe()
	defer unsubLate()
	if v := <-late; v.Seq != 5 {
		t.Errorf("late subscriber first view = %d, want 5", v.Seq)
	}
}

type prefRecorder struct {
	mu sync.Mutex
	n  int
}

func (p *prefRecorder) UpdateCompletionModalPreference(_ context.Context, _ string, show bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !show {
		p.n++
	}
	return nil
}

func (p *prefRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
