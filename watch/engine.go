// Package watch runs the reconciliation engine: one event loop that owns
// the selected project's state, merges poll and push results into it and
// publishes a View after every change.
package watch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/ratchetwatch/agent"
	"github.com/GoCodeAlone/ratchetwatch/metrics"
	"github.com/GoCodeAlone/ratchetwatch/notify"
	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/source"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

// ErrStopped is returned by commands sent after Run has returned.
var ErrStopped = errors.New("watch: engine stopped")

// Config tunes the engine and its adapters.
type Config struct {
	PollInterval           time.Duration
	MetricsIntervalSeconds int
	ActivityHistory        int
	ReconnectInitial       time.Duration
	MaxBackoff             time.Duration
	// ViewBuffer is the per-subscriber view queue length.
	ViewBuffer int
}

// event is one unit of work for the loop. gen 0 marks operator commands,
// which always apply; adapter events carry their session's generation.
type event struct {
	gen   uint64
	apply func()
}

// Engine is the single writer of all watch state.
type Engine struct {
	cfg      Config
	query    source.Querier
	subs     source.Subscriber
	notifier *notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	events chan event
	done   chan struct{}
	hub    *hub

	// Owned by the Run goroutine.
	runCtx    context.Context
	gen       uint64
	sess      *projectSession
	projectID string
	snap      *project.Snapshot
	rec       *task.Reconciler
	feed      *agent.Feed
	metrics   *metrics.Snapshot
	connected bool
	lastPoll  time.Time
	pollErr   string
	seq       uint64
}

// New builds an Engine. subs may be nil, in which case only the poller runs.
func New(cfg Config, query source.Querier, subs source.Subscriber, notifier *notify.Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.New(nil, logger)
	}
	if cfg.ViewBuffer <= 0 {
		cfg.ViewBuffer = 8
	}
	return &Engine{
		cfg:      cfg,
		query:    query,
		subs:     subs,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		hub:      newHub(cfg.ViewBuffer),
		rec:      task.NewReconciler(),
		feed:     agent.NewFeed(cfg.ActivityHistory),
	}
}

// Run applies events until ctx is cancelled. The current session is always
// released before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer close(e.done)
	defer e.hub.close()
	defer e.closeSession()

	e.publish(false)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.events:
			if ev.gen != 0 && ev.gen != e.gen {
				continue
			}
			ev.apply()
		}
	}
}

// Subscribe returns a channel of views, starting with the current one, and
// a function that ends the subscription.
func (e *Engine) Subscribe() (<-chan View, func()) {
	return e.hub.subscribe()
}

// Select switches to projectID. An empty id deselects.
func (e *Engine) Select(ctx context.Context, projectID string) error {
	return e.command(ctx, func() { e.selectProject(projectID) })
}

// Deselect stops watching any project.
func (e *Engine) Deselect(ctx context.Context) error {
	return e.Select(ctx, "")
}

// Dismiss closes the open completion modal. ok is false when none was open.
func (e *Engine) Dismiss(ctx context.Context, action notify.Action, dontShowAgain bool) (d notify.Dismissal, ok bool, err error) {
	type result struct {
		d  notify.Dismissal
		ok bool
	}
	reply := make(chan result, 1)
	err = e.command(ctx, func() {
		dismissal, closed := e.notifier.Dismiss(action, dontShowAgain)
		e.publish(false)
		reply <- result{dismissal, closed}
	})
	if err != nil {
		return notify.Dismissal{}, false, err
	}
	select {
	case r := <-reply:
		return r.d, r.ok, nil
	case <-ctx.Done():
		return notify.Dismissal{}, false, ctx.Err()
	case <-e.done:
		return notify.Dismissal{}, false, ErrStopped
	}
}

func (e *Engine) command(ctx context.Context, apply func()) error {
	select {
	case e.events <- event{apply: apply}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
}

func (e *Engine) selectProject(projectID string) {
	if projectID == e.projectID && (projectID == "" || e.sess != nil) {
		return
	}
	e.closeSession()

	e.gen++
	e.rec.Reset()
	e.feed.Reset()
	e.snap = nil
	e.metrics = nil
	e.connected = false
	e.lastPoll = time.Time{}
	e.pollErr = ""
	e.notifier.Select(projectID)
	e.projectID = projectID

	if projectID != "" {
		e.sess = e.openSession(e.runCtx, projectID, e.gen)
		e.logger.Info("project_selected", zap.String("project_id", projectID))
	}
	e.publish(false)
}

func (e *Engine) closeSession() {
	if e.sess == nil {
		return
	}
	if err := e.sess.close(); err != nil {
		e.logger.Warn("session_close", zap.String("project_id", e.sess.projectID), zap.Error(err))
	}
	e.sess = nil
}

func (e *Engine) applyPoll(r source.PollResult) {
	if r.Err != nil {
		e.connected = false
		e.pollErr = r.Err.Error()
		e.publish(true)
		return
	}
	snap := r.Snapshot
	e.snap = &snap
	e.connected = true
	e.pollErr = ""
	e.lastPoll = snap.FetchedAt
	e.rec.ApplyPoll(snap.CompletedTasks)
	e.notifier.Observe(snap.Project)
	e.publish(true)
}

func (e *Engine) applyTaskUpdate(t task.Task) {
	e.rec.ApplyUpdate(t)
	e.publish(true)
}

func (e *Engine) applyMetrics(m metrics.Snapshot) {
	e.metrics = &m
	e.publish(true)
}

func (e *Engine) applyActivity(ev agent.ActivityEvent) {
	e.feed.Push(ev)
	e.publish(true)
}

func (e *Engine) publish(restoreScroll bool) {
	e.seq++
	v := View{
		Seq:           e.seq,
		ProjectID:     e.projectID,
		Tasks:         e.rec.Tasks(),
		Activity:      e.feed.Events(),
		Connected:     e.connected,
		LastPollAt:    e.lastPoll,
		PollError:     e.pollErr,
		RestoreScroll: restoreScroll,
	}
	if e.snap != nil {
		p := e.snap.Project
		v.Project = &p
		v.Progress = project.Progress(&p)
		v.CompletionRate = project.CompletionRate(&p)
		v.Agents, v.AgentsDegraded = agent.Roster(e.snap.Agents, e.snap.HasAgents, e.feed)
	} else {
		v.Agents, v.AgentsDegraded = agent.Roster(nil, false, e.feed)
	}
	if e.metrics != nil {
		m := *e.metrics
		v.Metrics = &m
	}
	if m, ok := e.notifier.Modal(); ok {
		v.Modal = &m
	}
	e.hub.publish(v)
}
