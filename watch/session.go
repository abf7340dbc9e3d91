package watch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/ratchetwatch/agent"
	"github.com/GoCodeAlone/ratchetwatch/metrics"
	"github.com/GoCodeAlone/ratchetwatch/source"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

// projectSession owns the poller and the three subscriptions for one
// selected project. close releases all of them before returning.
type projectSession struct {
	gen       uint64
	projectID string
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// openSession starts the adapters for projectID. Every event they produce
// is tagged with gen and posted to the loop.
func (e *Engine) openSession(parent context.Context, projectID string, gen uint64) *projectSession {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	logger := e.logger.With(zap.String("project_id", projectID), zap.Uint64("session", gen))

	post := func(apply func()) {
		select {
		case e.events <- event{gen: gen, apply: apply}:
		case <-gctx.Done():
		}
	}

	reconnect := source.Reconnect{Initial: e.cfg.ReconnectInitial, Max: e.cfg.MaxBackoff}

	poller := &source.Poller{
		Query:     e.query,
		ProjectID: projectID,
		Interval:  e.cfg.PollInterval,
		Logger:    logger,
		Now:       e.now,
	}
	g.Go(func() error {
		return poller.Run(gctx, func(r source.PollResult) {
			post(func() { e.applyPoll(r) })
		})
	})

	if e.subs != nil {
		updates := &source.TaskUpdates{Sub: e.subs, ProjectID: projectID, Reconnect: reconnect, Logger: logger}
		g.Go(func() error {
			return updates.Run(gctx, func(t task.Task) {
				post(func() { e.applyTaskUpdate(t) })
			})
		})

		stream := &source.MetricsStream{
			Sub:             e.subs,
			ProjectID:       projectID,
			IntervalSeconds: e.cfg.MetricsIntervalSeconds,
			Reconnect:       reconnect,
			Logger:          logger,
		}
		g.Go(func() error {
			return stream.Run(gctx, func(m metrics.Snapshot) {
				post(func() { e.applyMetrics(m) })
			})
		})

		activity := &source.AgentActivity{Sub: e.subs, Reconnect: reconnect, Logger: logger}
		g.Go(func() error {
			return activity.Run(gctx, func(ev agent.ActivityEvent) {
				post(func() { e.applyActivity(ev) })
			})
		})
	}

	logger.Debug("session_opened")
	return &projectSession{gen: gen, projectID: projectID, cancel: cancel, group: g}
}

// close cancels the adapters and waits for every one of them to return.
func (s *projectSession) close() error {
	s.cancel()
	return s.group.Wait()
}
