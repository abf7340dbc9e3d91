package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/ratchetwatch/agent"
	"github.com/GoCodeAlone/ratchetwatch/graphql"
	"github.com/GoCodeAlone/ratchetwatch/metrics"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

const (
	taskUpdatesSubscription = `subscription TaskUpdates($projectId: ID!) {
  taskUpdates(projectId: $projectId) {
    id title status agentName progress createdAt completedAt
  }
}`

	metricsSubscription = `subscription SystemMetrics($intervalSeconds: Int!, $projectId: ID) {
  systemMetricsStream(intervalSeconds: $intervalSeconds, projectId: $projectId) {
    timestamp cpuUsage memoryUsage activeAgents activeTasks
    tasksCompletedToday tasksFailedToday averageTaskDuration systemHealthScore
  }
}`

	agentActivitySubscription = `subscription AgentActivity {
  agentActivity {
    agentId agentName eventType taskId status message timestamp
  }
}`
)

// Reconnect controls how a dropped subscription is re-established.
type Reconnect struct {
	Initial time.Duration
	Max     time.Duration
}

func (r Reconnect) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if r.Initial > 0 {
		b.InitialInterval = r.Initial
	}
	if r.Max > 0 {
		b.MaxInterval = r.Max
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// TaskUpdates streams per-task deltas for one project.
type TaskUpdates struct {
	Sub       Subscriber
	ProjectID string
	Reconnect Reconnect
	Logger    *zap.Logger
}

// Run delivers each delta to emit until ctx is cancelled.
func (a *TaskUpdates) Run(ctx context.Context, emit func(task.Task)) error {
	req := graphql.Request{
		Query:         taskUpdatesSubscription,
		OperationName: "TaskUpdates",
		Variables:     map[string]any{"projectId": a.ProjectID},
	}
	return stream(ctx, a.Sub, req, a.Reconnect, a.Logger, "task_updates", func(data json.RawMessage) error {
		var out struct {
			TaskUpdates *task.Record `json:"taskUpdates"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		if out.TaskUpdates != nil {
			emit(out.TaskUpdates.Task())
		}
		return nil
	})
}

// MetricsStream streams full system metrics snapshots.
type MetricsStream struct {
	Sub             Subscriber
	ProjectID       string
	IntervalSeconds int
	Reconnect       Reconnect
	Logger          *zap.Logger
}

// Run delivers each snapshot to emit until ctx is cancelled.
func (a *MetricsStream) Run(ctx context.Context, emit func(metrics.Snapshot)) error {
	interval := a.IntervalSeconds
	if interval <= 0 {
		interval = 5
	}
	vars := map[string]any{"intervalSeconds": interval}
	if a.ProjectID != "" {
		vars["projectId"] = a.ProjectID
	}
	req := graphql.Request{
		Query:         metricsSubscription,
		OperationName: "SystemMetrics",
		Variables:     vars,
	}
	return stream(ctx, a.Sub, req, a.Reconnect, a.Logger, "system_metrics", func(data json.RawMessage) error {
		var out struct {
			SystemMetricsStream *metrics.Snapshot `json:"systemMetricsStream"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		if out.SystemMetricsStream != nil {
			emit(*out.SystemMetricsStream)
		}
		return nil
	})
}

// AgentActivity streams discrete agent activity events.
type AgentActivity struct {
	Sub       Subscriber
	Reconnect Reconnect
	Logger    *zap.Logger
}

// Run delivers each event to emit until ctx is cancelled.
func (a *AgentActivity) Run(ctx context.Context, emit func(agent.ActivityEvent)) error {
	req := graphql.Request{
		Query:         agentActivitySubscription,
		OperationName: "AgentActivity",
	}
	return stream(ctx, a.Sub, req, a.Reconnect, a.Logger, "agent_activity", func(data json.RawMessage) error {
		var out struct {
			AgentActivity *agent.ActivityEvent `json:"agentActivity"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		if out.AgentActivity != nil {
			emit(*out.AgentActivity)
		}
		return nil
	})
}

// stream keeps one subscription alive until ctx is cancelled. Transport
// failures are logged and retried with exponential backoff; undecodable
// payloads are logged and skipped. The returned error is always nil so a
// failing feed never tears down its siblings.
func stream(ctx context.Context, sub Subscriber, req graphql.Request, rc Reconnect, logger *zap.Logger, name string, decode func(json.RawMessage) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := rc.backOff()

	for {
		received := false
		err := sub.Subscribe(ctx, req, func(data json.RawMessage) error {
			received = true
			if err := decode(data); err != nil {
				logger.Warn("subscription_payload_invalid",
					zap.String("subscription", name),
					zap.Error(err),
				)
			}
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if received {
			b.Reset()
		}

		wait := b.NextBackOff()
		logger.Warn("subscription_dropped",
			zap.String("subscription", name),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
