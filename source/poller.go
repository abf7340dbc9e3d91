package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/ratchetwatch/project"
)

// DefaultPollInterval is used when Poller.Interval is not positive.
const DefaultPollInterval = 2 * time.Second

// PollResult is the outcome of one snapshot query.
type PollResult struct {
	Snapshot project.Snapshot
	Err      error
}

// Poller re-issues the project status query on a fixed interval.
type Poller struct {
	Query     Querier
	ProjectID string
	Interval  time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

// Run queries once immediately and then every Interval until ctx is
// cancelled. Every outcome, success or failure, is handed to emit. Run
// returns nil on cancellation; query failures never end it.
//
// The details query runs after the first successful poll and on every poll
// that sees a terminal status, where the completion modal preference
// matters. A failed details query is logged and the last known details are
// kept.
func (p *Poller) Run(ctx context.Context, emit func(PollResult)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		details     Details
		haveDetails bool
	)
	for {
		snap, err := FetchProject(ctx, p.Query, p.ProjectID)
		if err == nil && (!haveDetails || snap.Project.Status.IsTerminal()) {
			d, derr := FetchDetails(ctx, p.Query, p.ProjectID)
			if derr == nil {
				details, haveDetails = d, true
			} else if ctx.Err() == nil {
				logger.Warn("project_details_failed",
					zap.String("project_id", p.ProjectID),
					zap.Error(derr),
				)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Warn("project_poll_failed",
				zap.String("project_id", p.ProjectID),
				zap.Error(err),
			)
		} else {
			details.Apply(&snap.Project)
			snap.FetchedAt = now()
		}
		emit(PollResult{Snapshot: snap, Err: err})

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
