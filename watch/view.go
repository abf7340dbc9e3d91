package watch

import (
	"time"

	"github.com/GoCodeAlone/ratchetwatch/agent"
	"github.com/GoCodeAlone/ratchetwatch/metrics"
	"github.com/GoCodeAlone/ratchetwatch/notify"
	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

// View is an immutable copy of the engine state, published after every
// applied event.
type View struct {
	Seq       uint64
	ProjectID string

	// Project is nil until the first successful poll of the session.
	Project *project.Project
	Tasks   []task.Task

	Agents         []agent.Agent
	AgentsDegraded bool
	Activity       []agent.ActivityEvent

	// Metrics is nil until the first metrics push of the session.
	Metrics *metrics.Snapshot

	Progress       int
	CompletionRate int

	// Connected reflects the last poll: false before the first success and
	// after any failure.
	Connected  bool
	LastPollAt time.Time
	PollError  string

	Modal *notify.Modal

	// RestoreScroll is true for updates driven by the backend rather than
	// by the operator.
	RestoreScroll bool
}

// Selected reports whether a project is selected.
func (v View) Selected() bool { return v.ProjectID != "" }
