// Package task defines the task model, status normalization and the
// reconciler that merges polled and pushed task records for one project.
package task

import (
	"math"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task as shown to the operator.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further progress is expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Normalize maps a backend status spelling onto a Status. The REST API
// reports lowercase strings while the GraphQL schema uses enum names, and
// older backends say "done" or "running". Anything unrecognized is pending.
func Normalize(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "done":
		return StatusCompleted
	case "in_progress", "inprogress", "in-progress", "running":
		return StatusInProgress
	case "failed", "error":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Task is a unit of project work observed through a poll or a push.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      Status     `json:"status"`
	AgentName   string     `json:"agentName,omitempty"`
	Progress    int        `json:"progress"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Record is the wire shape of a task in both the project query and the
// taskUpdates subscription. Status is left raw so Normalize sees it.
type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	AgentName   string     `json:"agentName"`
	Progress    float64    `json:"progress"`
	CreatedAt   *time.Time `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// Task converts the wire record, normalizing status and clamping progress.
func (r Record) Task() Task {
	return Task{
		ID:          r.ID,
		Title:       r.Title,
		Status:      Normalize(r.Status),
		AgentName:   r.AgentName,
		Progress:    clampPercent(r.Progress),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

// clampPercent rounds v half away from zero and clamps it to [0,100]. NaN
// is 0.
func clampPercent(v float64) int {
	r := math.Round(v)
	switch {
	case math.IsNaN(r) || r <= 0:
		return 0
	case r >= 100:
		return 100
	}
	return int(r)
}

// FromRecords converts a slice of wire records.
func FromRecords(recs []Record) []Task {
	out := make([]Task, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Task())
	}
	return out
}
