// Package project holds the project model as read from the backend and the
// progress figure derived from it.
package project

import (
	"strings"
	"time"

	"github.com/GoCodeAlone/ratchetwatch/agent"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

// ExecutionStatus is the run state of a whole project.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusPaused    ExecutionStatus = "paused"
)

// IsTerminal reports whether the project has finished, successfully or not.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NormalizeExecution maps the REST lowercase string or the GraphQL enum
// name onto an ExecutionStatus.
func NormalizeExecution(raw string) ExecutionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running", "in_progress", "inprogress", "active":
		return StatusRunning
	case "completed", "complete", "done":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	case "paused":
		return StatusPaused
	default:
		return StatusPending
	}
}

// Project is the client's read-mostly copy of a backend project.
type Project struct {
	ID                            string          `json:"id"`
	Name                          string          `json:"name"`
	Description                   string          `json:"description,omitempty"`
	Status                        ExecutionStatus `json:"status"`
	TotalTasks                    int             `json:"totalTasks"`
	CompletedTasks                int             `json:"completedTasks"`
	FailedTasks                   int             `json:"failedTasks"`
	SuccessRate                   float64         `json:"successRate"`
	CompletionPercentage          *float64        `json:"completionPercentage,omitempty"`
	EstimatedTimeRemainingSeconds int             `json:"estimatedTimeRemainingSeconds"`
	// ShowCompletionModal is nil until the operator has expressed a
	// preference; nil means show.
	ShowCompletionModal *bool      `json:"showCompletionModal,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

// ModalEnabled reports whether the completion modal may be shown.
func (p Project) ModalEnabled() bool {
	return p.ShowCompletionModal == nil || *p.ShowCompletionModal
}

// Snapshot is the decoded result of one project status query.
type Snapshot struct {
	Project        Project
	Agents         []agent.Agent
	HasAgents      bool // the query returned an agent list, possibly empty
	CompletedTasks []task.Task
	FetchedAt      time.Time
}
