// Package agent defines the agents working on a project and the activity
// feed used when the backend does not report them directly.
package agent

import (
	"math"
	"strings"
	"time"
)

// Status represents the current state of an agent.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusBusy   Status = "busy"
	StatusError  Status = "error"
)

// NormalizeStatus maps a backend agent status spelling onto a Status.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "online":
		return StatusActive
	case "busy", "working", "running", "in_progress":
		return StatusBusy
	case "error", "failed":
		return StatusError
	default:
		return StatusIdle
	}
}

// Agent is one worker as seen by the live view.
type Agent struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Status         Status  `json:"status"`
	CurrentTaskID  string  `json:"currentTaskId,omitempty"`
	TasksCompleted int     `json:"tasksCompleted"`
	SuccessRate    float64 `json:"successRate"`
}

// Record is the wire shape of an agent in the project query.
type Record struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	CurrentTaskID  string  `json:"currentTaskId"`
	TasksCompleted float64 `json:"tasksCompleted"`
	SuccessRate    float64 `json:"successRate"`
}

// Agent converts the wire record.
func (r Record) Agent() Agent {
	name := r.Name
	if name == "" {
		name = r.ID
	}
	return Agent{
		ID:             r.ID,
		Name:           name,
		Status:         NormalizeStatus(r.Status),
		CurrentTaskID:  r.CurrentTaskID,
		TasksCompleted: count(r.TasksCompleted),
		SuccessRate:    r.SuccessRate,
	}
}

// count rounds a decoded JSON number to a non-negative int.
func count(v float64) int {
	r := math.Round(v)
	if math.IsNaN(r) || r <= 0 {
		return 0
	}
	if r >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(r)
}

// ActivityEvent is one "something happened" message from the agentActivity
// subscription.
type ActivityEvent struct {
	AgentID   string    `json:"agentId"`
	AgentName string    `json:"agentName"`
	Type      string    `json:"eventType"`
	TaskID    string    `json:"taskId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Roster returns the agents to display. The project query's list is
// authoritative whenever it was returned. Otherwise a single agent is
// synthesized from the newest activity event and degraded is true.
func Roster(authoritative []Agent, hasAuthoritative bool, feed *Feed) (agents []Agent, degraded bool) {
	if hasAuthoritative {
		return append([]Agent(nil), authoritative...), false
	}
	ev, ok := feed.Latest()
	if !ok {
		return nil, false
	}
	name := ev.AgentName
	if name == "" {
		name = ev.AgentID
	}
	status := NormalizeStatus(ev.Status)
	if ev.Status == "" {
		status = StatusActive
	}
	return []Agent{{
		ID:            ev.AgentID,
		Name:          name,
		Status:        status,
		CurrentTaskID: ev.TaskID,
	}}, true
}
