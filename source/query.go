// Package source holds the adapters that feed the reconciliation engine:
// the snapshot poller and the three push subscriptions.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/GoCodeAlone/ratchetwatch/agent"
	"github.com/GoCodeAlone/ratchetwatch/graphql"
	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/task"
)

// Querier runs a GraphQL query. *graphql.Client satisfies it.
type Querier interface {
	Do(ctx context.Context, req graphql.Request, out any) error
}

// Subscriber runs a GraphQL subscription until it ends. *graphql.WSClient
// satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, req graphql.Request, onData func(json.RawMessage) error) error
}

// ErrProjectNotFound is returned when the project query yields null.
var ErrProjectNotFound = errors.New("source: project not found")

// projectQuery selects only the status contract fields. Everything else
// lives in detailsQuery so a backend that lacks one of those fields cannot
// break the poll.
const projectQuery = `query ProjectStatus($id: ID!) {
  project(id: $id) {
    id
    name
    status
    completionPercentage
    totalTasks
    completedTasks
    failedTasks
    successRate
    estimatedTimeRemainingSeconds
    agents { id name status currentTaskId tasksCompleted successRate }
    completedTasksList { id title status agentName progress createdAt completedAt }
  }
}`

const detailsQuery = `query ProjectDetails($id: ID!) {
  project(id: $id) {
    description
    showCompletionModal
    createdAt
    updatedAt
  }
}`

// Counters are decoded as float64: some backends serialize them with a
// fractional part.
type projectRecord struct {
	ID                            string          `json:"id"`
	Name                          string          `json:"name"`
	Status                        string          `json:"status"`
	TotalTasks                    float64         `json:"totalTasks"`
	CompletedTasks                float64         `json:"completedTasks"`
	FailedTasks                   float64         `json:"failedTasks"`
	SuccessRate                   float64         `json:"successRate"`
	CompletionPercentage          *float64        `json:"completionPercentage"`
	EstimatedTimeRemainingSeconds float64         `json:"estimatedTimeRemainingSeconds"`
	Agents                        *[]agent.Record `json:"agents"`
	CompletedTasksList            []task.Record   `json:"completedTasksList"`
}

// Details are the optional project fields fetched apart from the status
// query.
type Details struct {
	Description         string     `json:"description"`
	ShowCompletionModal *bool      `json:"showCompletionModal"`
	CreatedAt           *time.Time `json:"createdAt"`
	UpdatedAt           *time.Time `json:"updatedAt"`
}

// Apply copies the details onto p.
func (d Details) Apply(p *project.Project) {
	p.Description = d.Description
	p.ShowCompletionModal = d.ShowCompletionModal
	p.CreatedAt = d.CreatedAt
	p.UpdatedAt = d.UpdatedAt
}

// FetchProject runs the project status query once. Only completed tasks are
// requested; they are what the reconciler needs from the poll.
func FetchProject(ctx context.Context, q Querier, projectID string) (project.Snapshot, error) {
	var out struct {
		Project *projectRecord `json:"project"`
	}
	req := graphql.Request{
		Query:         projectQuery,
		OperationName: "ProjectStatus",
		Variables:     map[string]any{"id": projectID},
	}
	if err := q.Do(ctx, req, &out); err != nil {
		return project.Snapshot{}, err
	}
	if out.Project == nil {
		return project.Snapshot{}, fmt.Errorf("project %s: %w", projectID, ErrProjectNotFound)
	}
	return out.Project.snapshot(), nil
}

// FetchDetails runs the optional details query once.
func FetchDetails(ctx context.Context, q Querier, projectID string) (Details, error) {
	var out struct {
		Project *Details `json:"project"`
	}
	req := graphql.Request{
		Query:         detailsQuery,
		OperationName: "ProjectDetails",
		Variables:     map[string]any{"id": projectID},
	}
	if err := q.Do(ctx, req, &out); err != nil {
		return Details{}, err
	}
	if out.Project == nil {
		return Details{}, fmt.Errorf("project %s: %w", projectID, ErrProjectNotFound)
	}
	return *out.Project, nil
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

func (r *projectRecord) snapshot() project.Snapshot {
	snap := project.Snapshot{
		Project: project.Project{
			ID:                            r.ID,
			Name:                          r.Name,
			Status:                        project.NormalizeExecution(r.Status),
			TotalTasks:                    count(r.TotalTasks),
			CompletedTasks:                count(r.CompletedTasks),
			FailedTasks:                   count(r.FailedTasks),
			SuccessRate:                   r.SuccessRate,
			CompletionPercentage:          r.CompletionPercentage,
			EstimatedTimeRemainingSeconds: count(r.EstimatedTimeRemainingSeconds),
		},
		CompletedTasks: task.FromRecords(r.CompletedTasksList),
	}
	if r.Agents != nil {
		snap.HasAgents = true
		snap.Agents = make([]agent.Agent, 0, len(*r.Agents))
		for _, a := range *r.Agents {
			snap.Agents = append(snap.Agents, a.Agent())
		}
	}
	return snap
}
