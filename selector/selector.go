// Package selector lists projects for the picker and hands the chosen one
// to the engine.
package selector

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/projectapi"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 20

// Lister pages through projects. *projectapi.Client satisfies it.
type Lister interface {
	List(ctx context.Context, page, pageSize int, search string) (projectapi.Page, error)
}

// Chooser switches the watched project. *watch.Engine satisfies it.
type Chooser interface {
	Select(ctx context.Context, projectID string) error
}

// Selector combines server-side search with the engine's project switch.
type Selector struct {
	api      Lister
	engine   Chooser
	pageSize int
}

// New returns a Selector. engine may be nil for list-only use.
func New(api Lister, engine Chooser, pageSize int) *Selector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Selector{api: api, engine: engine, pageSize: pageSize}
}

// Search returns one page of projects matching query. Pages start at 1.
func (s *Selector) Search(ctx context.Context, query string, page int) (projectapi.Page, error) {
	if page < 1 {
		page = 1
	}
	return s.api.List(ctx, page, s.pageSize, query)
}

// Choose makes projectID the watched project. The engine drops all state
// accumulated for the previous project before the new one is polled.
func (s *Selector) Choose(ctx context.Context, projectID string) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Select(ctx, projectID)
}

type projectSource []project.Project

func (p projectSource) String(i int) string { return p[i].Name + " " + p[i].ID }
func (p projectSource) Len() int            { return len(p) }

// Rank orders projects by fuzzy match of query against name and id, best
// first, dropping non-matches. An empty query keeps the input order.
func Rank(projects []project.Project, query string) []project.Project {
	query = strings.TrimSpace(query)
	if query == "" {
		return append([]project.Project(nil), projects...)
	}
	matches := fuzzy.FindFrom(query, projectSource(projects))
	out := make([]project.Project, 0, len(matches))
	for _, m := range matches {
		out = append(out, projects[m.Index])
	}
	return out
}
