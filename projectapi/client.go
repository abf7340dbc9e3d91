// Package projectapi is the client for the project REST API: paged project
// listing for the selector and the completion-modal preference write.
package projectapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/ratchetwatch/project"
	"github.com/GoCodeAlone/ratchetwatch/session"
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("projectapi: not found")

// Page is one page of the project listing.
type Page struct {
	Items    []project.Project
	Total    int
	Page     int
	PageSize int
}

// Pages is the number of pages implied by Total and PageSize.
func (p Page) Pages() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Client holds HTTP client state for API calls.
type Client struct {
	BaseURL    string
	Tokens     session.TokenSource
	HTTPClient *http.Client
}

// New returns a Client rooted at baseURL.
func New(baseURL string, tokens session.TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// List returns one page of projects. Page numbers start at 1; an empty
// search matches everything.
func (c *Client) List(ctx context.Context, page, pageSize int, search string) (Page, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}
	path := "/api/projects"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw struct {
		Items    []record `json:"items"`
		Total    int      `json:"total"`
		Page     int      `json:"page"`
		PageSize int      `json:"page_size"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return Page{}, err
	}
	out := Page{
		Items:    make([]project.Project, 0, len(raw.Items)),
		Total:    raw.Total,
		Page:     raw.Page,
		PageSize: raw.PageSize,
	}
	for _, r := range raw.Items {
		out.Items = append(out.Items, r.toProject())
	}
	return out, nil
}

// record is a project as the REST API spells it.
type record struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Status               string     `json:"status"`
	TotalTasks           int        `json:"total_tasks"`
	CompletedTasks       int        `json:"completed_tasks"`
	FailedTasks          int        `json:"failed_tasks"`
	SuccessRate          float64    `json:"success_rate"`
	CompletionPercentage *float64   `json:"completion_percentage"`
	ShowCompletionModal  *bool      `json:"show_completion_modal"`
	CreatedAt            *time.Time `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
}

func (r record) toProject() project.Project {
	return project.Project{
		ID:                   r.ID,
		Name:                 r.Name,
		Description:          r.Description,
		Status:               project.NormalizeExecution(r.Status),
		TotalTasks:           r.TotalTasks,
		CompletedTasks:       r.CompletedTasks,
		FailedTasks:          r.FailedTasks,
		SuccessRate:          r.SuccessRate,
		CompletionPercentage: r.CompletionPercentage,
		ShowCompletionModal:  r.ShowCompletionModal,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type modalPreference struct {
	ShowCompletionModal bool `json:"show_completion_modal"`
}

// UpdateCompletionModalPreference persists whether the completion modal is
// shown for projectID. A 2xx answer is the acknowledgment.
func (c *Client) UpdateCompletionModalPreference(ctx context.Context, projectID string, show bool) error {
	if projectID == "" {
		return errors.New("project id is required")
	}
	body, err := json.Marshal(modalPreference{ShowCompletionModal: show})
	if err != nil {
		return err
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/completion-modal"
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(body), nil)
}

// do performs a request and decodes the JSON response into v (may be nil).
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		tok, err := c.Tokens.Token(ctx)
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+tok)
		case !errors.Is(err, session.ErrNotAuthenticated):
			return fmt.Errorf("read token: %w", err)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}
