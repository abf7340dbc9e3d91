// Package graphql is a minimal GraphQL client: queries over HTTP POST and
// subscriptions over the graphql-transport-ws WebSocket protocol.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoCodeAlone/ratchetwatch/session"
)

// Request is a GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Error is one entry of a GraphQL "errors" array.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Errors is returned when the server answered with a non-empty errors array.
type Errors []Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "graphql: unknown error"
	}
	msgs := make([]string, 0, len(e))
	for _, x := range e {
		msgs = append(msgs, x.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Client issues GraphQL queries over HTTP. Every request bypasses caches:
// the client keeps none and asks intermediaries not to serve one.
type Client struct {
	Endpoint   string
	Tokens     session.TokenSource
	HTTPClient *http.Client
	UserAgent  string
}

// NewClient returns a Client for endpoint with the given request timeout.
func NewClient(endpoint string, tokens session.TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		Endpoint:   endpoint,
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Do executes req and decodes the "data" member into out (may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}
	if err := authorize(ctx, c.Tokens, httpReq.Header); err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var r response
	if err := json.Unmarshal(respBody, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(r.Errors) > 0 {
		return r.Errors
	}
	if out == nil {
		return nil
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return errors.New("graphql: empty data")
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// authorize sets the bearer token. A missing token is not an error here:
// the request goes out bare and the backend decides.
func authorize(ctx context.Context, tokens session.TokenSource, h http.Header) error {
	if tokens == nil {
		return nil
	}
	tok, err := tokens.Token(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	h.Set("Authorization", "Bearer "+tok)
	return nil
}
