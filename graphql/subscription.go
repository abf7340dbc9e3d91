package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/GoCodeAlone/ratchetwatch/session"
)

// Subprotocol is the WebSocket subprotocol spoken by WSClient.
const Subprotocol = "graphql-transport-ws"

// graphql-transport-ws message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// ErrSubscriptionClosed is returned when the server completes a
// subscription that was expected to stay open.
var ErrSubscriptionClosed = errors.New("graphql: subscription completed by server")

type inbound struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// WSClient opens GraphQL subscriptions. Each Subscribe call owns its own
// connection, released when Subscribe returns.
type WSClient struct {
	URL        string
	Tokens     session.TokenSource
	Logger     *zap.Logger
	AckTimeout time.Duration
	ReadLimit  int64
	HTTPClient *http.Client
	UserAgent  string
}

// NewWSClient returns a WSClient for the given ws:// or wss:// URL. An
// http(s) URL is converted.
func NewWSClient(rawURL string, tokens session.TokenSource, logger *zap.Logger) (*WSClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSClient{
		URL:        u.String(),
		Tokens:     tokens,
		Logger:     logger,
		AckTimeout: 10 * time.Second,
		ReadLimit:  1 << 20,
	}, nil
}

// Subscribe runs req until ctx is cancelled, the server completes it, or the
// transport fails. onData receives the "data" member of every "next"
// message; an error from onData ends the subscription.
func (c *WSClient) Subscribe(ctx context.Context, req Request, onData func(json.RawMessage) error) error {
	header := http.Header{}
	if c.UserAgent != "" {
		header.Set("User-Agent", c.UserAgent)
	}
	if err := authorize(ctx, c.Tokens, header); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.ackTimeout())
	conn, _, err := websocket.Dial(dialCtx, c.URL, &websocket.DialOptions{
		HTTPClient:   c.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: []string{Subprotocol},
	})
	cancel()
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing") //nolint:errcheck
	if c.ReadLimit > 0 {
		conn.SetReadLimit(c.ReadLimit)
	}

	if err := c.handshake(ctx, conn, header.Get("Authorization")); err != nil {
		return err
	}

	id := uuid.NewString()
	if err := wsjson.Write(ctx, conn, outbound{ID: id, Type: msgSubscribe, Payload: req}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	c.Logger.Debug("graphql_subscribe",
		zap.String("id", id),
		zap.String("operation", req.OperationName),
	)

	for {
		var msg inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case msgPing:
			if err := wsjson.Write(ctx, conn, outbound{Type: msgPong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case msgPong:
		case msgNext:
			if msg.ID != id {
				continue
			}
			var r response
			if err := json.Unmarshal(msg.Payload, &r); err != nil {
				return fmt.Errorf("decode next: %w", err)
			}
			if len(r.Errors) > 0 {
				return r.Errors
			}
			if err := onData(r.Data); err != nil {
				return err
			}
		case msgError:
			if msg.ID != id {
				continue
			}
			var errs Errors
			if err := json.Unmarshal(msg.Payload, &errs); err != nil {
				return fmt.Errorf("decode error: %w", err)
			}
			return errs
		case msgComplete:
			if msg.ID == id {
				return ErrSubscriptionClosed
			}
		default:
			c.Logger.Debug("graphql_unknown_message", zap.String("type", msg.Type))
		}
	}
}

func (c *WSClient) handshake(ctx context.Context, conn *websocket.Conn, authorization string) error {
	init := outbound{Type: msgConnectionInit}
	if authorization != "" {
		init.Payload = map[string]string{"Authorization": authorization}
	}
	if err := wsjson.Write(ctx, conn, init); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	ackCtx, cancel := context.WithTimeout(ctx, c.ackTimeout())
	defer cancel()
	for {
		var msg inbound
		if err := wsjson.Read(ackCtx, conn, &msg); err != nil {
			return fmt.Errorf("await connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			if err := wsjson.Write(ackCtx, conn, outbound{Type: msgPong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		default:
			return fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
}

func (c *WSClient) ackTimeout() time.Duration {
	if c.AckTimeout <= 0 {
		return 10 * time.Second
	}
	return c.AckTimeout
}
