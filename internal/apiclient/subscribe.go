package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"reelshare/internal/models"
	"reelshare/internal/observability"

	"github.com/gorilla/websocket"
)

// Subscribe streams userID's notification events to fn until ctx is done or
// the connection drops. It returns nil when ctx ends the stream.
func (c *Client) Subscribe(ctx context.Context, userID string, fn func(models.Event)) error {
	wsURL, err := c.streamURL(userID)
	if err != nil {
		return err
	}

	header := http.Header{}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial notifications: %w", &StatusError{StatusCode: resp.StatusCode})
		}
		return fmt.Errorf("dial notifications: %w", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read notifications: %w", err)
		}
		var evt models.Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			observability.Logger.WarnContext(ctx, "dropping malformed event", "error", err)
			continue
		}
		fn(evt)
	}
}

func (c *Client) streamURL(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("subscribe: user id is required")
	}
	base := c.RealtimeURL
	if base == "" {
		base = c.BaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/ws")
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"userId": {userID}}.Encode()
	return u.String(), nil
}
