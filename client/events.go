package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/models"
)

// Subscribe opens the push stream of a session. Events are delivered on
// the returned channel until ctx ends or the server goes away, then the
// channel is closed.
func (c *Client) Subscribe(ctx context.Context, sessionID string) (<-chan models.SessionEvent, error) {
	u, err := c.eventsURL(sessionID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token, ok := c.SessionToken(sessionID); ok {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, newAPIError(resp)
		}
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	events := make(chan models.SessionEvent, 16)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		for {
			var event models.SessionEvent
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					zap.S().Debugw("event stream closed", "session", sessionID, "error", err)
				}
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (c *Client) eventsURL(sessionID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + APIPrefix + trialPath(sessionID, "/events")
	return u.String(), nil
}
