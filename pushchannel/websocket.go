package pushchannel

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"chat-sync/contract"
	"chat-sync/domain"
)

const handshakeTimeout = 10 * time.Second

// WebSocketTransport dials the backend's /ws endpoint. The credential and
// room identity travel as query parameters, matching the server handshake.
type WebSocketTransport struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWebSocketTransport(baseURL string) *WebSocketTransport {
	return &WebSocketTransport{
		baseURL: baseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

func (t *WebSocketTransport) Dial(ctx context.Context, room domain.RoomID, token string) (contract.Conn, error) {
	endpoint := fmt.Sprintf("%s/ws?token=%s&room_id=%d",
		t.baseURL, url.QueryEscape(token), room)
	conn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", t.baseURL, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
