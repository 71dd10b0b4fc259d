// Package websocket maintains the push channel to the dashboard backend: a
// single connection delivering JSON frames, reconnected with a fixed delay
// whenever it drops.
package websocket

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Client wraps one WebSocket connection to the backend push endpoint.
type Client struct {
	url     string
	header  http.Header
	conn    *websocket.Conn
	closeMu sync.Mutex
	closed  bool
}

// NewClient creates a WebSocket client. The session token is sent as a
// bearer header on the upgrade request.
func NewClient(url string, token string) *Client {
	header := make(http.Header)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	return &Client{
		url:    url,
		header: header,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.conn = conn
	return nil
}

// ReadFrame blocks until the next text frame arrives and returns its raw
// bytes. A server close or a transport error both surface as an error.
func (c *Client) ReadFrame() ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("client not connected")
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket read failed: %w", err)
	}
	return data, nil
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed || c.conn == nil {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
