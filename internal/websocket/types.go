package websocket

import (
	"github.com/coder/websocket"

	"github.com/viaduct-dev/viaduct/internal/errors"
)

// Client is one connected browser session.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// ReloadMessage is the wire form of a reload notification. The timestamp is
// unix milliseconds so the client can feed it straight into Date().
type ReloadMessage struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
}

// CompileErrorMessage tells the client to show or dismiss the error overlay.
// Type is compile-error or compile-error-resolved.
type CompileErrorMessage struct {
	Type        string              `json:"type"`
	Path        string              `json:"path"`
	Diagnostics []errors.Diagnostic `json:"diagnostics,omitempty"`
}
