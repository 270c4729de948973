// Package server exposes the HTTP surface: WebSocket upgrades bridging
// browser clients onto the line protocol, and a health check.
package server

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSHandler upgrades HTTP requests and attaches the resulting connections
// to the hub through the same line-stream contract the TCP path uses.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewWSHandler builds the WebSocket endpoint with the configured origin
// allow-list.
func NewWSHandler(hub *Hub, cfg Config) *WSHandler {
	checker := newOriginChecker(cfg.AllowedOrigins)
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checker.check,
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(int64(h.hub.cfg.MaxLineBytes))
	h.hub.Attach(newWSConn(conn))
}

// HealthHandler provides a simple health check endpoint that returns server
// status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Bulletin board server is running!")
}

// wsConn adapts a WebSocket connection to the Conn line-stream contract.
// Each inbound message is surfaced as one newline-terminated line, and each
// outbound line becomes one text message with the newline stripped.
type wsConn struct {
	ws  *websocket.Conn
	buf bytes.Buffer
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// Read is only ever called from the connection's read pump.
func (c *wsConn) Read(p []byte) (int, error) {
	for c.buf.Len() == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.buf.Write(data)
		if len(data) == 0 || data[len(data)-1] != '\n' {
			c.buf.WriteByte('\n')
		}
	}
	return c.buf.Read(p)
}

// Write is only ever called from the connection's write pump.
func (c *wsConn) Write(p []byte) (int, error) {
	msg := bytes.TrimRight(p, "\n")
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
