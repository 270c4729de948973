// Package server manages individual client connections: the line-buffered
// read loop with its Connecting/Active/Closing state machine, the write
// pump, and lifecycle control for each connection.
package server

import (
	"bufio"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	writeTimeout  = 10 * time.Second
	sendQueueSize = 256
)

// Conn is the byte-stream contract the supervisor needs from a transport:
// ordered reads and writes, close, write deadlines, and a peer address.
// net.Conn satisfies it directly; the WebSocket adapter satisfies it by
// bridging messages to lines.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// Client is one connected peer. The read pump is the only goroutine that
// touches name; everything sent to the peer goes through the send channel
// so the connection has a single writer.
type Client struct {
	hub      *Hub
	conn     Conn
	addr     string
	send     chan string
	done     chan struct{}
	stopOnce sync.Once
	limiter  *rateLimiter
	maxLine  int
	name     string
}

func newClient(conn Conn, hub *Hub) *Client {
	cfg := hub.cfg
	return &Client{
		hub:     hub,
		conn:    conn,
		addr:    conn.RemoteAddr().String(),
		send:    make(chan string, sendQueueSize),
		done:    make(chan struct{}),
		limiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		maxLine: cfg.MaxLineBytes,
	}
}

// enqueue queues one outbound line without blocking. It reports false when
// the client is shutting down or its buffer is full.
func (c *Client) enqueue(line string) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- line:
		return true
	default:
		return false
	}
}

// stop transitions the client to Closing exactly once: it signals the write
// pump and closes the underlying connection, which unblocks any pending
// read.
func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection from %s: %v", c.addr, err)
		}
	})
}

// readPump runs the per-connection supervisor loop. The bufio.Scanner is
// the explicit line-buffering layer: it accumulates bytes until a full
// newline-delimited command is available, independent of how the transport
// chunks its reads. Explicit %leave/%exit and a failed read converge on the
// same exit path, so cleanup in Hub.drop is identical for both.
func (c *Client) readPump() {
	defer c.hub.drop(c)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 1024), c.maxLine)

	// Connecting: the first non-blank line is the display name.
	for c.name == "" {
		if !scanner.Scan() {
			c.logReadError(scanner.Err())
			return
		}
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			c.enqueue("Username cannot be empty.")
			continue
		}
		if err := c.hub.register(c, name); err != nil {
			log.Printf("Registration failed for %s: %v", c.addr, err)
			return
		}
		c.name = name
	}

	// Active: one command line per iteration.
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !c.limiter.allow() {
			log.Printf("Rate limit exceeded for %s; discarding line", c.addr)
			c.enqueue("Rate limit exceeded; message discarded.")
			continue
		}
		if !c.hub.dispatch(c, line) {
			return
		}
	}
	c.logReadError(scanner.Err())
}

func (c *Client) logReadError(err error) {
	if err == nil || isExpectedCloseError(err) {
		return
	}
	log.Printf("Read error from %s: %v", c.addr, err)
}

// writePump is the connection's single writer. On shutdown it flushes
// whatever is already queued before releasing the connection.
func (c *Client) writePump() {
	defer c.stop()
	for {
		select {
		case line := <-c.send:
			if c.writeLine(line) != nil {
				return
			}
		case <-c.done:
			for {
				select {
				case line := <-c.send:
					if c.writeLine(line) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Client) writeLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := io.WriteString(c.conn, line+"\n")
	if err != nil && !isExpectedCloseError(err) {
		log.Printf("Write to %s failed: %v", c.addr, err)
	}
	return err
}

// isExpectedCloseError checks if an error is expected during connection
// teardown.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if err == io.EOF {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}
