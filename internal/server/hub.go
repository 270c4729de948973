// Package server coordinates connection tracking, registration side
// effects, and graceful shutdown via the Hub type.
package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Hub owns the session registry and the set of live connections. Every
// connection's pump goroutines are tracked by the wait group so shutdown
// can deterministically drain them; nothing here is fire-and-forget.
type Hub struct {
	cfg      Config
	registry *Registry
	bcast    *Broadcaster

	mu    sync.Mutex
	conns map[*Client]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub with a registry seeded from the config's group
// catalog. The returned Hub is ready to accept connections.
func NewHub(cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(cfg.Groups),
		bcast:    NewBroadcaster(),
		conns:    make(map[*Client]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the hub's session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Running reports whether the hub still admits connections.
func (h *Hub) Running() bool {
	select {
	case <-h.ctx.Done():
		return false
	default:
		return true
	}
}

// Done is closed when shutdown begins; the transports watch it to stop
// accepting.
func (h *Hub) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Attach adopts a freshly accepted connection: it creates the client,
// tracks it for shutdown, and launches its read and write pumps. The
// connection is refused once shutdown has begun.
func (h *Hub) Attach(conn Conn) {
	if !h.Running() {
		_ = conn.Close()
		return
	}
	c := newClient(conn, h)

	// Re-check under the lock: Shutdown cancels the context before taking
	// h.mu for its snapshot, so a connection admitted here is guaranteed to
	// be in that snapshot and counted by the wait group.
	h.mu.Lock()
	if !h.Running() {
		h.mu.Unlock()
		c.stop()
		return
	}
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.wg.Add(2)
	h.mu.Unlock()
	log.Printf("Client connected from %s. Total connections: %d", c.addr, total)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// register completes the username handshake: it creates the session,
// replays recent board history to the newcomer, and announces the arrival
// to everyone else.
func (h *Hub) register(c *Client, name string) error {
	sid, err := h.registry.Register(c, name)
	if err != nil {
		return err
	}
	log.Printf("%s registered as %q (session %s)", c.addr, name, sid)

	c.enqueue(fmt.Sprintf("Welcome to the bulletin board, %s!", name))
	for _, rec := range h.registry.Board().Tail(h.cfg.HistoryReplay) {
		c.enqueue(formatPost(rec.ID, rec.Author, rec.Content))
	}
	h.bcast.Deliver(h.registry.Recipients(c), fmt.Sprintf("%s has joined the chat.", name))
	return nil
}

// drop is the single cleanup path for every way a connection ends: explicit
// %leave/%exit, peer disconnect, or forced close during shutdown. It stops
// the client, removes it from tracking, unregisters the session (scrubbing
// all group memberships), and notifies the remaining users.
func (h *Hub) drop(c *Client) {
	c.stop()

	h.mu.Lock()
	delete(h.conns, c)
	total := len(h.conns)
	h.mu.Unlock()

	if name, ok := h.registry.Unregister(c); ok {
		h.bcast.Deliver(h.registry.Recipients(c), fmt.Sprintf("%s has left the chat.", name))
		log.Printf("%s (%s) left. Total connections: %d", name, c.addr, total)
	} else {
		log.Printf("%s disconnected before joining. Total connections: %d", c.addr, total)
	}
}

// Shutdown stops admitting connections, force-closes every tracked
// connection to unblock pending reads, and waits for all pump goroutines to
// finish or the timeout to elapse. Safe to invoke concurrently with normal
// connect/disconnect traffic.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")
	h.cancel()

	h.mu.Lock()
	conns := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.stop()
	}
	log.Printf("Closed %d client connections", len(conns))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached; some connections may not have drained")
		return context.DeadlineExceeded
	}
}
