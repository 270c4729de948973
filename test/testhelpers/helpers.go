// Package testhelpers provides common utilities for testing the bulletin
// board server over real TCP connections.
//
// It contains helpers for starting a server on an ephemeral port and for
// driving a client session line by line with deadlines, to reduce
// duplication across integration tests.
package testhelpers

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/troyjj43/networks-project2/internal/server"
)

const (
	readTimeout    = 2 * time.Second
	silenceTimeout = 200 * time.Millisecond
)

// TestConfig returns the default configuration adjusted for tests: an
// effectively unlimited rate limit so rapid scripted commands are never
// throttled.
func TestConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.RateLimit.Burst = 10000
	return cfg
}

// StartServer runs a hub and TCP listener on an ephemeral port and returns
// them with the dialable address. Cleanup shuts both down.
func StartServer(t *testing.T, cfg server.Config) (*server.Hub, string) {
	t.Helper()

	hub := server.NewHub(cfg)
	tcp, err := server.NewTCPServer("127.0.0.1:0", hub)
	if err != nil {
		t.Fatalf("Failed to start TCP server: %v", err)
	}
	go func() {
		_ = tcp.Serve()
	}()
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		_ = tcp.Close()
	})
	return hub, tcp.Addr().String()
}

// Session is one scripted client connection.
type Session struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// Dial opens a raw connection without performing the username handshake.
func Dial(t *testing.T, addr string) *Session {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &Session{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// Connect opens a connection, performs the username handshake, and consumes
// the welcome line.
func Connect(t *testing.T, addr, name string) *Session {
	t.Helper()

	s := Dial(t, addr)
	s.Send(name)
	welcome := s.ReadLine()
	if !strings.HasPrefix(welcome, "Welcome to the bulletin board, "+name) {
		t.Fatalf("Unexpected welcome line for %s: %q", name, welcome)
	}
	return s
}

// Send writes one command line.
func (s *Session) Send(line string) {
	s.t.Helper()
	if err := s.conn.SetWriteDeadline(time.Now().Add(readTimeout)); err != nil {
		s.t.Fatalf("Failed to set write deadline: %v", err)
	}
	if _, err := fmt.Fprintf(s.conn, "%s\n", line); err != nil {
		s.t.Fatalf("Failed to send %q: %v", line, err)
	}
}

// ReadLine returns the next server line, failing the test on error or
// timeout.
func (s *Session) ReadLine() string {
	s.t.Helper()
	if err := s.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		s.t.Fatalf("Failed to set read deadline: %v", err)
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.t.Fatalf("Failed to read line: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// ExpectLine asserts the next server line matches exactly.
func (s *Session) ExpectLine(want string) {
	s.t.Helper()
	if got := s.ReadLine(); got != want {
		s.t.Fatalf("Read %q, want %q", got, want)
	}
}

// ExpectSilence asserts no line arrives within a short window.
func (s *Session) ExpectSilence() {
	s.t.Helper()
	if err := s.conn.SetReadDeadline(time.Now().Add(silenceTimeout)); err != nil {
		s.t.Fatalf("Failed to set read deadline: %v", err)
	}
	line, err := s.r.ReadString('\n')
	if err == nil {
		s.t.Fatalf("Expected silence, read %q", strings.TrimRight(line, "\r\n"))
	}
	var ne net.Error
	if !asNetError(err, &ne) || !ne.Timeout() {
		s.t.Fatalf("Expected read timeout, got %v", err)
	}
}

// ExpectClosed asserts the connection has been (or is about to be) closed
// by the server.
func (s *Session) ExpectClosed() {
	s.t.Helper()
	if err := s.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		s.t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		_, err := s.r.ReadString('\n')
		if err == nil {
			continue
		}
		var ne net.Error
		if asNetError(err, &ne) && ne.Timeout() {
			s.t.Fatal("Connection still open, expected server-side close")
		}
		return
	}
}

// Close terminates the connection abruptly, as a crashing client would.
func (s *Session) Close() {
	_ = s.conn.Close()
}

func asNetError(err error, target *net.Error) bool {
	ne, ok := err.(net.Error)
	if ok {
		*target = ne
	}
	return ok
}
