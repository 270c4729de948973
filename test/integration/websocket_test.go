package integration

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/troyjj43/networks-project2/internal/server"
	"github.com/troyjj43/networks-project2/test/testhelpers"
)

// wsSession drives one WebSocket client, mirroring the TCP session helper.
type wsSession struct {
	t    *testing.T
	conn *websocket.Conn
}

func wsConnect(t *testing.T, url, name string) *wsSession {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	s := &wsSession{t: t, conn: conn}
	s.send(name)
	if got := s.readLine(); !strings.HasPrefix(got, "Welcome to the bulletin board, "+name) {
		t.Fatalf("Unexpected welcome line: %q", got)
	}
	return s
}

func (s *wsSession) send(line string) {
	s.t.Helper()
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		s.t.Fatalf("Failed to send %q: %v", line, err)
	}
}

func (s *wsSession) readLine() string {
	s.t.Helper()
	if err := s.conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		s.t.Fatal(err)
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.t.Fatalf("Failed to read message: %v", err)
	}
	return strings.TrimRight(string(data), "\r\n")
}

func (s *wsSession) expectLine(want string) {
	s.t.Helper()
	if got := s.readLine(); got != want {
		s.t.Fatalf("Read %q, want %q", got, want)
	}
}

// TestWebSocketSession verifies the WebSocket transport speaks the same
// line protocol as TCP: handshake, welcome, and command replies.
func TestWebSocketSession(t *testing.T) {
	cfg := testhelpers.TestConfig()
	cfg.AllowedOrigins = []string{"*"}
	hub, _ := testhelpers.StartServer(t, cfg)

	ts := httptest.NewServer(server.SetupRoutes(hub, cfg))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	wendy := wsConnect(t, wsURL, "wendy")
	wendy.send("%users")
	wendy.expectLine("wendy")

	wendy.send("%groups")
	wendy.expectLine("Available Groups:")
}

// TestCrossTransportBroadcast verifies a post made over WebSocket reaches a
// TCP client on the same board.
func TestCrossTransportBroadcast(t *testing.T) {
	cfg := testhelpers.TestConfig()
	cfg.AllowedOrigins = []string{"*"}
	hub, tcpAddr := testhelpers.StartServer(t, cfg)

	ts := httptest.NewServer(server.SetupRoutes(hub, cfg))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	alice := testhelpers.Connect(t, tcpAddr, "alice")

	wendy := wsConnect(t, wsURL, "wendy")
	alice.ExpectLine("wendy has joined the chat.")

	wendy.send("%post hello from the browser")
	alice.ExpectLine("Message ID: 1 | wendy posted: hello from the browser")

	alice.Send("%post hello from tcp")
	wendy.expectLine("Message ID: 2 | alice posted: hello from tcp")
}
