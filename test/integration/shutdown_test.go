package integration

import (
	"net"
	"testing"
	"time"

	"github.com/troyjj43/networks-project2/test/testhelpers"
)

// TestShutdownClosesClients verifies every connected session is closed when
// the hub shuts down, within the shutdown timeout.
func TestShutdownClosesClients(t *testing.T) {
	hub, addr := testhelpers.StartServer(t, testhelpers.TestConfig())

	alice := testhelpers.Connect(t, addr, "alice")
	bob := testhelpers.Connect(t, addr, "bob")
	alice.ExpectLine("bob has joined the chat.")

	if err := hub.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	alice.ExpectClosed()
	bob.ExpectClosed()
}

// TestShutdownRefusesNewConnections verifies the listener stops admitting
// connections once shutdown has begun.
func TestShutdownRefusesNewConnections(t *testing.T) {
	hub, addr := testhelpers.StartServer(t, testhelpers.TestConfig())

	if err := hub.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return
	}
	defer conn.Close()

	// The dial can still win the race with the listener teardown; in that
	// case the hub must close the connection instead of serving it.
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("Connection accepted after shutdown")
	}
}
