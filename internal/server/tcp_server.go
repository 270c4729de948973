// Package server runs the raw TCP transport: a listener whose accept loop
// hands each connection to the hub and stops as soon as shutdown begins.
package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

// TCPServer accepts newline-delimited text connections for the hub.
type TCPServer struct {
	listener net.Listener
	hub      *Hub
}

// NewTCPServer binds the listener. An unusable listen address is the one
// startup failure that is fatal to the process.
func NewTCPServer(addr string, hub *Hub) (*TCPServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &TCPServer{listener: listener, hub: hub}, nil
}

// Addr returns the bound listen address.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until the hub shuts down. The listener is
// closed when the hub's Done channel fires, which unblocks a pending
// Accept so no new connections are admitted past that point.
func (s *TCPServer) Serve() error {
	go func() {
		<-s.hub.Done()
		_ = s.listener.Close()
	}()

	log.Printf("TCP server listening on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.hub.Running() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.hub.Attach(conn)
	}
}

// Close releases the listener. Safe to call more than once.
func (s *TCPServer) Close() error {
	err := s.listener.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
