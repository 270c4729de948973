// Package server implements the core of the bulletin-board chat service.
//
// The implementation is organized into specialized files for the message
// log, group directory, session registry, command interpreter, broadcast
// engine, per-connection supervision, and shutdown coordination, plus the
// TCP and WebSocket transports that feed connections into the hub.
package server
