// Package server defines the sentinel errors shared across the registry,
// message log, and command interpreter.
package server

import "errors"

var (
	// ErrAlreadyRegistered is returned by Register when the connection
	// handle already has a live session.
	ErrAlreadyRegistered = errors.New("session already registered")

	// ErrNotRegistered is returned by registry operations issued on behalf
	// of a connection that never completed the username handshake.
	ErrNotRegistered = errors.New("session not registered")

	// ErrNotFound is returned when a group reference resolves to nothing.
	ErrNotFound = errors.New("group not found")

	// ErrNotMember is returned for group-scoped operations issued by a
	// session that never joined the group.
	ErrNotMember = errors.New("not a member of the group")

	// ErrMalformed is returned by the command interpreter when a line
	// matches a command token but its arguments cannot be parsed.
	ErrMalformed = errors.New("malformed command")

	// ErrOutOfRange is returned by Log.Get for IDs outside [1, Len()].
	ErrOutOfRange = errors.New("message id out of range")
)
