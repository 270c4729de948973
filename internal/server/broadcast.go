// Package server fans messages out to recipient snapshots. Delivery is
// best-effort per recipient: a full buffer or closing connection costs that
// recipient the message, never the rest of the fan-out.
package server

import "log"

// Broadcaster delivers one line to a set of clients. Recipient sets are
// snapshots computed by the registry under its lock; Deliver itself never
// touches the registry, so a slow recipient cannot stall registry
// operations for every other client.
type Broadcaster struct{}

// NewBroadcaster returns a broadcast engine.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Deliver enqueues line on every recipient's outbound stream. Failures are
// logged and skipped; they do not abort delivery to the remaining
// recipients and do not roll back whatever append produced the line.
func (b *Broadcaster) Deliver(recipients []*Client, line string) {
	for _, c := range recipients {
		if c == nil {
			continue
		}
		if !c.enqueue(line) {
			log.Printf("Dropped broadcast to %s: send buffer full or connection closing", c.addr)
		}
	}
}
