package server

import "log"

// Dispatcher delivers server messages to their audience: a single
// client, a room's general group, or the admin-only group. Delivery is
// best-effort; a vanished or slow client is skipped, never waited on.
type Dispatcher struct {
	log *log.Logger
}

func NewDispatcher(l *log.Logger) *Dispatcher {
	return &Dispatcher{log: l}
}

func (d *Dispatcher) ToClient(c *Client, msg *ServerMessage) {
	if c == nil {
		return
	}

	if !c.queueMessage(msg) {
		d.log.Printf("dropped message for session %q", c.sessionId)
	}
}

func (d *Dispatcher) ToGroup(group map[*Client]struct{}, msg *ServerMessage) {
	for c := range group {
		if c == msg.SkipClient {
			continue
		}

		d.ToClient(c, msg)
	}
}
