package server

import (
	"testing"

	"github.com/acollard/roomgate/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestToClient(t *testing.T) {
	t.Run("delivers to the client", func(t *testing.T) {
		d := NewDispatcher(testutil.TestLogger(t))
		c := &Client{
			sessionId: "session-1",
			send:      make(chan *ServerMessage, 1),
			log:       testutil.TestLogger(t),
		}

		msg := &ServerMessage{}
		d.ToClient(c, msg)
		assert.Equal(t, msg, <-c.send)
	})
	t.Run("nil client", func(t *testing.T) {
		d := NewDispatcher(testutil.TestLogger(t))
		d.ToClient(nil, &ServerMessage{})
	})
	t.Run("full queue drops the message", func(t *testing.T) {
		d := NewDispatcher(testutil.TestLogger(t))
		c := &Client{
			sessionId: "session-1",
			send:      make(chan *ServerMessage, 1),
			log:       testutil.TestLogger(t),
		}
		c.send <- &ServerMessage{}

		d.ToClient(c, &ServerMessage{})
		assert.Len(t, c.send, 1, "expected the new message to be dropped")
	})
}

func TestToGroup(t *testing.T) {
	d := NewDispatcher(testutil.TestLogger(t))

	newC := func(id string) *Client {
		return &Client{
			sessionId: id,
			send:      make(chan *ServerMessage, 1),
			log:       testutil.TestLogger(t),
		}
	}
	c1, c2, c3 := newC("session-1"), newC("session-2"), newC("session-3")
	group := map[*Client]struct{}{c1: {}, c2: {}, c3: {}}

	d.ToGroup(group, &ServerMessage{SkipClient: c2})

	assert.Len(t, c1.send, 1, "expected delivery to session-1")
	assert.Len(t, c2.send, 0, "expected the skipped client to receive nothing")
	assert.Len(t, c3.send, 1, "expected delivery to session-3")
}
