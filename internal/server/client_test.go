package server

import (
	"testing"

	"github.com/acollard/roomgate/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // Pre-fill the send channel to simulate a full channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()

	select {
	case <-c.stop:
		// Channel is closed as expected
	default:
		t.Error("expected stop channel to be closed")
	}

	// a second stop must not panic
	c.stopClient()
}

func Test_claimRoom(t *testing.T) {
	c := &Client{}
	r1 := &Room{name: "room-one"}
	r2 := &Room{name: "room-two"}

	assert.True(t, c.claimRoom(r1), "expected the first claim to win")
	assert.False(t, c.claimRoom(r2), "expected a claim on a bound client to fail")
	assert.Equal(t, r1, c.getRoom())

	c.clearRoom()
	assert.True(t, c.claimRoom(r2), "expected a claim after clearRoom to win")
}

func Test_route(t *testing.T) {
	t.Run("create room with missing fields", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			CreateRoom:  &CreateRoom{RoomName: "test-room"},
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.Equal(t, 400, msg.Response.Code)
		assertNoMessage(t, c)
	})
	t.Run("create room forwards to the server loop", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		req := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			CreateRoom:  &CreateRoom{RoomName: "test-room", Code: "s3cret"},
			client:      c,
		}
		c.route(req)

		select {
		case got := <-cs.createRoomChan:
			assert.Equal(t, req, got)
		default:
			t.Error("expected the request on createRoomChan")
		}
	})
	t.Run("join forwards to the server loop", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		req := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Join:        &JoinRequest{Username: "alice", RoomName: "test-room", Code: "s3cret"},
			client:      c,
		}
		c.route(req)

		select {
		case got := <-cs.joinChan:
			assert.Equal(t, req, got)
		default:
			t.Error("expected the request on joinChan")
		}
	})
	t.Run("admin action without a room", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Approve:     &UserAction{SessionId: "session-2", RoomName: "test-room"},
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.Equal(t, 403, msg.Response.Code)
		assert.Equal(t, "admin privileges required", msg.Response.Error)
	})
	t.Run("publish without a room", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Publish:     &Publish{RoomName: "test-room", Content: "hello"},
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.Equal(t, 403, msg.Response.Code)
		assert.Equal(t, "not an active room member", msg.Response.Error)
	})
	t.Run("room name mismatch", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		admin := newTestClient(t, cs, "admin-session")
		newTestRoom(t, cs, "test-room", "s3cret", admin)

		admin.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			RoomInfo:    &RoomInfo{RoomName: "other-room"},
			client:      admin,
		})

		msg := recvMessage(t, admin)
		assert.Equal(t, 403, msg.Response.Code)
	})
	t.Run("room action forwards to the room actor", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		admin := newTestClient(t, cs, "admin-session")
		r := newTestRoom(t, cs, "test-room", "s3cret", admin)

		req := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			RoomInfo:    &RoomInfo{RoomName: "test-room"},
			client:      admin,
		}
		admin.route(req)

		select {
		case got := <-r.actionChan:
			assert.Equal(t, req, got)
		default:
			t.Error("expected the request on the room action channel")
		}
	})
	t.Run("empty envelope", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		c.route(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.Equal(t, 400, msg.Response.Code)
		assert.Equal(t, "invalid message format", msg.Response.Error)
	})
}

func Test_routeToRoom(t *testing.T) {
	t.Run("action channel full", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		r := &Room{
			name:       "test-room",
			actionChan: make(chan *ClientMessage), // no receiver
		}
		c.setRoom(r)

		c.routeToRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Publish:     &Publish{RoomName: "test-room", Content: "hello"},
			client:      c,
		}, "test-room", ErrNotMember)

		msg := recvMessage(t, c)
		assert.Equal(t, 503, msg.Response.Code)
	})
}

func Test_sendToServer(t *testing.T) {
	t.Run("channel full", func(t *testing.T) {
		cs := newTestChatServer(t, newMockStats())
		c := newTestClient(t, cs, "session-1")

		full := make(chan *ClientMessage) // no receiver
		c.sendToServer(full, &ClientMessage{BaseMessage: BaseMessage{Id: 1}})

		msg := recvMessage(t, c)
		assert.Equal(t, 503, msg.Response.Code)
	})
}
