package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/acollard/roomgate/internal/stats"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

var validate = validator.New()

// Client is one websocket connection. Read and Write run as the
// connection's two pumps; everything else reaches the client through
// its buffered send channel.
type Client struct {
	sessionId  string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	stats      stats.StatsProvider
	send       chan *ServerMessage
	room       *Room
	roomLock   sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
	cleanOnce  sync.Once
}

func NewClient(sessionId string, conn *websocket.Conn, cs *ChatServer, l *log.Logger, st stats.StatsProvider) *Client {
	return &Client{
		sessionId:  sessionId,
		conn:       conn,
		chatServer: cs,
		log:        l,
		stats:      st,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) SessionId() string {
	return c.sessionId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write pump for %q exiting", c.sessionId)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read pump for %q exiting", c.sessionId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		c.route(&msg)
	}
}

// route validates the request payload and hands the message to the
// chat server loop or directly to the client's room actor.
func (c *Client) route(msg *ClientMessage) {
	switch {
	case msg.CreateRoom != nil:
		if validate.Struct(msg.CreateRoom) != nil {
			c.queueMessage(ErrValidation(msg.Id))
			return
		}
		c.sendToServer(c.chatServer.createRoomChan, msg)
	case msg.Join != nil:
		if validate.Struct(msg.Join) != nil {
			c.queueMessage(ErrValidation(msg.Id))
			return
		}
		c.sendToServer(c.chatServer.joinChan, msg)
	case msg.Approve != nil:
		c.routeAdminAction(msg, msg.Approve)
	case msg.Reject != nil:
		c.routeAdminAction(msg, msg.Reject)
	case msg.Remove != nil:
		c.routeAdminAction(msg, msg.Remove)
	case msg.RoomInfo != nil:
		if validate.Struct(msg.RoomInfo) != nil {
			c.queueMessage(ErrValidation(msg.Id))
			return
		}
		c.routeToRoom(msg, msg.RoomInfo.RoomName, ErrNotAdmin)
	case msg.Publish != nil:
		if validate.Struct(msg.Publish) != nil {
			c.queueMessage(ErrValidation(msg.Id))
			return
		}
		c.routeToRoom(msg, msg.Publish.RoomName, ErrNotMember)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) routeAdminAction(msg *ClientMessage, action *UserAction) {
	if validate.Struct(action) != nil {
		c.queueMessage(ErrValidation(msg.Id))
		return
	}
	c.routeToRoom(msg, action.RoomName, ErrNotAdmin)
}

// routeToRoom forwards a room-addressed request to the client's own
// room. A request naming a room the client isn't in fails the same way
// an authorization check would.
func (c *Client) routeToRoom(msg *ClientMessage, roomName string, mismatchErr func(int) *ServerMessage) {
	r := c.getRoom()
	if r == nil || r.name != roomName {
		c.queueMessage(mismatchErr(msg.Id))
		return
	}

	select {
	case r.actionChan <- msg:
	default:
		c.log.Printf("actionChan full for room %q", r.name)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) sendToServer(ch chan *ClientMessage, msg *ClientMessage) {
	select {
	case ch <- msg:
	default:
		c.log.Println("chat server channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send channel full for %q, dropping message", c.sessionId)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup hands the disconnect to the chat server exactly once; a
// second call is a no-op.
func (c *Client) cleanup() {
	c.cleanOnce.Do(func() {
		c.chatServer.deRegisterChan <- c
		c.stopClient()
	})
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

// claimRoom binds the client to r only if it has no room yet. Mutating
// handlers run on different goroutines, so membership is granted by
// whoever wins this claim, not by an earlier getRoom check.
func (c *Client) claimRoom(r *Room) bool {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	if c.room != nil {
		return false
	}

	c.room = r
	return true
}

func (c *Client) clearRoom() {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = nil
}

func (c *Client) getRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}
