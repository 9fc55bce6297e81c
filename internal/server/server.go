package server

import (
	"context"
	"log"
	"sync"

	"github.com/acollard/roomgate/internal/stats"
	"github.com/acollard/roomgate/internal/types"
	"golang.org/x/crypto/bcrypt"
)

// ChatServer owns the room registry and the session registry. Its run
// loop serializes room creation and teardown; per-room membership edits
// happen on each room's own goroutine.
type ChatServer struct {
	log         *log.Logger
	stats       stats.StatsProvider
	registry    *SessionRegistry
	dispatch    *Dispatcher
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	rooms       map[string]*Room

	createRoomChan chan *ClientMessage
	joinChan       chan *ClientMessage
	deRegisterChan chan *Client
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, st stats.StatsProvider) (*ChatServer, error) {
	for _, name := range []string{
		stats.ActiveConnections,
		stats.ActiveRooms,
		stats.PendingUsers,
		stats.MessagesSent,
	} {
		st.RegisterMetric(name)
	}

	return &ChatServer{
		log:            logger,
		stats:          st,
		registry:       NewSessionRegistry(),
		dispatch:       NewDispatcher(logger),
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		createRoomChan: make(chan *ClientMessage, 256),
		joinChan:       make(chan *ClientMessage, 256),
		deRegisterChan: make(chan *Client, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case msg := <-cs.createRoomChan:
			cs.handleCreateRoom(msg)
		case msg := <-cs.joinChan:
			cs.handleJoinRequest(msg)
		case c := <-cs.deRegisterChan:
			cs.handleDisconnect(c)
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for name, r := range cs.rooms {
				r.exit <- exitReq{}
				<-r.done
				delete(cs.rooms, name)
			}

			close(cs.done)
			return
		}
	}
}

// RegisterClient adds a connection. The connection has no user record
// until it creates or requests to join a room.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.ActiveConnections)
	cs.log.Printf("added connection %q", c.sessionId)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(stats.ActiveConnections)
	cs.log.Printf("removed connection %q", c.sessionId)
}

func (cs *ChatServer) handleCreateRoom(msg *ClientMessage) {
	c := msg.client
	req := msg.CreateRoom

	if c.getRoom() != nil {
		cs.dispatch.ToClient(c, ErrAlreadyInRoom(msg.Id))
		return
	}

	if _, ok := cs.rooms[req.RoomName]; ok {
		cs.dispatch.ToClient(c, ErrRoomExists(msg.Id))
		return
	}

	// the shared code is never kept in plaintext
	codeHash, err := bcrypt.GenerateFromPassword([]byte(req.Code), bcrypt.DefaultCost)
	if err != nil {
		cs.log.Println("hash room code:", err)
		cs.dispatch.ToClient(c, ErrInternalError(msg.Id))
		return
	}

	r := newRoom(req.RoomName, codeHash, c, cs.registry, cs.dispatch, cs.stats, cs.log)
	// a join processed by another room's actor may have bound this
	// connection after the check above
	if !c.claimRoom(r) {
		cs.dispatch.ToClient(c, ErrAlreadyInRoom(msg.Id))
		return
	}

	cs.rooms[r.name] = r
	cs.registry.Set(c.sessionId, UserRecord{
		Username: adminUsername,
		RoomName: r.name,
		Role:     types.RoleAdmin,
	})
	cs.stats.Incr(stats.ActiveRooms)

	go r.start()

	cs.dispatch.ToClient(c, NoErrOK(msg.Id, map[string]any{"roomName": r.name}))
}

func (cs *ChatServer) handleJoinRequest(msg *ClientMessage) {
	c := msg.client

	if c.getRoom() != nil {
		cs.dispatch.ToClient(c, ErrAlreadyInRoom(msg.Id))
		return
	}

	r, ok := cs.rooms[msg.Join.RoomName]
	if !ok {
		cs.dispatch.ToClient(c, ErrRoomNotFound(msg.Id))
		return
	}

	select {
	case r.joinChan <- msg:
	default:
		cs.log.Printf("join channel full on room %q", r.name)
		cs.dispatch.ToClient(c, ErrServiceUnavailable(msg.Id))
	}
}

// handleDisconnect routes a closed connection to its room. An admin
// disconnect is the one cascading path: the whole room is torn down.
func (cs *ChatServer) handleDisconnect(c *Client) {
	cs.removeClient(c)

	rec, ok := cs.registry.Get(c.sessionId)
	if !ok {
		cs.log.Printf("disconnect from %q with no user record", c.sessionId)
		return
	}

	r, ok := cs.rooms[rec.RoomName]
	if !ok {
		cs.log.Printf("disconnect from %q references unknown room %q", c.sessionId, rec.RoomName)
		cs.registry.Delete(c.sessionId)
		return
	}

	if rec.Role == types.RoleAdmin && r.admin == c {
		r.exit <- exitReq{closed: true}
		<-r.done
		delete(cs.rooms, r.name)
		cs.stats.Decr(stats.ActiveRooms)
		cs.log.Printf("room %q closed on admin disconnect", r.name)
		return
	}

	select {
	case r.leaveChan <- c:
	default:
		cs.log.Printf("leave channel full on room %q", r.name)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
