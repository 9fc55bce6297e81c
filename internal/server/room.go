package server

import (
	"log"
	"slices"

	"github.com/acollard/roomgate/internal/stats"
	"github.com/acollard/roomgate/internal/types"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// adminUsername is the display name assigned to a room's creator.
const adminUsername = "Admin"

type exitReq struct {
	// closed marks an admin-initiated teardown; members are told the
	// room is gone before their records are deleted.
	closed bool
}

type member struct {
	client   *Client
	username string
}

// Room holds one room's full state. All mutation happens on the room's
// own goroutine (start), so handlers never race each other; distinct
// rooms run fully in parallel.
type Room struct {
	name     string
	codeHash []byte
	admin    *Client
	// pending and active preserve arrival order; removals are stable.
	pending []member
	active  []member
	// general is the broadcast group for room-wide events: the admin
	// plus every approved member. adminGrp holds only the admin, kept
	// as a group for uniform delivery.
	general  map[*Client]struct{}
	adminGrp map[*Client]struct{}

	registry *SessionRegistry
	dispatch *Dispatcher
	stats    stats.StatsProvider
	log      *log.Logger

	joinChan   chan *ClientMessage
	actionChan chan *ClientMessage
	leaveChan  chan *Client
	exit       chan exitReq
	done       chan struct{}
}

func newRoom(name string, codeHash []byte, admin *Client, registry *SessionRegistry, dispatch *Dispatcher, st stats.StatsProvider, l *log.Logger) *Room {
	return &Room{
		name:       name,
		codeHash:   codeHash,
		admin:      admin,
		general:    map[*Client]struct{}{admin: {}},
		adminGrp:   map[*Client]struct{}{admin: {}},
		registry:   registry,
		dispatch:   dispatch,
		stats:      st,
		log:        l,
		joinChan:   make(chan *ClientMessage, 256),
		actionChan: make(chan *ClientMessage, 256),
		leaveChan:  make(chan *Client, 256),
		exit:       make(chan exitReq),
		done:       make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.name)

	for {
		select {
		case msg := <-r.joinChan:
			r.handleJoinRequest(msg)
		case msg := <-r.actionChan:
			switch {
			case msg.Approve != nil:
				r.handleApprove(msg)
			case msg.Reject != nil:
				r.handleReject(msg)
			case msg.Remove != nil:
				r.handleRemove(msg)
			case msg.Publish != nil:
				r.handlePublish(msg)
			case msg.RoomInfo != nil:
				r.handleRoomInfo(msg)
			}
		case c := <-r.leaveChan:
			r.handleLeave(c)
		case e := <-r.exit:
			r.handleExit(e)
			close(r.done)
			return
		}
	}
}

func (r *Room) isAdmin(c *Client) bool {
	return c == r.admin
}

func (r *Room) findPending(sessionId string) (int, bool) {
	_, idx, ok := lo.FindIndexOf(r.pending, func(m member) bool {
		return m.client.sessionId == sessionId
	})
	return idx, ok
}

func (r *Room) findActive(sessionId string) (int, bool) {
	_, idx, ok := lo.FindIndexOf(r.active, func(m member) bool {
		return m.client.sessionId == sessionId
	})
	return idx, ok
}

// lists builds a snapshot copy of the membership; callers can't reach
// the room's internal slices through it.
func (r *Room) lists() *types.RoomLists {
	entry := func(m member, _ int) types.UserEntry {
		return types.UserEntry{
			SessionId: m.client.sessionId,
			Username:  m.username,
		}
	}

	return &types.RoomLists{
		Pending: lo.Map(r.pending, entry),
		Active:  lo.Map(r.active, entry),
	}
}

// refreshAdminLists pushes a fresh membership snapshot to the admin
// group. Sent after every membership change.
func (r *Room) refreshAdminLists() {
	r.dispatch.ToGroup(r.adminGrp, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			UserLists: r.lists(),
		},
	})
}

func (r *Room) handleJoinRequest(msg *ClientMessage) {
	c := msg.client
	join := msg.Join

	if bcrypt.CompareHashAndPassword(r.codeHash, []byte(join.Code)) != nil {
		r.log.Printf("join request for %q with bad code from %q", r.name, c.sessionId)
		r.dispatch.ToClient(c, ErrInvalidCode(msg.Id))
		return
	}

	// the server loop's membership check ran before this request was
	// queued; a second request from the same connection may have won a
	// room in the meantime
	if !c.claimRoom(r) {
		r.dispatch.ToClient(c, ErrAlreadyInRoom(msg.Id))
		return
	}

	r.pending = append(r.pending, member{client: c, username: join.Username})
	r.registry.Set(c.sessionId, UserRecord{
		Username: join.Username,
		RoomName: r.name,
		Role:     types.RolePending,
	})
	r.stats.Incr(stats.PendingUsers)

	// the admin gets both a single alert and a full refresh; the UI
	// consumes whichever it prefers
	r.dispatch.ToGroup(r.adminGrp, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			PendingUser: &MemberEvent{
				RoomName:  r.name,
				SessionId: c.sessionId,
				Username:  join.Username,
			},
		},
	})
	r.refreshAdminLists()

	r.dispatch.ToClient(c, NoErrOK(msg.Id, map[string]any{"status": "waiting"}))
}

func (r *Room) handleApprove(msg *ClientMessage) {
	if !r.isAdmin(msg.client) {
		r.dispatch.ToClient(msg.client, ErrNotAdmin(msg.Id))
		return
	}

	idx, ok := r.findPending(msg.Approve.SessionId)
	if !ok {
		r.dispatch.ToClient(msg.client, ErrNotPending(msg.Id))
		return
	}

	m := r.pending[idx]
	r.pending = slices.Delete(r.pending, idx, idx+1)
	r.active = append(r.active, m)
	r.registry.Set(m.client.sessionId, UserRecord{
		Username: m.username,
		RoomName: r.name,
		Role:     types.RoleActive,
	})
	r.general[m.client] = struct{}{}
	r.stats.Decr(stats.PendingUsers)

	// direct notification is best-effort: if the member raced a
	// disconnect the list move stands and the send is simply dropped
	r.dispatch.ToClient(m.client, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			JoinApproved: &RoomEvent{RoomName: r.name},
		},
	})
	r.dispatch.ToGroup(r.general, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			UserJoined: &MemberEvent{
				RoomName:  r.name,
				SessionId: m.client.sessionId,
				Username:  m.username,
			},
		},
	})
	r.refreshAdminLists()

	r.dispatch.ToClient(msg.client, NoErrOK(msg.Id, nil))
}

func (r *Room) handleReject(msg *ClientMessage) {
	if !r.isAdmin(msg.client) {
		r.dispatch.ToClient(msg.client, ErrNotAdmin(msg.Id))
		return
	}

	idx, ok := r.findPending(msg.Reject.SessionId)
	if !ok {
		r.dispatch.ToClient(msg.client, ErrNotPending(msg.Id))
		return
	}

	m := r.pending[idx]
	r.pending = slices.Delete(r.pending, idx, idx+1)
	// a rejected user was never a room member; the record goes away
	// and the room at large hears nothing
	r.registry.Delete(m.client.sessionId)
	m.client.clearRoom()
	r.stats.Decr(stats.PendingUsers)

	r.dispatch.ToClient(m.client, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			JoinRejected: &RoomEvent{RoomName: r.name},
		},
	})
	r.refreshAdminLists()

	r.dispatch.ToClient(msg.client, NoErrOK(msg.Id, nil))
}

func (r *Room) handleRemove(msg *ClientMessage) {
	if !r.isAdmin(msg.client) {
		r.dispatch.ToClient(msg.client, ErrNotAdmin(msg.Id))
		return
	}

	idx, ok := r.findActive(msg.Remove.SessionId)
	if !ok {
		r.dispatch.ToClient(msg.client, ErrNotActive(msg.Id))
		return
	}

	m := r.active[idx]
	r.active = slices.Delete(r.active, idx, idx+1)
	delete(r.general, m.client)
	r.registry.Delete(m.client.sessionId)
	m.client.clearRoom()

	r.dispatch.ToClient(m.client, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			RemovedFromRoom: &RoomEvent{RoomName: r.name},
		},
	})
	r.dispatch.ToGroup(r.general, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			UserLeft: &MemberEvent{
				RoomName:  r.name,
				SessionId: m.client.sessionId,
				Username:  m.username,
			},
		},
	})
	r.refreshAdminLists()

	r.dispatch.ToClient(msg.client, NoErrOK(msg.Id, nil))
}

func (r *Room) handlePublish(msg *ClientMessage) {
	c := msg.client

	rec, ok := r.registry.Get(c.sessionId)
	if !ok || rec.RoomName != r.name || (rec.Role != types.RoleActive && rec.Role != types.RoleAdmin) {
		r.dispatch.ToClient(c, ErrNotMember(msg.Id))
		return
	}

	id := uuid.NewString()
	ts := Now()

	// the sender's copy is tagged self-authored and must never reach
	// anyone else
	r.dispatch.ToClient(c, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: ts},
		Message: &types.ChatMessage{
			Id:           id,
			RoomName:     r.name,
			Username:     "You",
			Content:      msg.Publish.Content,
			IsOwnMessage: true,
			Timestamp:    ts,
		},
	})
	r.dispatch.ToGroup(r.general, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: ts},
		Message: &types.ChatMessage{
			Id:           id,
			RoomName:     r.name,
			Username:     rec.Username,
			Content:      msg.Publish.Content,
			IsOwnMessage: false,
			Timestamp:    ts,
		},
		SkipClient: c,
	})
	r.stats.Incr(stats.MessagesSent)

	r.dispatch.ToClient(c, NoErrOK(msg.Id, nil))
}

func (r *Room) handleRoomInfo(msg *ClientMessage) {
	if !r.isAdmin(msg.client) {
		r.dispatch.ToClient(msg.client, ErrNotAdmin(msg.Id))
		return
	}

	l := r.lists()
	r.dispatch.ToClient(msg.client, NoErrOK(msg.Id, map[string]any{
		"pending": l.Pending,
		"active":  l.Active,
	}))
}

// handleLeave processes a member or pending user disconnect. The admin
// never goes through here; its disconnect tears the room down instead.
func (r *Room) handleLeave(c *Client) {
	if idx, ok := r.findPending(c.sessionId); ok {
		r.pending = slices.Delete(r.pending, idx, idx+1)
		r.stats.Decr(stats.PendingUsers)
	} else if idx, ok := r.findActive(c.sessionId); ok {
		m := r.active[idx]
		r.active = slices.Delete(r.active, idx, idx+1)
		delete(r.general, c)

		r.dispatch.ToGroup(r.general, &ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				UserLeft: &MemberEvent{
					RoomName:  r.name,
					SessionId: c.sessionId,
					Username:  m.username,
				},
			},
		})
	} else {
		r.log.Printf("leave for %q not in room %q", c.sessionId, r.name)
		return
	}

	r.registry.Delete(c.sessionId)
	c.clearRoom()
	r.refreshAdminLists()
}

// handleExit finalizes the room. With closed set (admin disconnect)
// every member is told the room is gone; in both cases all member
// records are deleted so nothing references the room afterwards.
func (r *Room) handleExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.name)

	if e.closed {
		r.dispatch.ToGroup(r.general, &ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				RoomClosed: &RoomEvent{RoomName: r.name},
			},
		})
	}

	for _, m := range r.pending {
		r.registry.Delete(m.client.sessionId)
		m.client.clearRoom()
		r.stats.Decr(stats.PendingUsers)
	}
	for _, m := range r.active {
		r.registry.Delete(m.client.sessionId)
		m.client.clearRoom()
	}
	r.registry.Delete(r.admin.sessionId)
	r.admin.clearRoom()

	r.pending, r.active = nil, nil
	clear(r.general)
	clear(r.adminGrp)
}
