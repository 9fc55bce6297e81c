package types

import "time"

// Role is a connection's standing within its room.
type Role string

const (
	RolePending Role = "pending"
	RoleActive  Role = "active"
	RoleAdmin   Role = "admin"
)

// UserEntry identifies a room participant on the wire.
type UserEntry struct {
	SessionId string `json:"userSocketId"`
	Username  string `json:"username"`
}

// RoomLists is a point-in-time copy of a room's membership. The slices
// are owned by the receiver and never alias the room's internal state.
type RoomLists struct {
	Pending []UserEntry `json:"pending"`
	Active  []UserEntry `json:"active"`
}

type ChatMessage struct {
	Id           string    `json:"id"`
	RoomName     string    `json:"roomName"`
	Username     string    `json:"username"`
	Content      string    `json:"message"`
	IsOwnMessage bool      `json:"isOwnMessage"`
	Timestamp    time.Time `json:"timestamp"`
}
