package server

import (
	"net/http"
	"time"

	"github.com/acollard/roomgate/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound envelope. Exactly one of the request
// pointers is set per message.
type ClientMessage struct {
	BaseMessage
	CreateRoom *CreateRoom  `json:"createRoom,omitempty"`
	Join       *JoinRequest `json:"requestJoin,omitempty"`
	Approve    *UserAction  `json:"approveUser,omitempty"`
	Reject     *UserAction  `json:"rejectUser,omitempty"`
	Remove     *UserAction  `json:"removeUser,omitempty"`
	Publish    *Publish     `json:"sendMessage,omitempty"`
	RoomInfo   *RoomInfo    `json:"getRoomInfo,omitempty"`
	client     *Client
}

type CreateRoom struct {
	RoomName string `json:"roomName" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

type JoinRequest struct {
	Username string `json:"username" validate:"required"`
	RoomName string `json:"roomName" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// UserAction targets a pending or active member by session id. Shared
// by approveUser, rejectUser and removeUser.
type UserAction struct {
	SessionId string `json:"userSocketId" validate:"required"`
	RoomName  string `json:"roomName" validate:"required"`
}

type Publish struct {
	RoomName string `json:"roomName" validate:"required"`
	Content  string `json:"message" validate:"required"`
}

type RoomInfo struct {
	RoomName string `json:"roomName" validate:"required"`
}

// ServerMessage is the outbound envelope: an ack response, a chat
// message, or a pushed notification.
type ServerMessage struct {
	BaseMessage
	Response     *Response          `json:"response,omitempty"`
	Message      *types.ChatMessage `json:"newMessage,omitempty"`
	Notification *Notification      `json:"notification,omitempty"`
	SkipClient   *Client            `json:"-"`
}

type Response struct {
	Success bool           `json:"success"`
	Code    int            `json:"code"`
	Error   string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

type Notification struct {
	PendingUser     *MemberEvent     `json:"pendingUser,omitempty"`
	UserLists       *types.RoomLists `json:"updateUserLists,omitempty"`
	JoinApproved    *RoomEvent       `json:"joinApproved,omitempty"`
	UserJoined      *MemberEvent     `json:"userJoined,omitempty"`
	JoinRejected    *RoomEvent       `json:"joinRejected,omitempty"`
	RemovedFromRoom *RoomEvent       `json:"removedFromRoom,omitempty"`
	UserLeft        *MemberEvent     `json:"userLeft,omitempty"`
	RoomClosed      *RoomEvent       `json:"roomClosed,omitempty"`
}

type RoomEvent struct {
	RoomName string `json:"roomName"`
}

type MemberEvent struct {
	RoomName  string `json:"roomName"`
	SessionId string `json:"userSocketId"`
	Username  string `json:"username"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			Success: true,
			Code:    http.StatusOK,
			Data:    data,
		},
	}
}

func errResponse(id, code int, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			Code:  code,
			Error: msg,
		},
	}
}

func ErrValidation(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "missing required fields")
}

func ErrRoomExists(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "room already exists")
}

func ErrAlreadyInRoom(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "already in a room")
}

func ErrRoomNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "room not found")
}

func ErrInvalidCode(id int) *ServerMessage {
	return errResponse(id, http.StatusUnauthorized, "invalid room code")
}

func ErrNotAdmin(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "admin privileges required")
}

func ErrNotMember(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "not an active room member")
}

func ErrNotPending(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "user is not pending approval")
}

func ErrNotActive(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "user is not an active member")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
