package server

import (
	"sync"

	"github.com/acollard/roomgate/internal/types"
)

// UserRecord tracks a connection's place in the room system. A record
// exists only while the connection participates in a room, from room
// creation or join request until disconnect, rejection or removal.
type UserRecord struct {
	Username string
	RoomName string
	Role     types.Role
}

// SessionRegistry maps session ids to user records. It owns the records
// exclusively; rooms reference members by session id but never mutate
// records directly.
type SessionRegistry struct {
	mu      sync.RWMutex
	records map[string]UserRecord
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		records: make(map[string]UserRecord),
	}
}

func (sr *SessionRegistry) Set(sessionId string, rec UserRecord) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.records[sessionId] = rec
}

func (sr *SessionRegistry) Get(sessionId string) (UserRecord, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	rec, ok := sr.records[sessionId]
	return rec, ok
}

func (sr *SessionRegistry) Delete(sessionId string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.records, sessionId)
}

func (sr *SessionRegistry) Len() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.records)
}
