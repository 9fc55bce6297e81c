package server

import (
	"testing"

	"github.com/acollard/roomgate/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry(t *testing.T) {
	sr := NewSessionRegistry()

	_, ok := sr.Get("session-1")
	assert.False(t, ok, "expected no record for an unknown session")

	rec := UserRecord{Username: "alice", RoomName: "test-room", Role: types.RolePending}
	sr.Set("session-1", rec)

	got, ok := sr.Get("session-1")
	assert.True(t, ok)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, sr.Len())

	// promotion overwrites the record in place
	rec.Role = types.RoleActive
	sr.Set("session-1", rec)
	got, _ = sr.Get("session-1")
	assert.Equal(t, types.RoleActive, got.Role)
	assert.Equal(t, 1, sr.Len())

	sr.Delete("session-1")
	_, ok = sr.Get("session-1")
	assert.False(t, ok, "expected the record to be deleted")
	assert.Equal(t, 0, sr.Len())

	// deleting an absent record is a no-op
	sr.Delete("session-1")
}
