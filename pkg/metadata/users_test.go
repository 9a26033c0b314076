package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserIsAppendOnly(t *testing.T) {
	s := NewStore()
	s.RegisterUser("alice")
	s.RegisterUser("alice")
	s.RegisterUser("bob")

	assert.Equal(t, []string{"alice", "bob"}, s.ListUsers())
	assert.True(t, s.UserExists("alice"))
	assert.False(t, s.UserExists("mallory"))
}

func TestSingleSessionPerUser(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginSession("alice", "10.0.0.1:50001"))

	err := s.BeginSession("alice", "10.0.0.2:50002")
	require.Error(t, err)
	assert.Equal(t, ErrSessionActive, CodeOf(err))
	assert.Contains(t, err.Error(), "10.0.0.1:50001")

	s.EndSession("alice")
	assert.NoError(t, s.BeginSession("alice", "10.0.0.2:50002"))
}

func TestSessionAccounting(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginSession("alice", "a:1"))
	require.NoError(t, s.BeginSession("bob", "b:2"))
	assert.Equal(t, 2, s.ActiveSessionCount())

	sessions := s.ActiveSessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "alice", sessions[0].Username)
	assert.Equal(t, "bob", sessions[1].Username)

	s.EndSession("alice")
	assert.Equal(t, 1, s.ActiveSessionCount())

	// Ending an absent session is harmless.
	s.EndSession("nobody")
}

func TestBeginSessionRejectsEmptyUsername(t *testing.T) {
	s := NewStore()
	err := s.BeginSession("", "a:1")
	assert.Equal(t, ErrBadRequest, CodeOf(err))
}
