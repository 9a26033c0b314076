package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithFile(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)
	return s
}

func TestGrantWriteImpliesRead(t *testing.T) {
	s := newStoreWithFile(t)
	require.NoError(t, s.Grant("doc.txt", "bob", false, true))

	assert.True(t, s.CanRead("doc.txt", "bob"))
	assert.True(t, s.CanWrite("doc.txt", "bob"))
}

func TestGrantToOwnerRejected(t *testing.T) {
	s := newStoreWithFile(t)
	err := s.Grant("doc.txt", "alice", true, false)
	require.Error(t, err)
	assert.Equal(t, ErrBadRequest, CodeOf(err))

	entries, err := s.ACLEntries("doc.txt")
	require.NoError(t, err)
	assert.Empty(t, entries, "owner must never appear in the ACL")
}

func TestGrantPromotesExistingEntry(t *testing.T) {
	s := newStoreWithFile(t)
	require.NoError(t, s.Grant("doc.txt", "bob", true, false))
	assert.False(t, s.CanWrite("doc.txt", "bob"))

	require.NoError(t, s.Grant("doc.txt", "bob", false, true))
	assert.True(t, s.CanWrite("doc.txt", "bob"))
}

func TestRevoke(t *testing.T) {
	s := newStoreWithFile(t)
	require.NoError(t, s.Grant("doc.txt", "bob", true, true))
	require.NoError(t, s.Revoke("doc.txt", "bob"))

	assert.False(t, s.CanRead("doc.txt", "bob"))

	err := s.Revoke("doc.txt", "bob")
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestRevokeOwnerRejected(t *testing.T) {
	s := newStoreWithFile(t)
	err := s.Revoke("doc.txt", "alice")
	require.Error(t, err)
	assert.Equal(t, ErrDenied, CodeOf(err))
	assert.True(t, s.CanWrite("doc.txt", "alice"))
}

func TestOwnerAlwaysHasAccess(t *testing.T) {
	s := newStoreWithFile(t)
	assert.True(t, s.CanRead("doc.txt", "alice"))
	assert.True(t, s.CanWrite("doc.txt", "alice"))
	assert.True(t, s.IsOwner("doc.txt", "alice"))
	assert.False(t, s.IsOwner("doc.txt", "bob"))
}

func TestAccessMarker(t *testing.T) {
	s := newStoreWithFile(t)
	require.NoError(t, s.Grant("doc.txt", "bob", true, false))
	require.NoError(t, s.Grant("doc.txt", "carol", false, true))

	assert.Equal(t, "O", s.AccessMarker("doc.txt", "alice"))
	assert.Equal(t, "R", s.AccessMarker("doc.txt", "bob"))
	assert.Equal(t, "W", s.AccessMarker("doc.txt", "carol"))
	assert.Equal(t, "-", s.AccessMarker("doc.txt", "dave"))
	assert.Equal(t, "-", s.AccessMarker("nope.txt", "alice"))
}
