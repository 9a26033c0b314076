package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequest(t *testing.T) {
	s := newStoreWithFile(t)

	req, err := s.CreateRequest("bob", "doc.txt", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), req.ID)
	assert.Equal(t, RequestPending, req.Status)

	req2, err := s.CreateRequest("carol", "doc.txt", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), req2.ID, "ids are monotonic")
}

func TestCreateRequestRejections(t *testing.T) {
	s := newStoreWithFile(t)

	t.Run("owner", func(t *testing.T) {
		_, err := s.CreateRequest("alice", "doc.txt", 1)
		assert.Equal(t, ErrDenied, CodeOf(err))
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := s.CreateRequest("bob", "nope.txt", 1)
		assert.Equal(t, ErrNotFound, CodeOf(err))
	})
	t.Run("empty mask", func(t *testing.T) {
		_, err := s.CreateRequest("bob", "doc.txt", 0)
		assert.Equal(t, ErrBadRequest, CodeOf(err))
	})
	t.Run("already granted", func(t *testing.T) {
		require.NoError(t, s.Grant("doc.txt", "bob", true, false))
		_, err := s.CreateRequest("bob", "doc.txt", 1)
		assert.Equal(t, ErrExists, CodeOf(err))
		// Asking for more than currently held is allowed.
		_, err = s.CreateRequest("bob", "doc.txt", 2)
		assert.NoError(t, err)
	})
	t.Run("duplicate pending", func(t *testing.T) {
		_, err := s.CreateRequest("bob", "doc.txt", 2)
		assert.Equal(t, ErrRequestPending, CodeOf(err))
	})
}

func TestRespondRequestApprove(t *testing.T) {
	s := newStoreWithFile(t)
	req, err := s.CreateRequest("bob", "doc.txt", 2)
	require.NoError(t, err)

	resolved, err := s.RespondRequest(req.ID, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, RequestApproved, resolved.Status)
	assert.True(t, s.CanWrite("doc.txt", "bob"))
	assert.Empty(t, s.PendingRequestsForOwner("alice"))
}

func TestRespondRequestDeny(t *testing.T) {
	s := newStoreWithFile(t)
	req, err := s.CreateRequest("bob", "doc.txt", 1)
	require.NoError(t, err)

	resolved, err := s.RespondRequest(req.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, RequestDenied, resolved.Status)
	assert.False(t, s.CanRead("doc.txt", "bob"))
}

func TestRespondRequestOwnerOnly(t *testing.T) {
	s := newStoreWithFile(t)
	req, err := s.CreateRequest("bob", "doc.txt", 1)
	require.NoError(t, err)

	_, err = s.RespondRequest(req.ID, "mallory", true)
	assert.Equal(t, ErrDenied, CodeOf(err))

	// Still pending for the real owner.
	pending := s.PendingRequestsForOwner("alice")
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}

func TestRespondRequestUnknownID(t *testing.T) {
	s := newStoreWithFile(t)
	_, err := s.RespondRequest(99, "alice", true)
	assert.Equal(t, ErrRequestMissing, CodeOf(err))
}

func TestPendingRequestsForOwnerOldestFirst(t *testing.T) {
	s := newStoreWithFile(t)
	_, err := s.CreateFile("two.txt", "alice", "ss1")
	require.NoError(t, err)

	r1, err := s.CreateRequest("bob", "doc.txt", 1)
	require.NoError(t, err)
	r2, err := s.CreateRequest("bob", "two.txt", 1)
	require.NoError(t, err)

	pending := s.PendingRequestsForOwner("alice")
	require.Len(t, pending, 2)
	assert.Equal(t, r1.ID, pending[0].ID)
	assert.Equal(t, r2.ID, pending[1].ID)
}
