package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFile(t *testing.T) {
	s := NewStore()

	rec, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)
	assert.Equal(t, "doc.txt", rec.Name)
	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, "ss1", rec.NodeID)
	assert.Empty(t, rec.Folder)
	assert.Equal(t, 1, s.FileCount())
}

func TestCreateFileRejectsDuplicates(t *testing.T) {
	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)

	_, err = s.CreateFile("doc.txt", "bob", "ss2")
	require.Error(t, err)
	assert.Equal(t, ErrExists, CodeOf(err))
}

func TestCreateFileRejectsBadNames(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"", "a/b", "a:b", "a\nb"} {
		_, err := s.CreateFile(name, "alice", "ss1")
		assert.Error(t, err, "name %q", name)
		assert.Equal(t, ErrBadRequest, CodeOf(err))
	}
}

func TestDeleteFile(t *testing.T) {
	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile("doc.txt"))
	assert.Zero(t, s.FileCount())

	err = s.DeleteFile("doc.txt")
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestDeleteFileDropsPendingRequests(t *testing.T) {
	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)
	_, err = s.CreateRequest("bob", "doc.txt", 1)
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile("doc.txt"))
	assert.Empty(t, s.PendingRequestsForOwner("alice"))
}

func TestAdoptFile(t *testing.T) {
	s := NewStore()
	assert.True(t, s.AdoptFile("old.txt", "ss1", "ss1", "projects"))
	// Already registered: metadata wins, announcement is ignored.
	assert.False(t, s.AdoptFile("old.txt", "ss2", "ss2", ""))

	rec, err := s.GetFile("old.txt")
	require.NoError(t, err)
	assert.Equal(t, "ss1", rec.NodeID)
	assert.Equal(t, "projects", rec.Folder)
}

func TestGetFileReturnsCopy(t *testing.T) {
	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)
	require.NoError(t, s.Grant("doc.txt", "bob", true, false))

	rec, err := s.GetFile("doc.txt")
	require.NoError(t, err)
	rec.ACL["bob"].CanWrite = true

	assert.False(t, s.CanWrite("doc.txt", "bob"))
}

func TestFilesOnNodeAndReassign(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := s.CreateFile(name, "alice", "ss1")
		require.NoError(t, err)
	}
	_, err := s.CreateFile("c.txt", "alice", "ss2")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, s.FilesOnNode("ss1"))

	require.NoError(t, s.ReassignNode("a.txt", "ss2"))
	assert.Equal(t, []string{"b.txt"}, s.FilesOnNode("ss1"))
	assert.Equal(t, []string{"a.txt", "c.txt"}, s.FilesOnNode("ss2"))
}

func TestUpdateStats(t *testing.T) {
	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)

	s.UpdateStats("doc.txt", 42, 7, 41)
	rec, err := s.GetFile("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.Size)
	assert.Equal(t, 7, rec.WordCount)
	assert.Equal(t, 41, rec.CharCount)
}

func TestListFilesSorted(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"zeta.txt", "alpha.txt", "mid.txt"} {
		_, err := s.CreateFile(name, "alice", "ss1")
		require.NoError(t, err)
	}
	list := s.ListFiles()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha.txt", list[0].Name)
	assert.Equal(t, "zeta.txt", list[2].Name)
}
