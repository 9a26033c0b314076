package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.dat")

	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)
	require.NoError(t, s.Grant("doc.txt", "bob", true, false))
	require.NoError(t, s.Grant("doc.txt", "carol", false, true))
	require.NoError(t, s.AddCheckpoint("doc.txt", "v1", "alice", 64))
	require.NoError(t, s.CreateFolder("projects/go", "alice"))
	require.NoError(t, s.SetFolder("doc.txt", "projects/go"))
	s.UpdateStats("doc.txt", 64, 12, 63)

	require.NoError(t, s.SaveRegistry(path))

	loaded := NewStore()
	require.NoError(t, loaded.LoadRegistry(path))

	rec, err := loaded.GetFile("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, "ss1", rec.NodeID)
	assert.Equal(t, "projects/go", rec.Folder)
	assert.Equal(t, int64(64), rec.Size)
	assert.Equal(t, 12, rec.WordCount)

	assert.True(t, loaded.CanRead("doc.txt", "bob"))
	assert.False(t, loaded.CanWrite("doc.txt", "bob"))
	assert.True(t, loaded.CanWrite("doc.txt", "carol"))

	chk, err := loaded.GetCheckpoint("doc.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(64), chk.Size)

	assert.True(t, loaded.FolderExists("projects"))
	assert.True(t, loaded.FolderExists("projects/go"))

	// Owners and ACL users come back as registered users.
	assert.True(t, loaded.UserExists("alice"))
	assert.True(t, loaded.UserExists("bob"))
}

func TestLoadRegistryMissingFileStartsFresh(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.LoadRegistry(filepath.Join(t.TempDir(), "nope.dat")))
	assert.Zero(t, s.FileCount())
}

func TestLoadRegistryV1Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.dat")
	v1 := strings.Join([]string{
		"REGISTRY_V1",
		"1",
		"FILE:legacy.txt:alice:ss1:100:200:300:10:2:9",
		"ACL:bob:1:0",
		"END",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(v1), 0o644))

	s := NewStore()
	require.NoError(t, s.LoadRegistry(path))

	rec, err := s.GetFile("legacy.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Owner)
	assert.Empty(t, rec.Folder)
	assert.Equal(t, int64(10), rec.Size)
	assert.True(t, s.CanRead("legacy.txt", "bob"))
}

func TestLoadRegistryRejectsUnknownHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.dat")
	require.NoError(t, os.WriteFile(path, []byte("REGISTRY_V9\n0\n"), 0o644))

	err := NewStore().LoadRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown header")
}

func TestSaveRegistryIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.dat")

	s := NewStore()
	_, err := s.CreateFile("doc.txt", "alice", "ss1")
	require.NoError(t, err)
	require.NoError(t, s.SaveRegistry(path))

	// No temp leftovers.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "registry.dat", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "REGISTRY_V2\n1\n"))
}
