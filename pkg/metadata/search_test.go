package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	for _, name := range []string{"report.txt", "Report2024.txt", "notes.txt", "secret.txt"} {
		_, err := s.CreateFile(name, "alice", "ss1")
		require.NoError(t, err)
	}
	_, err := s.CreateFile("report-bob.txt", "bob", "ss1")
	require.NoError(t, err)
	return s
}

func TestSearchMatchTiers(t *testing.T) {
	s := newSearchStore(t)

	results := s.Search("alice", "report.txt")
	require.NotEmpty(t, results)
	// Exact hit first, then substring, then case-insensitive.
	assert.Equal(t, "report.txt", results[0])

	results = s.Search("alice", "report")
	assert.Equal(t, []string{"report.txt", "Report2024.txt"}, results)

	results = s.Search("alice", "REPORT")
	assert.Equal(t, []string{"Report2024.txt", "report.txt"}, results)
}

func TestSearchFiltersByReadPermission(t *testing.T) {
	s := newSearchStore(t)

	assert.Empty(t, s.Search("bob", "notes"))

	require.NoError(t, s.Grant("notes.txt", "bob", true, false))
	assert.Equal(t, []string{"notes.txt"}, s.Search("bob", "notes"))
}

func TestSearchResultsAreCachedPerUser(t *testing.T) {
	s := newSearchStore(t)

	first := s.Search("alice", "report")
	assert.Equal(t, 1, s.SearchCacheLen())

	// Cached copy is isolated from caller mutation.
	first[0] = "mutated"
	again := s.Search("alice", "report")
	assert.Equal(t, "report.txt", again[0])

	s.Search("bob", "report")
	assert.Equal(t, 2, s.SearchCacheLen(), "cache keys include the username")
}

func TestSearchCacheInvalidatedOnCreateAndDelete(t *testing.T) {
	s := newSearchStore(t)

	s.Search("alice", "report")
	require.Equal(t, 1, s.SearchCacheLen())

	_, err := s.CreateFile("report-new.txt", "alice", "ss1")
	require.NoError(t, err)
	assert.Zero(t, s.SearchCacheLen())

	results := s.Search("alice", "report")
	assert.Contains(t, results, "report-new.txt")

	require.NoError(t, s.DeleteFile("report-new.txt"))
	assert.Zero(t, s.SearchCacheLen())
	assert.NotContains(t, s.Search("alice", "report"), "report-new.txt")
}

func TestSearchCacheInvalidatedOnGrantAndRevoke(t *testing.T) {
	s := newSearchStore(t)

	require.NoError(t, s.Grant("notes.txt", "bob", true, false))
	assert.Equal(t, []string{"notes.txt"}, s.Search("bob", "notes"))
	require.Equal(t, 1, s.SearchCacheLen())

	// A revoked user must not keep seeing files out of the cache.
	require.NoError(t, s.Revoke("notes.txt", "bob"))
	assert.Zero(t, s.SearchCacheLen())
	assert.Empty(t, s.Search("bob", "notes"))

	// And a fresh grant must not be masked by the cached empty result.
	require.NoError(t, s.Grant("notes.txt", "bob", true, false))
	assert.Equal(t, []string{"notes.txt"}, s.Search("bob", "notes"))
}

func TestSearchCacheEvictsLRU(t *testing.T) {
	s := newSearchStore(t)

	for i := 0; i < searchCacheCapacity+10; i++ {
		s.Search("alice", fmt.Sprintf("query-%d", i))
	}
	assert.Equal(t, searchCacheCapacity, s.SearchCacheLen())
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newSearchStore(t)
	assert.Nil(t, s.Search("alice", ""))
	assert.Zero(t, s.SearchCacheLen())
}
