package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockAcquireRelease(t *testing.T) {
	lt := newLockTable()

	ok, holder := lt.acquire("doc.txt", 0, "alice")
	assert.True(t, ok)
	assert.Empty(t, holder)
	assert.Equal(t, 1, lt.held())

	lt.release("doc.txt", 0, "alice")
	assert.Zero(t, lt.held())
}

func TestLockConflictReportsHolder(t *testing.T) {
	lt := newLockTable()
	lt.acquire("doc.txt", 2, "alice")

	ok, holder := lt.acquire("doc.txt", 2, "bob")
	assert.False(t, ok)
	assert.Equal(t, "alice", holder)
}

func TestLockSameUserConflicts(t *testing.T) {
	lt := newLockTable()
	lt.acquire("doc.txt", 0, "alice")

	ok, holder := lt.acquire("doc.txt", 0, "alice")
	assert.False(t, ok, "one session per sentence, even for the same user")
	assert.Equal(t, "alice", holder)
}

func TestLocksAreSentenceScoped(t *testing.T) {
	lt := newLockTable()
	lt.acquire("doc.txt", 0, "alice")

	ok, _ := lt.acquire("doc.txt", 1, "bob")
	assert.True(t, ok, "different sentences of one file lock independently")

	ok, _ = lt.acquire("other.txt", 0, "carol")
	assert.True(t, ok)
	assert.Equal(t, 3, lt.held())
}

func TestReleaseRequiresHolder(t *testing.T) {
	lt := newLockTable()
	lt.acquire("doc.txt", 0, "alice")

	lt.release("doc.txt", 0, "bob")
	assert.Equal(t, 1, lt.held(), "non-holder release is ignored")

	lt.release("doc.txt", 0, "alice")
	assert.Zero(t, lt.held())
}

func TestReleaseFile(t *testing.T) {
	lt := newLockTable()
	lt.acquire("doc.txt", 0, "alice")
	lt.acquire("doc.txt", 3, "bob")
	lt.acquire("other.txt", 0, "carol")

	lt.releaseFile("doc.txt")
	assert.Equal(t, 1, lt.held())
}
