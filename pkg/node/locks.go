package node

import (
	"sync"
	"time"
)

// lockKey identifies one lockable unit: a sentence of a file.
type lockKey struct {
	file     string
	sentence int32
}

// sentenceLock records the holder of an exclusive sentence lock.
type sentenceLock struct {
	holder   string
	lockedAt time.Time
}

// lockTable is the in-memory sentence lock table. Locks live for one edit
// session; the table is empty after a clean restart, which is fine because
// nothing persistent depends on it.
type lockTable struct {
	mu    sync.Mutex
	locks map[lockKey]*sentenceLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[lockKey]*sentenceLock)}
}

// acquire takes the exclusive lock on (file, sentence) for holder. On
// conflict it returns false and the current holder's name. Re-acquiring a
// lock already held by the same user also conflicts: one session per
// sentence, even for the same user.
func (t *lockTable) acquire(file string, sentence int32, holder string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := lockKey{file: file, sentence: sentence}
	if existing, ok := t.locks[key]; ok {
		return false, existing.holder
	}
	t.locks[key] = &sentenceLock{holder: holder, lockedAt: time.Now()}
	return true, ""
}

// release drops the lock if holder still owns it.
func (t *lockTable) release(file string, sentence int32, holder string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := lockKey{file: file, sentence: sentence}
	if existing, ok := t.locks[key]; ok && existing.holder == holder {
		delete(t.locks, key)
	}
}

// held returns the number of locks currently held.
func (t *lockTable) held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// releaseFile drops every lock on file, used when the file is deleted.
func (t *lockTable) releaseFile(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.locks {
		if key.file == file {
			delete(t.locks, key)
		}
	}
}
