package metadata

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the coordinator's metadata store. The zero value is not usable;
// use NewStore.
type Store struct {
	mu    sync.RWMutex
	files map[string]*FileRecord

	usersMu sync.Mutex
	users   map[string]time.Time // username -> first login

	sessionsMu sync.Mutex
	sessions   map[string]*Session

	foldersMu sync.Mutex
	folders   map[string]*FolderRecord

	requestsMu sync.Mutex
	requests   map[int32]*AccessRequest
	nextReqID  int32

	search *searchCache
}

// NewStore creates an empty metadata store.
func NewStore() *Store {
	return &Store{
		files:    make(map[string]*FileRecord),
		users:    make(map[string]time.Time),
		sessions: make(map[string]*Session),
		folders:  make(map[string]*FolderRecord),
		requests: make(map[int32]*AccessRequest),
		search:   newSearchCache(searchCacheCapacity),
	}
}

// ============================================================================
// File registry
// ============================================================================

// CreateFile adds a new file record with an empty ACL. The search cache is
// invalidated as a whole.
func (s *Store) CreateFile(name, owner, nodeID string) (*FileRecord, error) {
	if name == "" || len(name) > MaxNameLen || strings.ContainsAny(name, "/\n:") {
		return nil, NewError(ErrBadRequest, "invalid file name %q", name)
	}

	s.mu.Lock()
	if _, ok := s.files[name]; ok {
		s.mu.Unlock()
		return nil, NewError(ErrExists, "file %q already exists", name)
	}
	now := time.Now()
	rec := &FileRecord{
		Name:        name,
		Owner:       owner,
		NodeID:      nodeID,
		CreatedAt:   now,
		ModifiedAt:  now,
		AccessedAt:  now,
		ACL:         make(map[string]*ACLEntry),
		Checkpoints: make(map[string]*CheckpointRecord),
	}
	s.files[name] = rec
	out := rec.clone()
	s.mu.Unlock()

	s.search.invalidate()
	return out, nil
}

// AdoptFile installs a record for a file announced by a registering node,
// unless the name is already registered. Reports whether a record was
// added.
func (s *Store) AdoptFile(name, owner, nodeID, folder string) bool {
	if name == "" || len(name) > MaxNameLen {
		return false
	}
	s.mu.Lock()
	if _, ok := s.files[name]; ok {
		s.mu.Unlock()
		return false
	}
	now := time.Now()
	s.files[name] = &FileRecord{
		Name:        name,
		Owner:       owner,
		NodeID:      nodeID,
		Folder:      folder,
		CreatedAt:   now,
		ModifiedAt:  now,
		AccessedAt:  now,
		ACL:         make(map[string]*ACLEntry),
		Checkpoints: make(map[string]*CheckpointRecord),
	}
	s.mu.Unlock()

	s.search.invalidate()
	return true
}

// DeleteFile removes a file record. The search cache is invalidated and any
// pending access requests for the file are dropped.
func (s *Store) DeleteFile(name string) error {
	s.mu.Lock()
	if _, ok := s.files[name]; !ok {
		s.mu.Unlock()
		return NewError(ErrNotFound, "file %q not found", name)
	}
	delete(s.files, name)
	s.mu.Unlock()

	s.requestsMu.Lock()
	for id, req := range s.requests {
		if req.File == name && req.Status == RequestPending {
			delete(s.requests, id)
		}
	}
	s.requestsMu.Unlock()

	s.search.invalidate()
	return nil
}

// GetFile returns a deep copy of the record for name.
func (s *Store) GetFile(name string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[name]
	if !ok {
		return nil, NewError(ErrNotFound, "file %q not found", name)
	}
	return rec.clone(), nil
}

// ListFiles returns copies of all records sorted by name.
func (s *Store) ListFiles() []*FileRecord {
	s.mu.RLock()
	out := make([]*FileRecord, 0, len(s.files))
	for _, rec := range s.files {
		out = append(out, rec.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FilesOnNode returns the names of all files assigned to nodeID.
func (s *Store) FilesOnNode(nodeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, rec := range s.files {
		if rec.NodeID == nodeID {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ReassignNode moves a file record to another node (failover or recovery).
func (s *Store) ReassignNode(name, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[name]
	if !ok {
		return NewError(ErrNotFound, "file %q not found", name)
	}
	rec.NodeID = nodeID
	return nil
}

// SetFolder updates the folder attribute of a file.
func (s *Store) SetFolder(name, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[name]
	if !ok {
		return NewError(ErrNotFound, "file %q not found", name)
	}
	rec.Folder = folder
	rec.ModifiedAt = time.Now()
	return nil
}

// UpdateStats refreshes the cached size/word/char counters.
func (s *Store) UpdateStats(name string, size int64, words, chars int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.files[name]; ok {
		rec.Size = size
		rec.WordCount = words
		rec.CharCount = chars
	}
}

// TouchAccessed stamps the last-access time.
func (s *Store) TouchAccessed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.files[name]; ok {
		rec.AccessedAt = time.Now()
	}
}

// TouchModified stamps the last-modified time.
func (s *Store) TouchModified(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.files[name]; ok {
		rec.ModifiedAt = time.Now()
	}
}

// FileCount returns the number of registered files.
func (s *Store) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
