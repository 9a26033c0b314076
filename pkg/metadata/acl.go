package metadata

import "sort"

// Grant adds or updates an ACL entry on a file. Invariants enforced here:
// the owner never appears in the ACL (granting to the owner is a no-op
// error), and write implies read. Granting to a user with an existing entry
// updates it; a write grant on an existing read entry promotes it.
func (s *Store) Grant(file, username string, read, write bool) error {
	if write {
		read = true
	}
	if !read {
		return NewError(ErrBadRequest, "grant must carry read or write access")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[file]
	if !ok {
		return NewError(ErrNotFound, "file %q not found", file)
	}
	if username == rec.Owner {
		return NewError(ErrBadRequest, "user %q owns %q and always has full access", username, file)
	}
	if entry, ok := rec.ACL[username]; ok {
		entry.CanRead = entry.CanRead || read
		entry.CanWrite = entry.CanWrite || write
	} else {
		rec.ACL[username] = &ACLEntry{Username: username, CanRead: read, CanWrite: write}
	}
	// Search results are filtered by read permission, so cached entries for
	// this user are stale now.
	s.search.invalidate()
	return nil
}

// Revoke removes a user's ACL entry. Removing the owner is rejected.
func (s *Store) Revoke(file, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[file]
	if !ok {
		return NewError(ErrNotFound, "file %q not found", file)
	}
	if username == rec.Owner {
		return NewError(ErrDenied, "owner %q cannot be removed from %q", username, file)
	}
	if _, ok := rec.ACL[username]; !ok {
		return NewError(ErrNotFound, "user %q has no access entry on %q", username, file)
	}
	delete(rec.ACL, username)
	s.search.invalidate()
	return nil
}

// CanRead reports whether username may read file. Owners always can.
func (s *Store) CanRead(file, username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	if !ok {
		return false
	}
	if rec.Owner == username {
		return true
	}
	entry, ok := rec.ACL[username]
	return ok && entry.CanRead
}

// CanWrite reports whether username may write file. Owners always can.
func (s *Store) CanWrite(file, username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	if !ok {
		return false
	}
	if rec.Owner == username {
		return true
	}
	entry, ok := rec.ACL[username]
	return ok && entry.CanWrite
}

// IsOwner reports whether username owns file.
func (s *Store) IsOwner(file, username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	return ok && rec.Owner == username
}

// AccessMarker returns the one-character access class of username on file:
// O (owner), W (write), R (read-only), or - (none).
func (s *Store) AccessMarker(file, username string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	if !ok {
		return "-"
	}
	if rec.Owner == username {
		return "O"
	}
	entry, ok := rec.ACL[username]
	switch {
	case !ok || !entry.CanRead:
		return "-"
	case entry.CanWrite:
		return "W"
	default:
		return "R"
	}
}

// ACLEntries returns a copy of the file's ACL sorted by username.
func (s *Store) ACLEntries(file string) ([]ACLEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[file]
	if !ok {
		return nil, NewError(ErrNotFound, "file %q not found", file)
	}
	out := make([]ACLEntry, 0, len(rec.ACL))
	for _, entry := range rec.ACL {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
