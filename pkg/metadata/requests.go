package metadata

import (
	"sort"
	"time"
)

// CreateRequest queues an access request. Rules: the requester must not own
// the file, must not already hold the requested access, and may have at
// most one pending request per file. Ids are monotonically increasing.
func (s *Store) CreateRequest(requester, file string, accessType int32) (*AccessRequest, error) {
	wantRead := accessType&1 != 0
	wantWrite := accessType&2 != 0
	if !wantRead && !wantWrite {
		return nil, NewError(ErrBadRequest, "access request must ask for read or write")
	}

	s.mu.RLock()
	rec, ok := s.files[file]
	if !ok {
		s.mu.RUnlock()
		return nil, NewError(ErrNotFound, "file %q not found", file)
	}
	if rec.Owner == requester {
		s.mu.RUnlock()
		return nil, NewError(ErrDenied, "user %q owns %q", requester, file)
	}
	if entry, ok := rec.ACL[requester]; ok {
		if (!wantWrite || entry.CanWrite) && (!wantRead || entry.CanRead) {
			s.mu.RUnlock()
			return nil, NewError(ErrExists, "user %q already has the requested access to %q", requester, file)
		}
	}
	s.mu.RUnlock()

	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	for _, req := range s.requests {
		if req.Requester == requester && req.File == file && req.Status == RequestPending {
			return nil, NewError(ErrRequestPending,
				"user %q already has pending request #%d for %q", requester, req.ID, file)
		}
	}
	s.nextReqID++
	req := &AccessRequest{
		ID:          s.nextReqID,
		Requester:   requester,
		File:        file,
		AccessType:  accessType,
		RequestedAt: time.Now(),
		Status:      RequestPending,
	}
	s.requests[req.ID] = req
	out := *req
	return &out, nil
}

// PendingRequestsForOwner returns pending requests against files owned by
// owner, oldest first.
func (s *Store) PendingRequestsForOwner(owner string) []AccessRequest {
	owned := make(map[string]bool)
	s.mu.RLock()
	for name, rec := range s.files {
		if rec.Owner == owner {
			owned[name] = true
		}
	}
	s.mu.RUnlock()

	s.requestsMu.Lock()
	var out []AccessRequest
	for _, req := range s.requests {
		if req.Status == RequestPending && owned[req.File] {
			out = append(out, *req)
		}
	}
	s.requestsMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RespondRequest resolves a pending request. Only the owner of the target
// file may respond; approval appends/updates the file's ACL per the
// requested mask.
func (s *Store) RespondRequest(id int32, responder string, approve bool) (*AccessRequest, error) {
	s.requestsMu.Lock()
	req, ok := s.requests[id]
	if !ok || req.Status != RequestPending {
		s.requestsMu.Unlock()
		return nil, NewError(ErrRequestMissing, "no pending request #%d", id)
	}
	// Copy out while holding the lock; ownership is checked against the
	// registry below without nesting the two locks.
	pending := *req
	s.requestsMu.Unlock()

	if !s.IsOwner(pending.File, responder) {
		return nil, NewError(ErrDenied, "only the owner of %q may respond to request #%d", pending.File, id)
	}

	if approve {
		read := pending.AccessType&1 != 0
		write := pending.AccessType&2 != 0
		if err := s.Grant(pending.File, pending.Requester, read, write); err != nil {
			return nil, err
		}
	}

	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	req, ok = s.requests[id]
	if !ok || req.Status != RequestPending {
		return nil, NewError(ErrRequestMissing, "no pending request #%d", id)
	}
	if approve {
		req.Status = RequestApproved
	} else {
		req.Status = RequestDenied
	}
	out := *req
	return &out, nil
}
