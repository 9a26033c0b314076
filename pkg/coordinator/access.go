package coordinator

import (
	"fmt"
	"strings"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// handleListUsers renders every registered user, marking the ones with a
// live session.
func (s *Server) handleListUsers(req *wire.Message) *wire.Message {
	users := s.store.ListUsers()
	if len(users) == 0 {
		return req.Reply(wire.StatusSuccess, "no users registered")
	}

	active := make(map[string]bool)
	for _, sess := range s.store.ActiveSessions() {
		active[sess.Username] = true
	}

	var b strings.Builder
	for _, u := range users {
		marker := " "
		if active[u] {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, u)
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}

// handleAddAccess grants the access mask in Flags to the user named in the
// folder field. Owner only; write implies read.
func (s *Server) handleAddAccess(req *wire.Message) *wire.Message {
	target := req.Folder
	if target == "" {
		return req.Reply(wire.StatusBadRequest, "target username required")
	}
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.IsOwner(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("only the owner may share %q", rec.Name))
	}
	if !s.store.UserExists(target) {
		return req.Reply(wire.StatusNotFound, fmt.Sprintf("user %q is not registered", target))
	}

	read := req.Flags&wire.AccessRead != 0
	write := req.Flags&wire.AccessWrite != 0
	if !read && !write {
		return req.Reply(wire.StatusBadRequest, "access mask must include read or write")
	}
	if err := s.store.Grant(rec.Name, target, read, write); err != nil {
		return errReply(req, err)
	}

	logger.Info("access granted",
		logger.KeyFile, rec.Name,
		logger.KeyUser, req.Username,
		"target", target,
		"write", write)
	return req.Reply(wire.StatusSuccess,
		fmt.Sprintf("%s now has %s access to %q", target, maskWord(read, write), rec.Name))
}

// handleRemAccess revokes the target's entry entirely.
func (s *Server) handleRemAccess(req *wire.Message) *wire.Message {
	target := req.Folder
	if target == "" {
		return req.Reply(wire.StatusBadRequest, "target username required")
	}
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.IsOwner(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("only the owner may unshare %q", rec.Name))
	}
	if err := s.store.Revoke(rec.Name, target); err != nil {
		return errReply(req, err)
	}

	logger.Info("access revoked",
		logger.KeyFile, rec.Name,
		logger.KeyUser, req.Username,
		"target", target)
	return req.Reply(wire.StatusSuccess,
		fmt.Sprintf("%s no longer has access to %q", target, rec.Name))
}

// handleRequestAccess queues an access request for the file's owner.
func (s *Server) handleRequestAccess(req *wire.Message) *wire.Message {
	ar, err := s.store.CreateRequest(req.Username, req.Filename, req.Flags)
	if err != nil {
		return errReply(req, err)
	}
	resp := req.Reply(wire.StatusSuccess,
		fmt.Sprintf("request #%d for %s access to %q is pending", ar.ID,
			maskWord(ar.AccessType&wire.AccessRead != 0, ar.AccessType&wire.AccessWrite != 0), ar.File))
	resp.RequestID = ar.ID
	return resp
}

// handleViewRequests lists the pending requests on files the caller owns.
func (s *Server) handleViewRequests(req *wire.Message) *wire.Message {
	pending := s.store.PendingRequestsForOwner(req.Username)
	if len(pending) == 0 {
		return req.Reply(wire.StatusNoRequests, "no pending access requests")
	}
	var b strings.Builder
	for _, ar := range pending {
		fmt.Fprintf(&b, "#%d %s wants %s access to %q (%s)\n",
			ar.ID, ar.Requester,
			maskWord(ar.AccessType&wire.AccessRead != 0, ar.AccessType&wire.AccessWrite != 0),
			ar.File, ar.RequestedAt.Format("2006-01-02 15:04:05"))
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}

// handleRespondRequest approves (Flags=1) or denies a request the caller
// owns. Approval grants the requested mask.
func (s *Server) handleRespondRequest(req *wire.Message) *wire.Message {
	approve := req.Flags == wire.RespondApprove
	ar, err := s.store.RespondRequest(req.RequestID, req.Username, approve)
	if err != nil {
		return errReply(req, err)
	}

	logger.Info("access request resolved",
		logger.KeyRequestID, ar.ID,
		logger.KeyFile, ar.File,
		logger.KeyUser, req.Username,
		"requester", ar.Requester,
		"approved", approve)

	verb := "denied"
	if approve {
		verb = "approved"
	}
	return req.Reply(wire.StatusSuccess,
		fmt.Sprintf("request #%d from %s %s", ar.ID, ar.Requester, verb))
}

func maskWord(read, write bool) string {
	switch {
	case write:
		return "read-write"
	case read:
		return "read"
	default:
		return "no"
	}
}
