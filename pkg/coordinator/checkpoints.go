package coordinator

import (
	"fmt"
	"strings"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// handleCheckpoint captures a named snapshot of the file on its owning
// node and indexes it in the registry. Tags are unique per file.
func (s *Server) handleCheckpoint(req *wire.Message) *wire.Message {
	tag := req.Checkpoint
	if tag == "" || strings.ContainsAny(tag, "/\n") {
		return req.Reply(wire.StatusBadRequest, "invalid checkpoint tag")
	}
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanWrite(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no write access to %q", rec.Name))
	}
	if _, err := s.store.GetCheckpoint(rec.Name, tag); err == nil {
		return req.Reply(wire.StatusExists,
			fmt.Sprintf("checkpoint %q of %q already exists", tag, rec.Name))
	}
	if !s.nodes.isActive(rec.NodeID) {
		return req.Reply(wire.StatusUnavailable,
			fmt.Sprintf("node %q holding %q is down", rec.NodeID, rec.Name))
	}

	resp, err := s.nodes.call(rec.NodeID, &wire.Message{
		Op:         wire.OpCheckpoint,
		Filename:   rec.Name,
		Checkpoint: tag,
	})
	if err != nil {
		return req.Reply(wire.StatusUnavailable, fmt.Sprintf("storage node %q unreachable", rec.NodeID))
	}
	if !resp.Result.OK() {
		return req.Reply(resp.Result, resp.DataString())
	}

	if err := s.store.AddCheckpoint(rec.Name, tag, req.Username, int64(resp.Sentence)); err != nil {
		return errReply(req, err)
	}
	logger.Info("checkpoint captured",
		logger.KeyFile, rec.Name,
		logger.KeyTag, tag,
		logger.KeyUser, req.Username)
	return req.Reply(wire.StatusSuccess,
		fmt.Sprintf("checkpoint %q of %q captured", tag, rec.Name))
}

// handleViewCheckpoint fetches a checkpoint's content from the owning
// node.
func (s *Server) handleViewCheckpoint(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanRead(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no read access to %q", rec.Name))
	}
	if _, err := s.store.GetCheckpoint(rec.Name, req.Checkpoint); err != nil {
		return errReply(req, err)
	}
	if !s.nodes.isActive(rec.NodeID) {
		return req.Reply(wire.StatusUnavailable,
			fmt.Sprintf("node %q holding %q is down", rec.NodeID, rec.Name))
	}

	resp, err := s.nodes.call(rec.NodeID, &wire.Message{
		Op:         wire.OpViewCheckpoint,
		Filename:   rec.Name,
		Checkpoint: req.Checkpoint,
	})
	if err != nil {
		return req.Reply(wire.StatusUnavailable, fmt.Sprintf("storage node %q unreachable", rec.NodeID))
	}
	return req.Reply(resp.Result, resp.DataString())
}

// handleRevert rolls the live file back to a checkpoint on the owning
// node.
func (s *Server) handleRevert(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanWrite(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no write access to %q", rec.Name))
	}
	if _, err := s.store.GetCheckpoint(rec.Name, req.Checkpoint); err != nil {
		return errReply(req, err)
	}
	if !s.nodes.isActive(rec.NodeID) {
		return req.Reply(wire.StatusUnavailable,
			fmt.Sprintf("node %q holding %q is down", rec.NodeID, rec.Name))
	}

	resp, err := s.nodes.call(rec.NodeID, &wire.Message{
		Op:         wire.OpRevert,
		Filename:   rec.Name,
		Checkpoint: req.Checkpoint,
	})
	if err != nil {
		return req.Reply(wire.StatusUnavailable, fmt.Sprintf("storage node %q unreachable", rec.NodeID))
	}
	if !resp.Result.OK() {
		return req.Reply(resp.Result, resp.DataString())
	}

	s.store.TouchModified(rec.Name)
	logger.Info("file reverted",
		logger.KeyFile, rec.Name,
		logger.KeyTag, req.Checkpoint,
		logger.KeyUser, req.Username)
	return req.Reply(wire.StatusSuccess,
		fmt.Sprintf("%q reverted to checkpoint %q", rec.Name, req.Checkpoint))
}

// handleListCheckpoints renders a file's checkpoint index, oldest first.
func (s *Server) handleListCheckpoints(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanRead(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no read access to %q", rec.Name))
	}
	list, err := s.store.ListCheckpoints(rec.Name)
	if err != nil {
		return errReply(req, err)
	}
	if len(list) == 0 {
		return req.Reply(wire.StatusChkNotFound, fmt.Sprintf("no checkpoints for %q", rec.Name))
	}

	var b strings.Builder
	for _, c := range list {
		fmt.Fprintf(&b, "%-20s by %s at %s (%d bytes)\n",
			c.Tag, c.Creator, c.CreatedAt.Format("2006-01-02 15:04:05"), c.Size)
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}
