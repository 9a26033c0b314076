package coordinator

import (
	"fmt"
	"strings"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/metadata"
)

// lessLoaded orders node ids by how many files they carry.
func (s *Server) lessLoaded(a, b string) bool {
	return len(s.store.FilesOnNode(a)) < len(s.store.FilesOnNode(b))
}

// handleCreate places a new empty file. The data payload may name the
// target node; without one the first active node in registration order
// wins.
func (s *Server) handleCreate(req *wire.Message) *wire.Message {
	nodeID := strings.TrimSpace(req.DataString())
	if nodeID != "" {
		if !s.nodes.isActive(nodeID) {
			return req.Reply(wire.StatusUnavailable, fmt.Sprintf("storage node %q is not active", nodeID))
		}
	} else {
		var ok bool
		nodeID, ok = s.nodes.firstActive("")
		if !ok {
			return req.Reply(wire.StatusUnavailable, "no active storage node")
		}
	}
	if req.Folder != "" && !s.store.FolderExists(req.Folder) {
		return req.Reply(wire.StatusFolderMissing, fmt.Sprintf("folder %q does not exist", req.Folder))
	}

	rec, err := s.store.CreateFile(req.Filename, req.Username, nodeID)
	if err != nil {
		return errReply(req, err)
	}

	resp, err := s.nodes.call(nodeID, &wire.Message{Op: wire.OpCreate, Filename: rec.Name})
	if err != nil || !resp.Result.OK() {
		// The record must not outlive a failed placement.
		_ = s.store.DeleteFile(rec.Name)
		if err != nil {
			return req.Reply(wire.StatusUnavailable, fmt.Sprintf("storage node %q unreachable", nodeID))
		}
		return req.Reply(resp.Result, resp.DataString())
	}

	if req.Folder != "" {
		if resp, err := s.nodes.call(nodeID, &wire.Message{Op: wire.OpMove, Filename: rec.Name, Folder: req.Folder}); err == nil && resp.Result.OK() {
			_ = s.store.SetFolder(rec.Name, req.Folder)
		}
	}

	s.notifyPeers(nodeID, rec.Name)
	s.metrics.SetRegistryFiles(s.store.FileCount())

	logger.Info("file created",
		logger.KeyFile, rec.Name,
		logger.KeyUser, req.Username,
		logger.KeyNodeID, nodeID)
	return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q created on node %q", rec.Name, nodeID))
}

// handleRead resolves a READ to a node referral, or serves recovered
// content when the owner is down.
func (s *Server) handleRead(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanRead(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no read access to %q", rec.Name))
	}
	s.store.TouchAccessed(rec.Name)

	if ip, port, ok := s.nodes.endpoint(rec.NodeID); ok {
		return req.Referral(ip, port)
	}
	return s.serveFallback(req, rec)
}

// handleStream shares READ's resolution; only the node-side data exchange
// differs.
func (s *Server) handleStream(req *wire.Message) *wire.Message {
	return s.handleRead(req)
}

// handleWrite refers a writer to the owning node. There is no write path
// through the fallback trees.
func (s *Server) handleWrite(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanWrite(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no write access to %q", rec.Name))
	}

	ip, port, ok := s.nodes.endpoint(rec.NodeID)
	if !ok {
		return req.Reply(wire.StatusUnavailable,
			fmt.Sprintf("node %q holding %q is down; writes are unavailable", rec.NodeID, rec.Name))
	}
	s.store.TouchModified(rec.Name)
	return req.Referral(ip, port)
}

// handleUndo refers like WRITE; the undo itself runs on the node's data
// port.
func (s *Server) handleUndo(req *wire.Message) *wire.Message {
	return s.handleWrite(req)
}

// handleDelete removes a file everywhere. Owner only; the backup copy is
// deliberately retained.
func (s *Server) handleDelete(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.IsOwner(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("only the owner may delete %q", rec.Name))
	}

	if s.nodes.isActive(rec.NodeID) {
		if resp, err := s.nodes.call(rec.NodeID, &wire.Message{Op: wire.OpDelete, Filename: rec.Name}); err != nil {
			logger.Warn("node delete failed", logger.KeyFile, rec.Name, logger.KeyError, err)
		} else if !resp.Result.OK() && resp.Result != wire.StatusNotFound {
			return req.Reply(resp.Result, resp.DataString())
		}
	}

	if err := s.store.DeleteFile(rec.Name); err != nil {
		return errReply(req, err)
	}
	s.notifyPeers(rec.NodeID, rec.Name)
	s.metrics.SetRegistryFiles(s.store.FileCount())

	logger.Info("file deleted", logger.KeyFile, rec.Name, logger.KeyUser, req.Username)
	return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q deleted", rec.Name))
}

// handleView renders the file listing. Flags: ViewAll includes files the
// requester cannot access, ViewLong adds details (with stats refreshed
// from live nodes).
func (s *Server) handleView(req *wire.Message) *wire.Message {
	all := req.Flags&wire.ViewAll != 0
	long := req.Flags&wire.ViewLong != 0

	var b strings.Builder
	shown := 0
	for _, rec := range s.store.ListFiles() {
		marker := s.store.AccessMarker(rec.Name, req.Username)
		if !all && marker == "-" {
			continue
		}
		shown++
		if long {
			s.refreshStats(rec)
			fmt.Fprintf(&b, "%s %-20s /%s node=%s owner=%s size=%d words=%d chars=%d modified=%s\n",
				marker, rec.Name, rec.Folder, rec.NodeID, rec.Owner,
				rec.Size, rec.WordCount, rec.CharCount,
				rec.ModifiedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(&b, "%s %s\n", marker, rec.Name)
		}
	}
	if shown == 0 {
		return req.Reply(wire.StatusSuccess, "no files")
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}

// handleInfo renders one file's detail block, refreshing stats from the
// owning node when it is up.
func (s *Server) handleInfo(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanRead(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no read access to %q", rec.Name))
	}
	s.refreshStats(rec)

	acl, _ := s.store.ACLEntries(rec.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", rec.Name)
	fmt.Fprintf(&b, "owner: %s\n", rec.Owner)
	fmt.Fprintf(&b, "folder: /%s\n", rec.Folder)
	fmt.Fprintf(&b, "node: %s\n", rec.NodeID)
	fmt.Fprintf(&b, "size: %d bytes, %d words, %d chars\n", rec.Size, rec.WordCount, rec.CharCount)
	fmt.Fprintf(&b, "created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "modified: %s\n", rec.ModifiedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "accessed: %s\n", rec.AccessedAt.Format("2006-01-02 15:04:05"))
	for _, e := range acl {
		fmt.Fprintf(&b, "access: %s r=%t w=%t\n", e.Username, e.CanRead, e.CanWrite)
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}

// refreshStats pulls size/word/char counters from the owning node into the
// registry and the local copy. Best effort; stale numbers are acceptable
// when the node is down.
func (s *Server) refreshStats(rec *metadata.FileRecord) {
	if !s.nodes.isActive(rec.NodeID) {
		return
	}
	resp, err := s.nodes.call(rec.NodeID, &wire.Message{Op: wire.OpInfo, Filename: rec.Name})
	if err != nil || resp.Result != wire.StatusData {
		return
	}
	var size int64
	var words, chars int
	if _, err := fmt.Sscanf(resp.DataString(), "%d\t%d\t%d", &size, &words, &chars); err != nil {
		return
	}
	s.store.UpdateStats(rec.Name, size, words, chars)
	rec.Size, rec.WordCount, rec.CharCount = size, words, chars
}

// handleMove re-folders a file: the folder must exist, the owning node
// relocates the bytes, then the registry attribute follows.
func (s *Server) handleMove(req *wire.Message) *wire.Message {
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanWrite(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no write access to %q", rec.Name))
	}
	folder := strings.Trim(req.Folder, "/")
	if folder != "" && !s.store.FolderExists(folder) {
		return req.Reply(wire.StatusFolderMissing, fmt.Sprintf("folder %q does not exist", folder))
	}
	if !s.nodes.isActive(rec.NodeID) {
		return req.Reply(wire.StatusUnavailable,
			fmt.Sprintf("node %q holding %q is down", rec.NodeID, rec.Name))
	}

	resp, err := s.nodes.call(rec.NodeID, &wire.Message{Op: wire.OpMove, Filename: rec.Name, Folder: folder})
	if err != nil {
		return req.Reply(wire.StatusUnavailable, fmt.Sprintf("storage node %q unreachable", rec.NodeID))
	}
	if !resp.Result.OK() {
		return req.Reply(resp.Result, resp.DataString())
	}

	if err := s.store.SetFolder(rec.Name, folder); err != nil {
		return errReply(req, err)
	}
	s.notifyPeers(rec.NodeID, rec.Name)
	return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q moved to /%s", rec.Name, folder))
}

// handleSearch serves the (cached) name search. The query rides in the
// data payload.
func (s *Server) handleSearch(req *wire.Message) *wire.Message {
	query := strings.TrimSpace(req.DataString())
	if query == "" {
		query = req.Filename
	}
	if query == "" {
		return req.Reply(wire.StatusBadRequest, "empty search query")
	}

	results := s.store.Search(req.Username, query)
	if len(results) == 0 {
		return req.Reply(wire.StatusNotFound, fmt.Sprintf("no files match %q", query))
	}
	return req.Reply(wire.StatusData, strings.Join(results, "\n"))
}

// handleListNodes renders the node table.
func (s *Server) handleListNodes(req *wire.Message) *wire.Message {
	infos := s.nodes.snapshot(func(id string) int { return len(s.store.FilesOnNode(id)) })
	if len(infos) == 0 {
		return req.Reply(wire.StatusSuccess, "no nodes registered")
	}
	var b strings.Builder
	for _, n := range infos {
		fmt.Fprintf(&b, "%-12s %-7s %s:%d files=%d last_beat=%s\n",
			n.ID, n.State, n.Addr, n.ClientPort, n.Files,
			n.LastBeat.Format("15:04:05"))
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}
