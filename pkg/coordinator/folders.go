package coordinator

import (
	"fmt"
	"strings"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// handleCreateFolder adds a folder to the coordinator-side tree. Missing
// ancestors are created along the way.
func (s *Server) handleCreateFolder(req *wire.Message) *wire.Message {
	path := strings.Trim(req.Folder, "/")
	if path == "" {
		return req.Reply(wire.StatusBadRequest, "folder path required")
	}
	if err := s.store.CreateFolder(path, req.Username); err != nil {
		return errReply(req, err)
	}
	logger.Info("folder created", logger.KeyFolder, path, logger.KeyUser, req.Username)
	return req.Reply(wire.StatusSuccess, fmt.Sprintf("folder /%s created", path))
}

// handleViewFolder lists a folder's files with the caller's access marker.
func (s *Server) handleViewFolder(req *wire.Message) *wire.Message {
	path := strings.Trim(req.Folder, "/")
	if path != "" && !s.store.FolderExists(path) {
		return req.Reply(wire.StatusFolderMissing, fmt.Sprintf("folder %q does not exist", path))
	}

	var b strings.Builder
	for _, sub := range s.store.ListFolders() {
		if parentOf(sub.Path) == path {
			fmt.Fprintf(&b, "d %s/\n", sub.Path)
		}
	}
	for _, rec := range s.store.FilesInFolder(path) {
		fmt.Fprintf(&b, "%s %s\n", s.store.AccessMarker(rec.Name, req.Username), rec.Name)
	}
	if b.Len() == 0 {
		return req.Reply(wire.StatusSuccess, fmt.Sprintf("folder /%s is empty", path))
	}
	return req.Reply(wire.StatusData, strings.TrimRight(b.String(), "\n"))
}

func parentOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}
