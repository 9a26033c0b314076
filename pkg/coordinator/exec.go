package coordinator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// handleExec runs a stored file's content under /bin/sh on the coordinator
// host and returns the combined output. Gated by coordinator.exec_enabled
// (default off) because it executes user-supplied content; read access to
// the file is still required.
func (s *Server) handleExec(req *wire.Message) *wire.Message {
	if !s.cfg.ExecEnabled {
		return req.Reply(wire.StatusDenied, "EXEC is disabled on this coordinator")
	}
	rec, err := s.store.GetFile(req.Filename)
	if err != nil {
		return errReply(req, err)
	}
	if !s.store.CanRead(rec.Name, req.Username) {
		return req.Reply(wire.StatusDenied, fmt.Sprintf("no read access to %q", rec.Name))
	}

	content, ok := s.fetchContent(rec.NodeID, rec.Name)
	if !ok {
		var source string
		content, source, ok = s.recoverContent(rec)
		if !ok {
			return req.Reply(wire.StatusUnavailable,
				fmt.Sprintf("no reachable copy of %q", rec.Name))
		}
		s.metrics.ObserveFallback(source)
	}

	script := filepath.Join(os.TempDir(), "docufs-exec-"+uuid.NewString()+".sh")
	if err := os.WriteFile(script, []byte(content), 0o700); err != nil {
		return req.Reply(wire.StatusServerError, fmt.Sprintf("stage script: %v", err))
	}
	defer os.Remove(script)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExecTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "/bin/sh", script).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return req.Reply(wire.StatusServerError,
			fmt.Sprintf("execution of %q timed out after %s", rec.Name, s.cfg.ExecTimeout))
	}

	logger.Info("file executed",
		logger.KeyFile, rec.Name,
		logger.KeyUser, req.Username,
		logger.KeySize, len(out),
		"failed", err != nil)

	if err != nil {
		return req.Reply(wire.StatusData,
			fmt.Sprintf("%sexecution failed: %v", string(out), err))
	}
	return req.Reply(wire.StatusData, string(out))
}

// fetchContent pulls the live bytes over the owning node's control
// channel.
func (s *Server) fetchContent(nodeID, name string) (string, bool) {
	if !s.nodes.isActive(nodeID) {
		return "", false
	}
	resp, err := s.nodes.call(nodeID, &wire.Message{Op: wire.OpRead, Filename: name})
	if err != nil || resp.Result != wire.StatusData {
		return "", false
	}
	return resp.DataString(), true
}
