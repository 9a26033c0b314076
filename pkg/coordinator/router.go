package coordinator

import (
	"time"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/metadata"
)

// route dispatches one client frame and instruments the exchange.
func (s *Server) route(req *wire.Message) *wire.Message {
	start := time.Now()
	resp := s.dispatch(req)
	s.metrics.ObserveRequest(req.Op.String(), resp.Result.String(), time.Since(start))

	logger.Debug("request served",
		logger.KeyOpcode, req.Op.String(),
		logger.KeyUser, req.Username,
		logger.KeyFile, req.Filename,
		logger.KeyResult, resp.Result.String())
	return resp
}

func (s *Server) dispatch(req *wire.Message) *wire.Message {
	switch req.Op {
	case wire.OpCreate:
		return s.handleCreate(req)
	case wire.OpRead:
		return s.handleRead(req)
	case wire.OpWrite:
		return s.handleWrite(req)
	case wire.OpDelete:
		return s.handleDelete(req)
	case wire.OpView:
		return s.handleView(req)
	case wire.OpInfo:
		return s.handleInfo(req)
	case wire.OpStream:
		return s.handleStream(req)
	case wire.OpListUsers:
		return s.handleListUsers(req)
	case wire.OpAddAccess:
		return s.handleAddAccess(req)
	case wire.OpRemAccess:
		return s.handleRemAccess(req)
	case wire.OpExec:
		return s.handleExec(req)
	case wire.OpUndo:
		return s.handleUndo(req)
	case wire.OpSearch:
		return s.handleSearch(req)
	case wire.OpCreateFolder:
		return s.handleCreateFolder(req)
	case wire.OpMove:
		return s.handleMove(req)
	case wire.OpViewFolder:
		return s.handleViewFolder(req)
	case wire.OpCheckpoint:
		return s.handleCheckpoint(req)
	case wire.OpViewCheckpoint:
		return s.handleViewCheckpoint(req)
	case wire.OpRevert:
		return s.handleRevert(req)
	case wire.OpListCheckpoints:
		return s.handleListCheckpoints(req)
	case wire.OpRequestAccess:
		return s.handleRequestAccess(req)
	case wire.OpViewRequests:
		return s.handleViewRequests(req)
	case wire.OpRespondRequest:
		return s.handleRespondRequest(req)
	case wire.OpListNodes:
		return s.handleListNodes(req)
	default:
		return req.Reply(wire.StatusBadRequest, "unknown operation")
	}
}

// errReply maps a metadata error onto its wire result code.
func errReply(req *wire.Message, err error) *wire.Message {
	return req.Reply(resultFor(err), err.Error())
}

func resultFor(err error) wire.Result {
	switch metadata.CodeOf(err) {
	case metadata.ErrNotFound:
		return wire.StatusNotFound
	case metadata.ErrDenied:
		return wire.StatusDenied
	case metadata.ErrExists, metadata.ErrCheckpointExists, metadata.ErrRequestPending:
		return wire.StatusExists
	case metadata.ErrSessionActive:
		return wire.StatusLocked
	case metadata.ErrFolderMissing:
		return wire.StatusFolderMissing
	case metadata.ErrFolderExists:
		return wire.StatusFolderExists
	case metadata.ErrCheckpointMissing:
		return wire.StatusChkNotFound
	case metadata.ErrNoRequests:
		return wire.StatusNoRequests
	case metadata.ErrRequestMissing:
		return wire.StatusReqNotFound
	default:
		return wire.StatusBadRequest
	}
}
