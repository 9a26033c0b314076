package node

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// registerTimeout bounds the whole registration exchange.
const registerTimeout = 10 * time.Second

// register announces this node to the coordinator: identity, advertised
// address, ports, and the startup file inventory. On success the same
// connection is returned to the caller and stays open as the control
// channel the coordinator drives.
func (n *Node) register(files []wire.AnnouncedFile) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", n.cfg.CoordinatorAddr, registerTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial coordinator: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(registerTimeout))

	// Nothing listens on the control port; the announced value keeps the
	// frame layout stable for peers that still expect one.
	controlPort := int32(n.cfg.ControlPortOrDefault())
	if n.cfg.ClientPort == 0 && n.cfg.ControlPort == 0 {
		controlPort = boundPort(n.clientLn) + 1000
	}
	announcement := &wire.NodeAnnouncement{
		ID:          n.cfg.ID,
		IP:          n.advertiseIP,
		ClientPort:  boundPort(n.clientLn),
		ControlPort: controlPort,
		Files:       files,
	}
	if err := wire.WriteMessage(conn, wire.EncodeAnnouncement(announcement)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send registration: %w", err)
	}

	resp, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read registration reply: %w", err)
	}
	if !resp.Result.OK() {
		conn.Close()
		return nil, fmt.Errorf("registration rejected: %s (%s)", resp.Result, resp.DataString())
	}
	_ = conn.SetDeadline(time.Time{})

	logger.Info("registered with coordinator",
		logger.KeyNodeID, n.cfg.ID,
		"coordinator", n.cfg.CoordinatorAddr,
		"files_announced", len(files))
	return conn, nil
}

// handleControlConn services one coordinator control channel: a long-lived
// request/reply loop. The coordinator serializes its requests, so frames
// are handled strictly in order.
func (n *Node) handleControlConn(conn net.Conn) {
	logger.Debug("control channel opened", logger.KeyClient, conn.RemoteAddr().String())
	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			if err != io.EOF {
				logger.Warn("control channel read failed", logger.KeyError, err)
			}
			return
		}

		resp := n.handleControlFrame(req)
		if err := wire.WriteMessage(conn, resp); err != nil {
			logger.Warn("control channel write failed", logger.KeyError, err)
			return
		}

		if req.Op == wire.OpShutdown {
			logger.Info("shutdown ordered by coordinator", logger.KeyNodeID, n.cfg.ID)
			n.Shutdown()
			return
		}
	}
}

func (n *Node) handleControlFrame(req *wire.Message) *wire.Message {
	if req.Op != wire.OpHeartbeat {
		logger.Debug("control request",
			logger.KeyOpcode, req.Op.String(),
			logger.KeyFile, req.Filename)
	}

	switch req.Op {
	case wire.OpHeartbeat:
		return req.Reply(wire.StatusAck, "")

	case wire.OpCreate:
		if n.files.exists(req.Filename) {
			return req.Reply(wire.StatusExists, fmt.Sprintf("file %q already exists", req.Filename))
		}
		if err := n.files.create(req.Filename); err != nil {
			return req.Reply(wire.StatusServerError, err.Error())
		}
		n.metrics.SetFilesStored(n.files.count())
		return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q created", req.Filename))

	case wire.OpDelete:
		if !n.files.exists(req.Filename) {
			return req.Reply(wire.StatusNotFound, fmt.Sprintf("file %q not stored on this node", req.Filename))
		}
		if err := n.files.remove(req.Filename); err != nil {
			return req.Reply(wire.StatusServerError, err.Error())
		}
		n.locks.releaseFile(req.Filename)
		n.undo.forget(req.Filename)
		n.metrics.SetFilesStored(n.files.count())
		n.metrics.SetLocksHeld(n.locks.held())
		return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q deleted", req.Filename))

	case wire.OpMove:
		if !n.files.exists(req.Filename) {
			return req.Reply(wire.StatusNotFound, fmt.Sprintf("file %q not stored on this node", req.Filename))
		}
		if err := n.files.move(req.Filename, req.Folder); err != nil {
			return req.Reply(wire.StatusServerError, err.Error())
		}
		return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q moved to /%s", req.Filename, req.Folder))

	case wire.OpRead:
		content, err := n.files.read(req.Filename)
		if err != nil {
			return req.Reply(wire.StatusNotFound, fmt.Sprintf("file %q not stored on this node", req.Filename))
		}
		return req.Reply(wire.StatusData, content)

	case wire.OpInfo:
		size, words, chars, err := n.files.stats(req.Filename)
		if err != nil {
			return req.Reply(wire.StatusNotFound, fmt.Sprintf("file %q not stored on this node", req.Filename))
		}
		resp := req.Reply(wire.StatusData, fmt.Sprintf("%d\t%d\t%d", size, words, chars))
		resp.Sentence = int32(words)
		resp.WordIndex = int32(chars)
		return resp

	case wire.OpCheckpoint:
		size, err := n.files.checkpoint(req.Filename, req.Checkpoint)
		if err != nil {
			return req.Reply(wire.StatusNotFound, err.Error())
		}
		resp := req.Reply(wire.StatusSuccess, fmt.Sprintf("checkpoint %q of %q captured (%d bytes)", req.Checkpoint, req.Filename, size))
		resp.Sentence = int32(size)
		return resp

	case wire.OpViewCheckpoint:
		content, err := n.files.checkpointContent(req.Filename, req.Checkpoint)
		if err != nil {
			return req.Reply(wire.StatusChkNotFound, err.Error())
		}
		return req.Reply(wire.StatusData, content)

	case wire.OpRevert:
		if err := n.files.revert(req.Filename, req.Checkpoint); err != nil {
			return req.Reply(wire.StatusChkNotFound, err.Error())
		}
		n.undo.forget(req.Filename)
		return req.Reply(wire.StatusSuccess, fmt.Sprintf("%q reverted to checkpoint %q", req.Filename, req.Checkpoint))

	case wire.OpReplicate:
		// With content: seed our copy (failover reassignment). Without:
		// a peer-change notification, acknowledged and ignored.
		if len(req.Data) > 0 && req.Filename != "" {
			if err := n.files.install(req.Filename, req.DataString()); err != nil {
				return req.Reply(wire.StatusServerError, err.Error())
			}
			n.metrics.SetFilesStored(n.files.count())
		}
		return req.Reply(wire.StatusAck, "")

	case wire.OpShutdown:
		return req.Reply(wire.StatusAck, "shutting down")

	default:
		return req.Reply(wire.StatusBadRequest,
			fmt.Sprintf("operation %s is not served on the control channel", req.Op))
	}
}
