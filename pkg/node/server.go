// Package node implements a DocuFS storage node.
//
// A node owns the bytes of the files assigned to it. It registers with the
// coordinator at startup (announcing any files already on disk), keeps the
// registration connection open as the control channel the coordinator
// drives (heartbeats, file lifecycle, content fetch, replication), and
// serves clients directly over a data port (read, stream, interactive
// sentence edit, undo).
package node

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/config"
	"github.com/marmos91/docufs/pkg/metrics"
	"github.com/marmos91/docufs/pkg/node/sentence"
)

// Node is one storage node daemon.
type Node struct {
	cfg     config.NodeConfig
	files   *fileStore
	locks   *lockTable
	undo    *undoTable
	metrics *metrics.NodeMetrics

	advertiseIP string

	clientLn net.Listener

	// commitMu serializes edit-session commits so concurrent sessions on
	// one file merge instead of overwriting each other.
	commitMu sync.Mutex

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New creates a node from its configuration. Serve does the actual work.
func New(cfg config.NodeConfig, m *metrics.NodeMetrics) *Node {
	l := layout{dataDir: cfg.DataDir, id: cfg.ID}
	return &Node{
		cfg:        cfg,
		files:      newFileStore(l),
		locks:      newLockTable(),
		undo:       newUndoTable(),
		metrics:    m,
		conns:      make(map[net.Conn]struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Serve prepares the disk trees, registers with the coordinator, and runs
// the control and client accept loops until ctx is cancelled or the
// coordinator orders a shutdown.
func (n *Node) Serve(ctx context.Context) error {
	if err := n.files.ensureDirs(); err != nil {
		return err
	}
	inventory, err := n.files.inventory()
	if err != nil {
		return err
	}
	n.metrics.SetFilesStored(n.files.count())

	if n.advertiseIP = n.cfg.AdvertiseIP; n.advertiseIP == "" {
		n.advertiseIP, err = discoverLocalIP(n.cfg.CoordinatorAddr)
		if err != nil {
			return fmt.Errorf("discover advertise address: %w", err)
		}
	}

	// Port 0 binds an ephemeral port; the actual one is announced.
	clientLn, err := net.Listen("tcp", fmt.Sprintf(":%d", n.cfg.ClientPort))
	if err != nil {
		return fmt.Errorf("listen client port: %w", err)
	}
	n.connMu.Lock()
	n.clientLn = clientLn
	n.connMu.Unlock()

	control, err := n.register(inventory)
	if err != nil {
		n.clientLn.Close()
		return err
	}
	n.trackConn(control, true)

	logger.Info("storage node ready",
		logger.KeyNodeID, n.cfg.ID,
		logger.KeyNodeAddr, n.advertiseIP,
		"client_port", boundPort(n.clientLn),
		"files", len(inventory))

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		defer n.trackConn(control, false)
		defer control.Close()
		n.handleControlConn(control)
	}()
	go n.acceptLoop(n.clientLn, n.handleClientConn)

	go n.watchStdin()

	select {
	case <-ctx.Done():
	case <-n.shutdownCh:
	}
	n.Shutdown()
	n.wg.Wait()
	return nil
}

// Shutdown closes the listeners and every open connection, including the
// coordinator control channel, and unblocks Serve. Safe to call more than
// once.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		close(n.shutdownCh)
		n.connMu.Lock()
		if n.clientLn != nil {
			_ = n.clientLn.Close()
		}
		for conn := range n.conns {
			_ = conn.Close()
		}
		n.connMu.Unlock()
	})
}

func (n *Node) trackConn(conn net.Conn, add bool) {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	if add {
		n.conns[conn] = struct{}{}
	} else {
		delete(n.conns, conn)
	}
}

func (n *Node) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	defer n.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("accept failed", logger.KeyError, err)
			continue
		}
		n.wg.Add(1)
		n.trackConn(conn, true)
		go func() {
			defer n.wg.Done()
			defer n.trackConn(conn, false)
			defer conn.Close()
			handle(conn)
		}()
	}
}

// handleClientConn services one client data connection. The first frame
// selects the operation; READ, STREAM and UNDO are single-exchange, WRITE
// opens an interactive edit session that owns the connection until commit
// or disconnect.
func (n *Node) handleClientConn(conn net.Conn) {
	req, err := wire.ReadMessage(conn)
	if err != nil {
		if err != io.EOF {
			logger.Warn("client frame read failed",
				logger.KeyClient, conn.RemoteAddr().String(),
				logger.KeyError, err)
		}
		return
	}

	logger.Debug("client data request",
		logger.KeyOpcode, req.Op.String(),
		logger.KeyUser, req.Username,
		logger.KeyFile, req.Filename,
		logger.KeyClient, conn.RemoteAddr().String())

	switch req.Op {
	case wire.OpRead:
		err = n.handleRead(conn, req)
	case wire.OpStream:
		err = n.handleStream(conn, req)
	case wire.OpWrite:
		err = n.runEditSession(conn, req)
	case wire.OpUndo:
		err = n.handleUndo(conn, req)
	default:
		err = wire.WriteMessage(conn, req.Reply(wire.StatusBadRequest,
			fmt.Sprintf("operation %s is not served on the data port", req.Op)))
	}
	if err != nil && err != io.EOF {
		logger.Warn("client session ended with error",
			logger.KeyOpcode, req.Op.String(),
			logger.KeyUser, req.Username,
			logger.KeyError, err)
	}
}

func (n *Node) handleRead(conn net.Conn, req *wire.Message) error {
	content, err := n.files.read(req.Filename)
	if err != nil {
		return wire.WriteMessage(conn, req.Reply(wire.StatusNotFound,
			fmt.Sprintf("file %q not stored on this node", req.Filename)))
	}
	resp := req.Reply(wire.StatusData, content)
	sents := sentence.Parse(content)
	resp.Sentence = int32(len(sents))
	return wire.WriteMessage(conn, resp)
}

// handleStream sends the file one word per DATA frame with pacing, a
// newline sentinel frame after every sentence, and SUCCESS at the end.
func (n *Node) handleStream(conn net.Conn, req *wire.Message) error {
	content, err := n.files.read(req.Filename)
	if err != nil {
		return wire.WriteMessage(conn, req.Reply(wire.StatusNotFound,
			fmt.Sprintf("file %q not stored on this node", req.Filename)))
	}

	delay := n.cfg.StreamDelay
	if delay <= 0 {
		delay = config.DefaultStreamDelay
	}

	for _, s := range sentence.Parse(content) {
		for _, w := range sentence.Words(s) {
			if err := wire.WriteMessage(conn, req.Reply(wire.StatusData, w)); err != nil {
				return err
			}
			time.Sleep(delay)
		}
		if err := wire.WriteMessage(conn, req.Reply(wire.StatusData, "\n")); err != nil {
			return err
		}
	}
	return wire.WriteMessage(conn, req.Reply(wire.StatusSuccess, "stream complete"))
}

func (n *Node) handleUndo(conn net.Conn, req *wire.Message) error {
	res, restored, err := n.performUndo(req.Filename)
	switch res {
	case undoOK:
		n.metrics.ObserveUndo("ok")
		logger.Info("undo applied", logger.KeyNodeID, n.cfg.ID, logger.KeyFile, req.Filename)
		return wire.WriteMessage(conn, req.Reply(wire.StatusData, restored))
	case undoNothing:
		n.metrics.ObserveUndo("missing")
		return wire.WriteMessage(conn, req.Reply(wire.StatusNotFound, err.Error()))
	case undoConsecutive:
		n.metrics.ObserveUndo("denied")
		return wire.WriteMessage(conn, req.Reply(wire.StatusDenied, err.Error()))
	default:
		n.metrics.ObserveUndo("failed")
		return wire.WriteMessage(conn, req.Reply(wire.StatusServerError, err.Error()))
	}
}

// watchStdin lets an operator type DISCONNECT on the node console.
func (n *Node) watchStdin() { n.watchConsole(os.Stdin) }

func (n *Node) watchConsole(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "DISCONNECT") {
			logger.Info("operator disconnect requested", logger.KeyNodeID, n.cfg.ID)
			n.Shutdown()
			return
		}
	}
}

// boundPort extracts the port a listener actually bound.
func boundPort(ln net.Listener) int32 {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return int32(addr.Port)
	}
	return 0
}

// discoverLocalIP finds the address this host would use to reach the
// coordinator. The UDP socket is never written to; connecting a datagram
// socket only selects a route.
func discoverLocalIP(coordinatorAddr string) (string, error) {
	conn, err := net.Dial("udp", coordinatorAddr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
