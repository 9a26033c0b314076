// Package coordinator implements the DocuFS coordinator: the single
// process that owns cluster metadata and brokers every client operation.
//
// Clients and storage nodes both dial the same listen address. A node's
// first frame is REGISTER_NODE and the accepted socket then stays open as
// that node's control channel; a client's first frame is REGISTER_CLIENT,
// which opens a session that lasts until the connection drops. Metadata
// operations are answered directly; data operations return a referral to
// the owning node, falling back to the coordinator-side cache and backup
// trees when that node is down.
package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/config"
	"github.com/marmos91/docufs/pkg/metadata"
	"github.com/marmos91/docufs/pkg/metrics"
)

// Server is the coordinator daemon.
type Server struct {
	cfg      config.CoordinatorConfig
	adminCfg config.MetricsConfig
	store    *metadata.Store
	nodes    *nodeManager
	metrics  *metrics.CoordinatorMetrics

	ln    net.Listener
	admin *adminServer

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New creates a coordinator from its configuration. Serve does the actual
// work.
func New(cfg config.CoordinatorConfig, adminCfg config.MetricsConfig, m *metrics.CoordinatorMetrics) *Server {
	return &Server{
		cfg:        cfg,
		adminCfg:   adminCfg,
		store:      metadata.NewStore(),
		nodes:      newNodeManager(cfg.ControlTimeout),
		metrics:    m,
		conns:      make(map[net.Conn]struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Store exposes the metadata store (admin API and tests).
func (s *Server) Store() *metadata.Store { return s.store }

// Addr returns the bound listen address, or nil before Serve has bound.
func (s *Server) Addr() net.Addr {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) registryPath() string {
	return filepath.Join(s.cfg.DataDir, "registry.dat")
}

func (s *Server) cacheDir() string {
	return filepath.Join(s.cfg.DataDir, "cache")
}

func (s *Server) backupsDir() string {
	return filepath.Join(s.cfg.DataDir, "backups")
}

// Serve runs the coordinator until ctx is cancelled or an operator orders
// SHUTDOWN. The registry snapshot is written on the way out.
func (s *Server) Serve(ctx context.Context) error {
	for _, dir := range []string{s.cfg.DataDir, s.cacheDir(), s.backupsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := s.store.LoadRegistry(s.registryPath()); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	logger.Info("registry loaded", "files", s.store.FileCount())
	s.metrics.SetRegistryFiles(s.store.FileCount())

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.connMu.Lock()
	s.ln = ln
	s.connMu.Unlock()

	if s.adminCfg.Enabled {
		s.admin = newAdminServer(s, s.adminCfg.ListenAddr)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.admin.run()
		}()
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runHeartbeats(ctx)
	}()
	go s.acceptLoop()

	go s.watchStdin()

	logger.Info("coordinator ready", "listen_addr", s.ln.Addr().String())

	select {
	case <-ctx.Done():
	case <-s.shutdownCh:
	}
	s.Shutdown()
	s.wg.Wait()

	if err := s.store.SaveRegistry(s.registryPath()); err != nil {
		logger.Error("registry snapshot failed", logger.KeyError, err)
		return err
	}
	logger.Info("registry snapshot written", "files", s.store.FileCount())
	return nil
}

// Shutdown stops the listener, open sessions, the admin server and the
// control channels. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		s.connMu.Lock()
		if s.ln != nil {
			_ = s.ln.Close()
		}
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connMu.Unlock()
		if s.admin != nil {
			s.admin.stop()
		}
		s.nodes.closeAll()
	})
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("accept failed", logger.KeyError, err)
			continue
		}
		s.wg.Add(1)
		s.trackConn(conn, true)
		go func() {
			defer s.wg.Done()
			defer s.trackConn(conn, false)
			if !s.handleConn(conn) {
				conn.Close()
			}
		}()
	}
}

// handleConn reads the first frame and routes the connection: node
// registration or client session. Reports whether ownership of the socket
// moved to the node manager (registration sockets become control channels
// and must not be closed here).
func (s *Server) handleConn(conn net.Conn) (handedOff bool) {
	req, err := wire.ReadMessage(conn)
	if err != nil {
		if err != io.EOF {
			logger.Warn("handshake read failed",
				logger.KeyClient, conn.RemoteAddr().String(),
				logger.KeyError, err)
		}
		return false
	}

	switch req.Op {
	case wire.OpRegisterNode:
		return s.handleNodeRegistration(conn, req)
	case wire.OpRegisterClient:
		s.runClientSession(conn, req)
	default:
		_ = wire.WriteMessage(conn, req.Reply(wire.StatusBadRequest,
			"first frame must be REGISTER_NODE or REGISTER_CLIENT"))
	}
	return false
}

// handleNodeRegistration installs a node and adopts its announced files.
// A known id is a rejoin: existing metadata for its files is preserved.
// The accepted socket becomes the node's permanent control channel; the
// return value reports that hand-off.
func (s *Server) handleNodeRegistration(conn net.Conn, req *wire.Message) bool {
	a, err := wire.DecodeAnnouncement(req)
	if err != nil {
		_ = wire.WriteMessage(conn, req.Reply(wire.StatusBadRequest, err.Error()))
		return false
	}

	verb := "registered"
	if s.nodes.known(a.ID) {
		verb = "rejoined"
	}
	ack := req.Reply(wire.StatusSuccess, fmt.Sprintf("node %q %s", a.ID, verb))
	if err := s.nodes.register(a, conn, ack); err != nil {
		logger.Error("node registration failed",
			logger.KeyNodeID, a.ID,
			logger.KeyError, err)
		return false
	}

	adopted := 0
	for _, f := range a.Files {
		// Whatever the coordinator cached for an announced file predates
		// the content the node holds now.
		_ = os.Remove(filepath.Join(s.cacheDir(), f.Name))
		if s.store.AdoptFile(f.Name, a.ID, a.ID, f.Folder) {
			adopted++
		}
	}

	logger.Info("storage node "+verb,
		logger.KeyNodeID, a.ID,
		logger.KeyNodeAddr, net.JoinHostPort(a.IP, fmt.Sprint(a.ClientPort)),
		"files_announced", len(a.Files),
		"files_adopted", adopted)

	registered, active := s.nodes.counts()
	s.metrics.SetNodeCounts(registered, active)
	s.metrics.SetRegistryFiles(s.store.FileCount())
	return true
}

// runClientSession authenticates the username and serves its request loop
// until the connection drops. One session per username, cluster-wide.
func (s *Server) runClientSession(conn net.Conn, req *wire.Message) {
	username := req.Username
	remote := conn.RemoteAddr().String()

	if username == "" {
		_ = wire.WriteMessage(conn, req.Reply(wire.StatusBadRequest, "username required"))
		return
	}
	if err := s.store.BeginSession(username, remote); err != nil {
		_ = wire.WriteMessage(conn, req.Reply(wire.StatusLocked, err.Error()))
		return
	}
	defer func() {
		s.store.EndSession(username)
		s.metrics.SetActiveSessions(s.store.ActiveSessionCount())
		logger.Info("client session closed", logger.KeyUser, username)
	}()

	s.store.RegisterUser(username)
	s.metrics.SetActiveSessions(s.store.ActiveSessionCount())
	logger.Info("client session opened", logger.KeyUser, username, logger.KeyClient, remote)

	if err := wire.WriteMessage(conn, req.Reply(wire.StatusSuccess,
		fmt.Sprintf("welcome %s", username))); err != nil {
		return
	}

	for {
		m, err := wire.ReadMessage(conn)
		if err != nil {
			if err != io.EOF {
				logger.Warn("client read failed", logger.KeyUser, username, logger.KeyError, err)
			}
			return
		}
		// The session identity wins over whatever the frame claims.
		m.Username = username

		resp := s.route(m)
		if err := wire.WriteMessage(conn, resp); err != nil {
			logger.Warn("client write failed", logger.KeyUser, username, logger.KeyError, err)
			return
		}
	}
}

// watchStdin lets an operator type SHUTDOWN on the coordinator console.
func (s *Server) watchStdin() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "SHUTDOWN") {
			logger.Info("operator shutdown requested")
			s.Shutdown()
			return
		}
	}
}
