package coordinator

import (
	"context"
	"time"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// runHeartbeats is the failure detector. Every interval it sends one
// HEARTBEAT on each active control channel; a node whose last successful
// exchange is older than the grace period is marked FAILED. Control-call
// errors mark the node immediately (call does that itself), so the grace
// check mostly catches channels that are open but silent.
func (s *Server) runHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			s.beatAll()
		}
	}
}

func (s *Server) beatAll() {
	for _, id := range s.nodes.activeIDs() {
		resp, err := s.nodes.call(id, &wire.Message{Op: wire.OpHeartbeat})
		if err != nil {
			s.metrics.ObserveHeartbeatFailure()
			logger.Warn("heartbeat failed", logger.KeyNodeID, id, logger.KeyError, err)
			continue
		}
		if !resp.Result.OK() {
			s.metrics.ObserveHeartbeatFailure()
			logger.Warn("heartbeat rejected",
				logger.KeyNodeID, id,
				logger.KeyResult, resp.Result.String())
			s.nodes.markFailed(id)
		}
	}
	for _, id := range s.nodes.activeIDs() {
		s.checkGrace(id)
	}
	registered, active := s.nodes.counts()
	s.metrics.SetNodeCounts(registered, active)
}

func (s *Server) checkGrace(id string) {
	s.nodes.mu.Lock()
	rec, ok := s.nodes.nodes[id]
	s.nodes.mu.Unlock()
	if !ok {
		return
	}
	rec.mu.Lock()
	stale := time.Since(rec.lastBeat) > s.cfg.HeartbeatGrace
	rec.mu.Unlock()
	if stale {
		logger.Warn("heartbeat grace exceeded", logger.KeyNodeID, id)
		s.nodes.markFailed(id)
	}
}
