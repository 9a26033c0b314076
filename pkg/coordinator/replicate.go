package coordinator

import (
	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
)

// notifyPeers broadcasts a content-less REPLICATE frame for name to every
// active node except origin. Peers acknowledge and take no further action;
// the frame exists so future replication strategies have a wire path to
// grow into. Failures are logged and otherwise ignored.
func (s *Server) notifyPeers(origin, name string) {
	for _, id := range s.nodes.activeIDs() {
		if id == origin {
			continue
		}
		resp, err := s.nodes.call(id, &wire.Message{Op: wire.OpReplicate, Filename: name})
		if err != nil {
			logger.Warn("replication notify failed",
				logger.KeyNodeID, id,
				logger.KeyFile, name,
				logger.KeyError, err)
			continue
		}
		if !resp.Result.OK() {
			logger.Warn("replication notify rejected",
				logger.KeyNodeID, id,
				logger.KeyFile, name,
				logger.KeyResult, resp.Result.String())
		}
	}
}
