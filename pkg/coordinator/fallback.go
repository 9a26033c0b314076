package coordinator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/metadata"
)

// serveFallback handles a READ/STREAM whose owning node is down.
//
// Recovery order: the coordinator cache, then the failed node's backup
// tree. If another node is active and content was recovered, the file is
// reassigned there, seeded over the control channel, and the client gets a
// normal referral. Otherwise recovered content is served inline (backup
// hits are promoted into the cache); with nothing recovered the file is
// unavailable until its node returns.
func (s *Server) serveFallback(req *wire.Message, rec *metadata.FileRecord) *wire.Message {
	content, source, found := s.recoverContent(rec)

	if found {
		if target, ok := s.nodes.pickActive(rec.NodeID, s.lessLoaded); ok {
			if resp := s.reassign(req, rec, target, content); resp != nil {
				s.metrics.ObserveFallback("failover")
				return resp
			}
		}

		if source == "backup" {
			s.promoteToCache(rec.Name, content)
		}
		s.metrics.ObserveFallback(source)
		logger.Info("serving recovered content",
			logger.KeyFile, rec.Name,
			logger.KeyNodeID, rec.NodeID,
			"source", source)
		return req.Reply(wire.StatusData, content)
	}

	s.metrics.ObserveFallback("miss")
	return req.Reply(wire.StatusUnavailable,
		fmt.Sprintf("node %q holding %q is down and no recovered copy exists", rec.NodeID, rec.Name))
}

// recoverContent looks for the file in cache/ then backups/<node-id>/.
func (s *Server) recoverContent(rec *metadata.FileRecord) (content, source string, found bool) {
	if data, err := os.ReadFile(filepath.Join(s.cacheDir(), rec.Name)); err == nil {
		return string(data), "cache", true
	}
	if data, err := os.ReadFile(filepath.Join(s.backupsDir(), rec.NodeID, rec.Name)); err == nil {
		return string(data), "backup", true
	}
	return "", "", false
}

// reassign moves the record to target and seeds it with content. A nil
// return means seeding failed and the caller should serve inline instead.
func (s *Server) reassign(req *wire.Message, rec *metadata.FileRecord, target, content string) *wire.Message {
	seed := &wire.Message{Op: wire.OpReplicate, Filename: rec.Name, Folder: rec.Folder}
	seed.SetData(content)
	resp, err := s.nodes.call(target, seed)
	if err != nil || !resp.Result.OK() {
		logger.Warn("failover seeding failed",
			logger.KeyFile, rec.Name,
			logger.KeyNodeID, target,
			logger.KeyError, err)
		return nil
	}
	if err := s.store.ReassignNode(rec.Name, target); err != nil {
		return nil
	}

	logger.Info("file reassigned after node failure",
		logger.KeyFile, rec.Name,
		"from", rec.NodeID,
		"to", target)

	ip, port, ok := s.nodes.endpoint(target)
	if !ok {
		return nil
	}
	return req.Referral(ip, port)
}

// promoteToCache stores recovered bytes in cache/ so the next fallback
// read skips the backup scan.
func (s *Server) promoteToCache(name, content string) {
	path := filepath.Join(s.cacheDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logger.Warn("cache promote failed", logger.KeyFile, name, logger.KeyError, err)
	}
}
