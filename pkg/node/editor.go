package node

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/node/sentence"
)

// editSession is one interactive WRITE session on a client data connection.
// It owns the sentence lock for its lifetime; everything the user types is
// applied to an in-memory copy of the document and hits disk only on the
// commit token.
type editSession struct {
	node *Node
	conn net.Conn

	id   string
	user string
	file string

	sentences []string
	cur       int32 // index the lock (and the edits) apply to

	// Commit-time merge state. original is the locked sentence as it was
	// on disk when the session opened; span counts how many sentences the
	// edited region has grown to (splits widen it); appended marks a
	// session that started one past the end.
	original string
	span     int
	appended bool
}

// runEditSession services a WRITE request. req carries the file name and
// the requested sentence index; the session then consumes frames on conn
// until commit, error, or disconnect.
func (n *Node) runEditSession(conn net.Conn, req *wire.Message) error {
	sess := &editSession{
		node: n,
		conn: conn,
		id:   uuid.NewString(),
		user: req.Username,
		file: req.Filename,
	}
	return sess.run(req)
}

func (s *editSession) run(req *wire.Message) error {
	n := s.node

	if !n.files.exists(s.file) {
		return s.reply(req, wire.StatusNotFound, fmt.Sprintf("file %q not stored on this node", s.file))
	}

	content, err := n.files.read(s.file)
	if err != nil {
		return s.reply(req, wire.StatusServerError, err.Error())
	}
	s.sentences = sentence.Parse(content)

	if res, msg := s.checkSentenceIndex(req.Sentence); !res.OK() {
		resp := req.Reply(res, msg)
		resp.WordIndex = int32(len(s.sentences))
		return wire.WriteMessage(s.conn, resp)
	}

	ok, holder := n.locks.acquire(s.file, req.Sentence, s.user)
	if !ok {
		n.metrics.ObserveLockConflict()
		resp := req.Reply(wire.StatusLocked, holder)
		return wire.WriteMessage(s.conn, resp)
	}
	s.cur = req.Sentence
	defer func() {
		n.locks.release(s.file, s.cur, s.user)
		n.metrics.SetLocksHeld(n.locks.held())
	}()
	n.metrics.SetLocksHeld(n.locks.held())
	n.metrics.ObserveEditSession()

	// Requesting index == count appends a fresh empty sentence.
	if int(s.cur) == len(s.sentences) {
		s.sentences = append(s.sentences, "")
		s.appended = true
	} else {
		s.original = s.sentences[s.cur]
	}
	s.span = 1

	logger.Debug("edit session opened",
		logger.KeySessionID, s.id,
		logger.KeyUser, s.user,
		logger.KeyFile, s.file,
		logger.KeySentence, s.cur)

	if err := s.sendCurrent(req); err != nil {
		return err
	}
	return s.loop()
}

// checkSentenceIndex validates idx against the parsed document before the
// lock is taken. Index S (one past the end) is valid only when the last
// sentence is properly terminated; an empty document accepts only index 0.
func (s *editSession) checkSentenceIndex(idx int32) (wire.Result, string) {
	count := len(s.sentences)
	if idx < 0 {
		return wire.StatusSentenceOOR, fmt.Sprintf("sentence index %d out of range (count %d)", idx, count)
	}
	if int(idx) < count {
		return wire.StatusSuccess, ""
	}
	if count == 0 {
		if idx == 0 {
			return wire.StatusSuccess, ""
		}
		return wire.StatusSentenceOOR, "file is empty; only sentence 0 is addressable"
	}
	if int(idx) == count {
		if sentence.EndsWithDelimiter(s.sentences[count-1]) {
			return wire.StatusSuccess, ""
		}
		return wire.StatusSentenceOOR, fmt.Sprintf("sentence %d is not terminated; cannot start sentence %d", count-1, count)
	}
	return wire.StatusSentenceOOR, fmt.Sprintf("sentence index %d out of range (count %d)", idx, count)
}

// loop consumes edit frames until the commit token or an error.
func (s *editSession) loop() error {
	for {
		req, err := wire.ReadMessage(s.conn)
		if err != nil {
			logger.Debug("edit session dropped",
				logger.KeySessionID, s.id,
				logger.KeyUser, s.user,
				logger.KeyFile, s.file,
				logger.KeyError, err)
			return err
		}

		payload := req.DataString()
		if payload == wire.CommitToken {
			return s.commit(req)
		}

		if err := s.insert(req, payload); err != nil {
			return err
		}
	}
}

// insert applies one word insertion at req.WordIndex. An empty payload is
// a no-op that just re-sends the sentence. If the insertion introduces a
// delimiter the sentence is re-parsed and the splits replace it in place;
// the first split stays current.
func (s *editSession) insert(req *wire.Message, payload string) error {
	if strings.TrimSpace(payload) == "" {
		return s.sendCurrent(req)
	}

	words := sentence.Words(s.sentences[s.cur])
	idx := int(req.WordIndex)
	if idx < 0 || idx > len(words) {
		resp := req.Reply(wire.StatusWordOOR,
			fmt.Sprintf("word index %d out of range (count %d)", idx, len(words)))
		resp.Sentence = s.cur
		resp.WordIndex = int32(len(words))
		return wire.WriteMessage(s.conn, resp)
	}

	inserted := sentence.Words(payload)
	updated := make([]string, 0, len(words)+len(inserted))
	updated = append(updated, words[:idx]...)
	updated = append(updated, inserted...)
	updated = append(updated, words[idx:]...)

	rebuilt := sentence.JoinWords(updated)
	splits := sentence.Parse(rebuilt)
	switch len(splits) {
	case 0:
		s.sentences[s.cur] = ""
	case 1:
		s.sentences[s.cur] = splits[0]
	default:
		tail := make([]string, 0, len(s.sentences)+len(splits)-1)
		tail = append(tail, s.sentences[:s.cur]...)
		tail = append(tail, splits...)
		tail = append(tail, s.sentences[s.cur+1:]...)
		s.sentences = tail
		s.span += len(splits) - 1
	}

	return s.sendCurrent(req)
}

// commit splices the session's edited region into the live document and
// writes it through the store, then ends the session. Reading the file
// back under commitMu keeps commits from concurrent sessions on other
// sentences from overwriting each other.
func (s *editSession) commit(req *wire.Message) error {
	n := s.node

	n.commitMu.Lock()
	defer n.commitMu.Unlock()

	merged := s.sentences
	if live, err := n.files.read(s.file); err == nil {
		merged = s.mergeCommitted(sentence.Parse(live))
	}
	doc := sentence.Rebuild(merged)
	if err := n.files.commit(s.file, doc); err != nil {
		logger.Error("edit commit failed",
			logger.KeySessionID, s.id,
			logger.KeyFile, s.file,
			logger.KeyError, err)
		return s.reply(req, wire.StatusServerError, err.Error())
	}
	n.undo.set(s.file, false)
	n.metrics.ObserveCommit()

	logger.Info("edit session committed",
		logger.KeySessionID, s.id,
		logger.KeyUser, s.user,
		logger.KeyFile, s.file,
		logger.KeySize, len(doc))

	// The reply carries the whole saved document so the editor can show
	// what actually landed, merges included.
	resp := req.Reply(wire.StatusSuccess, doc)
	resp.Sentence = s.cur
	return wire.WriteMessage(s.conn, resp)
}

// mergeCommitted splices the session's edited region into fresh, a parse
// of the document as it is on disk now. The session's lock guarantees its
// sentence could not have changed underneath, so the original text anchors
// the splice; if it is gone the whole file was replaced (revert, undo) and
// the session's own snapshot wins.
func (s *editSession) mergeCommitted(fresh []string) []string {
	region := s.sentences[s.cur : int(s.cur)+s.span]

	if s.appended {
		out := make([]string, 0, len(fresh)+len(region))
		out = append(out, fresh...)
		return append(out, region...)
	}

	anchor := -1
	for i, sent := range fresh {
		if sent != s.original {
			continue
		}
		if anchor == -1 || abs(i-int(s.cur)) < abs(anchor-int(s.cur)) {
			anchor = i
		}
	}
	if anchor == -1 {
		return s.sentences
	}

	out := make([]string, 0, len(fresh)+len(region)-1)
	out = append(out, fresh[:anchor]...)
	out = append(out, region...)
	return append(out, fresh[anchor+1:]...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// sendCurrent replies SUCCESS with the current sentence, its index, and
// its word count.
func (s *editSession) sendCurrent(req *wire.Message) error {
	cur := s.sentences[s.cur]
	resp := req.Reply(wire.StatusSuccess, cur)
	resp.Sentence = s.cur
	resp.WordIndex = int32(len(sentence.Words(cur)))
	return wire.WriteMessage(s.conn, resp)
}

func (s *editSession) reply(req *wire.Message, res wire.Result, msg string) error {
	return wire.WriteMessage(s.conn, req.Reply(res, msg))
}
