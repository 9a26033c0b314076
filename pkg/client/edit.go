package client

import (
	"net"

	"github.com/marmos91/docufs/internal/protocol/wire"
)

// EditSession is one interactive sentence edit: a locked sentence on the
// owning node. Insert as many words as needed, then Commit (or Abort to
// discard everything).
type EditSession struct {
	conn net.Conn
	user string
	file string

	sentence  string
	index     int32
	wordCount int32
}

// Edit opens an edit session on sentence index of file. The coordinator
// checks write access and refers to the owning node; the node validates
// the index and takes the sentence lock.
func (c *Client) Edit(name string, index int32) (*EditSession, error) {
	resp, err := c.doOK(&wire.Message{Op: wire.OpWrite, Filename: name, Sentence: index})
	if err != nil {
		return nil, err
	}
	conn, err := dialNode(resp)
	if err != nil {
		return nil, err
	}

	req := &wire.Message{Op: wire.OpWrite, Username: c.username, Filename: name, Sentence: index}
	if err := wire.WriteMessage(conn, req); err != nil {
		conn.Close()
		return nil, err
	}
	first, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if first.Result != wire.StatusSuccess {
		conn.Close()
		return nil, opError(first)
	}

	return &EditSession{
		conn:      conn,
		user:      c.username,
		file:      name,
		sentence:  first.DataString(),
		index:     first.Sentence,
		wordCount: first.WordIndex,
	}, nil
}

// Sentence returns the current sentence text as of the last exchange.
func (s *EditSession) Sentence() string { return s.sentence }

// Index returns the current sentence index (it can move on splits).
func (s *EditSession) Index() int32 { return s.index }

// WordCount returns the current sentence's word count.
func (s *EditSession) WordCount() int32 { return s.wordCount }

// Insert places text before word position at (0 prepends, WordCount
// appends) and returns the updated sentence.
func (s *EditSession) Insert(at int32, text string) (string, error) {
	req := &wire.Message{
		Op:        wire.OpWrite,
		Username:  s.user,
		Filename:  s.file,
		Sentence:  s.index,
		WordIndex: at,
	}
	req.SetData(text)
	if err := wire.WriteMessage(s.conn, req); err != nil {
		return "", err
	}
	resp, err := wire.ReadMessage(s.conn)
	if err != nil {
		return "", err
	}
	if resp.Result != wire.StatusSuccess {
		return "", opError(resp)
	}
	s.sentence = resp.DataString()
	s.index = resp.Sentence
	s.wordCount = resp.WordIndex
	return s.sentence, nil
}

// Commit sends the end-of-session token; the node writes the document to
// disk and releases the lock. The saved document content is returned.
func (s *EditSession) Commit() (string, error) {
	defer s.conn.Close()

	req := &wire.Message{Op: wire.OpWrite, Username: s.user, Filename: s.file, Sentence: s.index}
	req.SetData(wire.CommitToken)
	if err := wire.WriteMessage(s.conn, req); err != nil {
		return "", err
	}
	resp, err := wire.ReadMessage(s.conn)
	if err != nil {
		return "", err
	}
	if !resp.Result.OK() {
		return "", opError(resp)
	}
	return resp.DataString(), nil
}

// Abort drops the connection without committing; the node discards the
// in-memory edits and releases the lock.
func (s *EditSession) Abort() error {
	return s.conn.Close()
}
