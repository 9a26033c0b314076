package node

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/docufs/internal/protocol/wire"
)

// openEdit drives runEditSession over an in-memory pipe: the server half is
// serviced by the session goroutine, the returned conn is the client half.
func openEdit(t *testing.T, n *Node, user, file string, idx int32) (net.Conn, <-chan error) {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan error, 1)
	go func() {
		defer server.Close()
		req, err := wire.ReadMessage(server)
		if err != nil {
			done <- err
			return
		}
		done <- n.runEditSession(server, req)
	}()

	req := &wire.Message{Op: wire.OpWrite, Username: user, Filename: file, Sentence: idx}
	require.NoError(t, wire.WriteMessage(client, req))
	return client, done
}

func readReply(t *testing.T, conn net.Conn) *wire.Message {
	t.Helper()
	resp, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	return resp
}

func sendEdit(t *testing.T, conn net.Conn, wordIdx int32, text string) *wire.Message {
	t.Helper()
	req := &wire.Message{Op: wire.OpWrite, WordIndex: wordIdx}
	req.SetData(text)
	require.NoError(t, wire.WriteMessage(conn, req))
	return readReply(t, conn)
}

func seedFile(t *testing.T, n *Node, name, content string) {
	t.Helper()
	require.NoError(t, n.files.create(name))
	require.NoError(t, n.files.commit(name, content))
	n.undo.forget(name)
}

func TestEditSessionInsertAndCommit(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world. Second one.\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 0)
	defer conn.Close()

	first := readReply(t, conn)
	assert.Equal(t, wire.StatusSuccess, first.Result)
	assert.Equal(t, "Hello world.", first.DataString())
	assert.Equal(t, int32(0), first.Sentence)
	assert.Equal(t, int32(2), first.WordIndex)

	resp := sendEdit(t, conn, 1, "brave new")
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	assert.Equal(t, "Hello brave new world.", resp.DataString())
	assert.Equal(t, int32(4), resp.WordIndex)

	resp = sendEdit(t, conn, 0, wire.CommitToken)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	assert.Equal(t, "Hello brave new world. Second one.\n", resp.DataString(),
		"commit reply carries the saved document")
	require.NoError(t, <-done)

	content, err := n.files.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello brave new world. Second one.\n", content)
	assert.Zero(t, n.locks.held())
}

func TestEditSessionSentenceOutOfRange(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world. Second one.\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 5)
	defer conn.Close()

	resp := readReply(t, conn)
	assert.Equal(t, wire.StatusSentenceOOR, resp.Result)
	assert.Equal(t, int32(2), resp.WordIndex, "rejection echoes the sentence count")
	require.NoError(t, <-done)
	assert.Zero(t, n.locks.held())
}

func TestEditSessionWordOutOfRange(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world.\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 0)
	defer conn.Close()
	readReply(t, conn)

	resp := sendEdit(t, conn, 99, "nope")
	assert.Equal(t, wire.StatusWordOOR, resp.Result)
	assert.Equal(t, int32(2), resp.WordIndex, "rejection echoes the word count")

	// The session survives the rejection.
	resp = sendEdit(t, conn, 1, "indeed")
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	assert.Equal(t, "Hello indeed world.", resp.DataString())

	conn.Close()
	<-done
}

func TestEditSessionSplitsSentenceInPlace(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world. Second one.\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 0)
	defer conn.Close()
	readReply(t, conn)

	// The inserted text carries a delimiter; the first split stays current.
	resp := sendEdit(t, conn, 1, "done. Extra")
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	assert.Equal(t, "Hello done.", resp.DataString())
	assert.Equal(t, int32(0), resp.Sentence)

	resp = sendEdit(t, conn, 0, wire.CommitToken)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	require.NoError(t, <-done)

	content, err := n.files.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello done. Extra world. Second one.\n", content)
}

func TestEditSessionAppendsSentence(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world.\n")

	// Index one past the end is valid because the last sentence terminates.
	conn, done := openEdit(t, n, "alice", "doc.txt", 1)
	defer conn.Close()

	first := readReply(t, conn)
	assert.Equal(t, wire.StatusSuccess, first.Result)
	assert.Empty(t, first.DataString())
	assert.Equal(t, int32(1), first.Sentence)
	assert.Zero(t, first.WordIndex)

	sendEdit(t, conn, 0, "A fresh thought.")
	resp := sendEdit(t, conn, 0, wire.CommitToken)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	require.NoError(t, <-done)

	content, err := n.files.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello world. A fresh thought.\n", content)
}

func TestEditSessionAppendRequiresTerminatedTail(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "no delimiter here\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 1)
	defer conn.Close()

	resp := readReply(t, conn)
	assert.Equal(t, wire.StatusSentenceOOR, resp.Result)
	require.NoError(t, <-done)
}

func TestEditSessionEmptyFile(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.files.create("fresh.txt"))

	conn, done := openEdit(t, n, "alice", "fresh.txt", 0)
	defer conn.Close()

	first := readReply(t, conn)
	require.Equal(t, wire.StatusSuccess, first.Result)

	sendEdit(t, conn, 0, "The very first sentence.")
	resp := sendEdit(t, conn, 0, wire.CommitToken)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	require.NoError(t, <-done)

	content, err := n.files.read("fresh.txt")
	require.NoError(t, err)
	assert.Equal(t, "The very first sentence.\n", content)
}

func TestEditSessionLockConflict(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world. Second one.\n")

	held, heldDone := openEdit(t, n, "alice", "doc.txt", 0)
	readReply(t, held)

	conn, done := openEdit(t, n, "bob", "doc.txt", 0)
	defer conn.Close()
	resp := readReply(t, conn)
	assert.Equal(t, wire.StatusLocked, resp.Result)
	assert.Equal(t, "alice", resp.DataString(), "reply names the holder")
	require.NoError(t, <-done)

	// A different sentence of the same file is not blocked.
	conn2, done2 := openEdit(t, n, "bob", "doc.txt", 1)
	resp = readReply(t, conn2)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	conn2.Close()
	<-done2

	// Dropping the holder's connection releases the lock without committing.
	held.Close()
	<-heldDone
	assert.Zero(t, n.locks.held())

	conn3, done3 := openEdit(t, n, "bob", "doc.txt", 0)
	resp = readReply(t, conn3)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	conn3.Close()
	<-done3
}

func TestEditSessionConcurrentCommitsMergeSentences(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "First part. Second part.\n")

	// Two sessions on different sentences of the same file, both open
	// before either commits.
	connA, doneA := openEdit(t, n, "alice", "doc.txt", 0)
	defer connA.Close()
	readReply(t, connA)
	connB, doneB := openEdit(t, n, "bob", "doc.txt", 1)
	defer connB.Close()
	readReply(t, connB)

	resp := sendEdit(t, connA, 1, "alpha")
	assert.Equal(t, "First alpha part.", resp.DataString())
	resp = sendEdit(t, connB, 1, "beta")
	assert.Equal(t, "Second beta part.", resp.DataString())

	resp = sendEdit(t, connA, 0, wire.CommitToken)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	require.NoError(t, <-doneA)

	resp = sendEdit(t, connB, 0, wire.CommitToken)
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	require.NoError(t, <-doneB)

	// Neither commit may clobber the other's sentence.
	content, err := n.files.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "First alpha part. Second beta part.\n", content)
}

func TestEditSessionAbortLeavesFileUntouched(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world.\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 0)
	readReply(t, conn)
	sendEdit(t, conn, 2, "pending")

	conn.Close()
	<-done

	content, err := n.files.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello world.\n", content, "edits hit disk only on commit")
}

func TestEditSessionMissingFile(t *testing.T) {
	n := newTestNode(t)

	conn, done := openEdit(t, n, "alice", "ghost.txt", 0)
	defer conn.Close()

	resp := readReply(t, conn)
	assert.Equal(t, wire.StatusNotFound, resp.Result)
	require.NoError(t, <-done)
}

func TestEditSessionEmptyPayloadResends(t *testing.T) {
	n := newTestNode(t)
	seedFile(t, n, "doc.txt", "Hello world.\n")

	conn, done := openEdit(t, n, "alice", "doc.txt", 0)
	defer conn.Close()
	readReply(t, conn)

	resp := sendEdit(t, conn, 0, "   ")
	assert.Equal(t, wire.StatusSuccess, resp.Result)
	assert.Equal(t, "Hello world.", resp.DataString())

	conn.Close()
	<-done
}
