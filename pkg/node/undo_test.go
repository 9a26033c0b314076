package node

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/docufs/pkg/config"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n := New(config.NodeConfig{ID: "ss1", DataDir: t.TempDir()}, nil)
	require.NoError(t, n.files.ensureDirs())
	return n
}

func TestUndoSwapsLiveAndSidecar(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.files.create("doc.txt"))
	require.NoError(t, n.files.commit("doc.txt", "first.\n"))
	require.NoError(t, n.files.commit("doc.txt", "second.\n"))

	res, restored, err := n.performUndo("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, undoOK, res)
	assert.Equal(t, "first.\n", restored)

	live, err := n.files.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "first.\n", live)

	// The swap keeps the replaced content in the sidecar, so an undo after
	// an intervening write brings it back.
	sidecar, err := os.ReadFile(n.files.layout.sidecarPath("doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second.\n", string(sidecar))
}

func TestConsecutiveUndoDenied(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.files.create("doc.txt"))
	require.NoError(t, n.files.commit("doc.txt", "first.\n"))
	require.NoError(t, n.files.commit("doc.txt", "second.\n"))

	res, _, err := n.performUndo("doc.txt")
	require.NoError(t, err)
	require.Equal(t, undoOK, res)

	res, _, err = n.performUndo("doc.txt")
	assert.Equal(t, undoConsecutive, res)
	assert.Error(t, err)

	// A committed write clears the flag.
	require.NoError(t, n.files.commit("doc.txt", "third.\n"))
	n.undo.set("doc.txt", false)

	res, restored, err := n.performUndo("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, undoOK, res)
	assert.Equal(t, "first.\n", restored, "undo restores what the last commit replaced")
}

func TestUndoWithoutBackup(t *testing.T) {
	n := newTestNode(t)

	res, _, err := n.performUndo("ghost.txt")
	assert.Equal(t, undoNothing, res)
	assert.Error(t, err)
}
