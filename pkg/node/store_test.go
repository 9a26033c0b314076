package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *fileStore {
	t.Helper()
	fs := newFileStore(layout{dataDir: t.TempDir(), id: "ss1"})
	require.NoError(t, fs.ensureDirs())
	return fs
}

func TestCreateAndRead(t *testing.T) {
	fs := newTestStore(t)

	require.NoError(t, fs.create("doc.txt"))
	assert.True(t, fs.exists("doc.txt"))
	assert.Equal(t, 1, fs.count())

	content, err := fs.read("doc.txt")
	require.NoError(t, err)
	assert.Empty(t, content)

	// The backup mirror is created alongside.
	_, err = os.Stat(fs.layout.backupPath("doc.txt"))
	assert.NoError(t, err)

	assert.Error(t, fs.create("doc.txt"))
}

func TestCommitWritesSidecarAndMirror(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.create("doc.txt"))

	require.NoError(t, fs.commit("doc.txt", "First version.\n"))
	require.NoError(t, fs.commit("doc.txt", "Second version.\n"))

	live, err := fs.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "Second version.\n", live)

	sidecar, err := os.ReadFile(fs.layout.sidecarPath("doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "First version.\n", string(sidecar))

	mirror, err := os.ReadFile(fs.layout.backupPath("doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Second version.\n", string(mirror))
}

func TestRemoveKeepsBackup(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.create("doc.txt"))
	require.NoError(t, fs.commit("doc.txt", "content.\n"))

	require.NoError(t, fs.remove("doc.txt"))
	assert.False(t, fs.exists("doc.txt"))
	assert.Zero(t, fs.count())

	mirror, err := os.ReadFile(fs.layout.backupPath("doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content.\n", string(mirror))
}

func TestMove(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.create("doc.txt"))
	require.NoError(t, fs.commit("doc.txt", "hello.\n"))

	require.NoError(t, fs.move("doc.txt", "projects/go"))
	assert.True(t, fs.exists("doc.txt"))

	content, err := fs.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello.\n", content)

	_, err = os.Stat(filepath.Join(fs.layout.storageRoot(), "projects", "go", "doc.txt"))
	assert.NoError(t, err)

	// Back to the root.
	require.NoError(t, fs.move("doc.txt", ""))
	_, err = os.Stat(filepath.Join(fs.layout.storageRoot(), "doc.txt"))
	assert.NoError(t, err)
}

func TestCheckpointAndRevert(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.create("doc.txt"))
	require.NoError(t, fs.commit("doc.txt", "version one.\n"))

	size, err := fs.checkpoint("doc.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(len("version one.\n")), size)

	require.NoError(t, fs.commit("doc.txt", "version two.\n"))

	chk, err := fs.checkpointContent("doc.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "version one.\n", chk)

	require.NoError(t, fs.revert("doc.txt", "v1"))
	live, err := fs.read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "version one.\n", live)

	assert.Error(t, fs.revert("doc.txt", "v9"))
}

func TestInstall(t *testing.T) {
	fs := newTestStore(t)

	require.NoError(t, fs.install("seeded.txt", "replicated content.\n"))
	assert.True(t, fs.exists("seeded.txt"))

	content, err := fs.read("seeded.txt")
	require.NoError(t, err)
	assert.Equal(t, "replicated content.\n", content)

	mirror, err := os.ReadFile(fs.layout.backupPath("seeded.txt"))
	require.NoError(t, err)
	assert.Equal(t, "replicated content.\n", string(mirror))
}

func TestStats(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.create("doc.txt"))
	require.NoError(t, fs.commit("doc.txt", "two words.\n"))

	size, words, chars, err := fs.stats("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
	assert.Equal(t, 2, words)
	assert.Equal(t, 11, chars)
}

func TestInventorySkipsCheckpoints(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.create("root.txt"))
	require.NoError(t, fs.create("deep.txt"))
	require.NoError(t, fs.move("deep.txt", "projects"))
	_, err := fs.checkpoint("root.txt", "v1")
	require.NoError(t, err)

	// A fresh store over the same tree rediscovers everything.
	fresh := newFileStore(fs.layout)
	files, err := fresh.inventory()
	require.NoError(t, err)
	require.Len(t, files, 2)

	byName := make(map[string]string)
	for _, f := range files {
		byName[f.Name] = f.Folder
	}
	assert.Equal(t, "", byName["root.txt"])
	assert.Equal(t, "projects", byName["deep.txt"])

	assert.Equal(t, 2, fresh.count())
	content, err := fresh.read("deep.txt")
	require.NoError(t, err)
	assert.Empty(t, content)
}
