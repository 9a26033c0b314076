package node

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/docufs/internal/protocol/wire"
	"github.com/marmos91/docufs/pkg/node/sentence"
)

// layout maps names onto the node's two on-disk trees:
//
//	<data>/storage/<id>/<folder...>/<name>         live files
//	<data>/storage/<id>/checkpoints/<name>.<tag>   checkpoints
//	<data>/backups/<id>/<name>                     latest committed content
//	<data>/backups/<id>/<name>.backup              undo sidecar
type layout struct {
	dataDir string
	id      string
}

func (l layout) storageRoot() string {
	return filepath.Join(l.dataDir, "storage", l.id)
}

func (l layout) backupRoot() string {
	return filepath.Join(l.dataDir, "backups", l.id)
}

func (l layout) checkpointDir() string {
	return filepath.Join(l.storageRoot(), "checkpoints")
}

func (l layout) checkpointPath(name, tag string) string {
	return filepath.Join(l.checkpointDir(), name+"."+tag)
}

func (l layout) backupPath(name string) string {
	return filepath.Join(l.backupRoot(), name)
}

func (l layout) sidecarPath(name string) string {
	return filepath.Join(l.backupRoot(), name+".backup")
}

// fileStore performs the node's disk operations and tracks which folder
// each file currently lives in. File names are globally unique, so the
// index is flat even though the storage tree is not.
type fileStore struct {
	layout layout

	mu      sync.Mutex
	folders map[string]string // name -> folder ("" = root)
}

func newFileStore(l layout) *fileStore {
	return &fileStore{layout: l, folders: make(map[string]string)}
}

// ensureDirs creates the storage, checkpoint and backup trees.
func (fs *fileStore) ensureDirs() error {
	for _, dir := range []string{fs.layout.storageRoot(), fs.layout.checkpointDir(), fs.layout.backupRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// filePath resolves a name through the folder index.
func (fs *fileStore) filePath(name string) string {
	fs.mu.Lock()
	folder := fs.folders[name]
	fs.mu.Unlock()
	return filepath.Join(fs.layout.storageRoot(), filepath.FromSlash(folder), name)
}

// exists reports whether the live file is on disk.
func (fs *fileStore) exists(name string) bool {
	_, err := os.Stat(fs.filePath(name))
	return err == nil
}

// create makes an empty file in both the storage and backup trees.
func (fs *fileStore) create(name string) error {
	if fs.exists(name) {
		return fmt.Errorf("file %q already exists", name)
	}
	if err := os.WriteFile(filepath.Join(fs.layout.storageRoot(), name), nil, 0o644); err != nil {
		return fmt.Errorf("create %q: %w", name, err)
	}
	if err := os.WriteFile(fs.layout.backupPath(name), nil, 0o644); err != nil {
		return fmt.Errorf("create backup of %q: %w", name, err)
	}
	fs.mu.Lock()
	fs.folders[name] = ""
	fs.mu.Unlock()
	return nil
}

// read returns the live content.
func (fs *fileStore) read(name string) (string, error) {
	data, err := os.ReadFile(fs.filePath(name))
	if err != nil {
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	return string(data), nil
}

// install writes content to the live file (and the backup mirror),
// creating it if needed. Used for replication seeding.
func (fs *fileStore) install(name, content string) error {
	path := fs.filePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("install %q: %w", name, err)
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("install %q: %w", name, err)
	}
	if err := os.WriteFile(fs.layout.backupPath(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("mirror %q: %w", name, err)
	}
	fs.mu.Lock()
	if _, ok := fs.folders[name]; !ok {
		fs.folders[name] = ""
	}
	fs.mu.Unlock()
	return nil
}

// commit replaces the live file with content: the old bytes go to the undo
// sidecar, the new bytes land via temp+rename and are mirrored into the
// backup tree.
func (fs *fileStore) commit(name, content string) error {
	path := fs.filePath(name)
	old, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot %q: %w", name, err)
	}
	if err := os.WriteFile(fs.layout.sidecarPath(name), old, 0o644); err != nil {
		return fmt.Errorf("write sidecar of %q: %w", name, err)
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("commit %q: %w", name, err)
	}
	if err := os.WriteFile(fs.layout.backupPath(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("mirror %q: %w", name, err)
	}
	return nil
}

// remove deletes the live file only. The backup tree keeps its last copy
// so the coordinator fallback can still serve it.
func (fs *fileStore) remove(name string) error {
	if err := os.Remove(fs.filePath(name)); err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	fs.mu.Lock()
	delete(fs.folders, name)
	fs.mu.Unlock()
	return nil
}

// move relocates the live file under folder, creating ancestors.
func (fs *fileStore) move(name, folder string) error {
	folder = strings.Trim(folder, "/")
	src := fs.filePath(name)
	dstDir := filepath.Join(fs.layout.storageRoot(), filepath.FromSlash(folder))
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("move %q: %w", name, err)
	}
	dst := filepath.Join(dstDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %q: %w", name, err)
	}
	fs.mu.Lock()
	fs.folders[name] = folder
	fs.mu.Unlock()
	return nil
}

// checkpoint copies the live file into the checkpoint tree and returns the
// copied size.
func (fs *fileStore) checkpoint(name, tag string) (int64, error) {
	data, err := os.ReadFile(fs.filePath(name))
	if err != nil {
		return 0, fmt.Errorf("checkpoint %q: %w", name, err)
	}
	if err := os.WriteFile(fs.layout.checkpointPath(name, tag), data, 0o644); err != nil {
		return 0, fmt.Errorf("checkpoint %q: %w", name, err)
	}
	return int64(len(data)), nil
}

// checkpointContent returns the bytes of one checkpoint.
func (fs *fileStore) checkpointContent(name, tag string) (string, error) {
	data, err := os.ReadFile(fs.layout.checkpointPath(name, tag))
	if err != nil {
		return "", fmt.Errorf("checkpoint %s.%s: %w", name, tag, err)
	}
	return string(data), nil
}

// revert overwrites the live file from a checkpoint copy.
func (fs *fileStore) revert(name, tag string) error {
	data, err := os.ReadFile(fs.layout.checkpointPath(name, tag))
	if err != nil {
		return fmt.Errorf("revert %q: %w", name, err)
	}
	if err := atomicWrite(fs.filePath(name), data); err != nil {
		return fmt.Errorf("revert %q: %w", name, err)
	}
	return nil
}

// stats computes size, word count and char count of the live file.
func (fs *fileStore) stats(name string) (size int64, words, chars int, err error) {
	data, err := os.ReadFile(fs.filePath(name))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("stat %q: %w", name, err)
	}
	words, chars = sentence.Stats(string(data))
	return int64(len(data)), words, chars, nil
}

// count returns the number of indexed files.
func (fs *fileStore) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.folders)
}

// inventory walks the storage tree (skipping checkpoints) and rebuilds the
// folder index, returning the announcement list for registration.
func (fs *fileStore) inventory() ([]wire.AnnouncedFile, error) {
	root := fs.layout.storageRoot()
	chkDir := fs.layout.checkpointDir()

	var files []wire.AnnouncedFile
	err := filepath.WalkDir(root, func(path string, d fs2DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == chkDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		folder := filepath.ToSlash(filepath.Dir(rel))
		if folder == "." {
			folder = ""
		}
		files = append(files, wire.AnnouncedFile{Name: d.Name(), Folder: folder})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk storage tree: %w", err)
	}

	fs.mu.Lock()
	fs.folders = make(map[string]string, len(files))
	for _, f := range files {
		fs.folders[f.Name] = f.Folder
	}
	fs.mu.Unlock()
	return files, nil
}

type fs2DirEntry = fs.DirEntry

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
