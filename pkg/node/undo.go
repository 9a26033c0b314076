package node

import (
	"fmt"
	"os"
	"sync"
)

// undoTable tracks, per file, whether the last operation was an undo.
// Consecutive undos are rejected; a committed write clears the flag. Like
// the lock table this is in-memory only.
type undoTable struct {
	mu   sync.Mutex
	last map[string]bool // file -> last op was undo
}

func newUndoTable() *undoTable {
	return &undoTable{last: make(map[string]bool)}
}

func (t *undoTable) lastWasUndo(file string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[file]
}

func (t *undoTable) set(file string, wasUndo bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if wasUndo {
		t.last[file] = true
	} else {
		delete(t.last, file)
	}
}

func (t *undoTable) forget(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, file)
}

// undoResult is the outcome of performUndo.
type undoResult int

const (
	undoOK undoResult = iota
	undoNothing
	undoConsecutive
	undoFailed
)

// performUndo swaps the live file with its sidecar backup, so a second
// (allowed) undo after an intervening write would restore what this one
// replaced. Sequence: live -> temp, sidecar -> live, temp -> sidecar.
func (n *Node) performUndo(name string) (undoResult, string, error) {
	sidecar := n.files.layout.sidecarPath(name)
	if _, err := os.Stat(sidecar); err != nil {
		return undoNothing, "", fmt.Errorf("no backup exists for %q", name)
	}
	if n.undo.lastWasUndo(name) {
		return undoConsecutive, "", fmt.Errorf("undo already performed on %q; write before undoing again", name)
	}

	live := n.files.filePath(name)
	liveBytes, err := os.ReadFile(live)
	if err != nil {
		return undoFailed, "", fmt.Errorf("read %q: %w", name, err)
	}
	backupBytes, err := os.ReadFile(sidecar)
	if err != nil {
		return undoFailed, "", fmt.Errorf("read backup of %q: %w", name, err)
	}

	tmp := sidecar + ".swap"
	if err := os.WriteFile(tmp, liveBytes, 0o644); err != nil {
		return undoFailed, "", fmt.Errorf("stage undo of %q: %w", name, err)
	}
	if err := atomicWrite(live, backupBytes); err != nil {
		_ = os.Remove(tmp)
		return undoFailed, "", fmt.Errorf("restore %q: %w", name, err)
	}
	if err := os.Rename(tmp, sidecar); err != nil {
		return undoFailed, "", fmt.Errorf("rotate backup of %q: %w", name, err)
	}

	n.undo.set(name, true)
	return undoOK, string(backupBytes), nil
}
